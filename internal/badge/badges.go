// Package badge derives categorical tags for saved jobs and fills gaps
// from the company registry. Everything here is deterministic and
// side-effect-free so badges can be recomputed on every save without drift.
package badge

import (
	"regexp"
	"strings"
	"time"

	"github.com/chainboard/jobs-crawler/internal/ingest"
)

// verifiedBackers is the allow-list that grants the Verified badge.
var verifiedBackers = map[string]struct{}{
	"hashed":      {},
	"a16z crypto": {},
	"paradigm":    {},
}

var (
	web3PerksRe = regexp.MustCompile(`(?i)token|equity|stock option|vesting`)
	preIPORe    = regexp.MustCompile(`(?i)^(seed|pre-seed|series [a-c]|pre-ipo)`)
)

const (
	activeWindow      = 30 * 24 * time.Hour
	englishMinLength  = 20
	englishASCIIRatio = 0.7
)

// ComputeBadges derives the badge set for a job at the given point in time.
// Rules are independent; a job may carry any subset.
func ComputeBadges(job ingest.CanonicalJob, now time.Time) []ingest.Badge {
	var badges []ingest.Badge

	if hasVerifiedBacker(job.Backers) {
		badges = append(badges, ingest.BadgeVerified)
	}
	if job.HasToken || web3PerksRe.MatchString(job.Description) {
		badges = append(badges, ingest.BadgeWeb3Perks)
	}
	if preIPORe.MatchString(strings.TrimSpace(job.Stage)) {
		badges = append(badges, ingest.BadgePreIPO)
	}
	if strings.Contains(strings.ToLower(job.Location), "remote") {
		badges = append(badges, ingest.BadgeRemote)
	}
	if !job.PostedDate.IsZero() && now.Sub(job.PostedDate) <= activeWindow {
		badges = append(badges, ingest.BadgeActive)
	}
	if isEnglish(job.Description) {
		badges = append(badges, ingest.BadgeEnglish)
	}
	return badges
}

func hasVerifiedBacker(backers []string) bool {
	for _, b := range backers {
		if _, ok := verifiedBackers[strings.ToLower(strings.TrimSpace(b))]; ok {
			return true
		}
	}
	return false
}

// isEnglish is a cheap heuristic: mostly-ASCII text of nontrivial length.
func isEnglish(description string) bool {
	if len(description) <= englishMinLength {
		return false
	}
	ascii := 0
	for _, r := range description {
		if r < 128 {
			ascii++
		}
	}
	total := len([]rune(description))
	return float64(ascii)/float64(total) > englishASCIIRatio
}
