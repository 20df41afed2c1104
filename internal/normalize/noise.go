package normalize

import (
	"regexp"
	"strings"
)

// NoisePattern is one entry of the aggregator noise table. Patterns are
// data, not control flow: new aggregator chrome gets a new entry here and a
// fixture test, nothing else changes.
type NoisePattern struct {
	Name        string
	Pattern     *regexp.Regexp
	Replacement string
}

// noiseTableVersion bumps whenever the pattern list changes, so stored
// descriptions can be re-cleaned selectively by a batch pass.
const noiseTableVersion = 3

// noisePatterns is the curated noise-removal table applied after HTML
// stripping. Each pattern has a unit test against fixture text.
var noisePatterns = []NoisePattern{
	{
		Name:        "recommendation-widget",
		Pattern:     regexp.MustCompile(`(?is)(you might also like|recommended jobs|similar jobs|related positions|more jobs at)[\s\S]{0,400}?(\n\n|$)`),
		Replacement: "\n\n",
	},
	{
		Name:        "salary-comparison-block",
		Pattern:     regexp.MustCompile(`(?is)(compare salar(y|ies)|salary (estimate|insights|benchmark)s?|average (pay|salary) for)[\s\S]{0,300}?(\n\n|$)`),
		Replacement: "\n\n",
	},
	{
		Name:        "cookie-banner",
		Pattern:     regexp.MustCompile(`(?is)(we use cookies|this (web)?site uses cookies|accept (all )?cookies|cookie (policy|settings|preferences))[\s\S]{0,300}?(\n\n|$)`),
		Replacement: "\n\n",
	},
	{
		Name:        "apply-boilerplate",
		Pattern:     regexp.MustCompile(`(?im)^[ \t]*(\[?apply (now|here|today|for this (job|position))\]?\S*|click here to apply|submit your (cv|resume|application))[.!]?[ \t]*$`),
		Replacement: "",
	},
	{
		Name:        "newsletter-prompt",
		Pattern:     regexp.MustCompile(`(?is)(subscribe to our newsletter|sign up for (job )?alerts|get similar jobs (in|by) (your inbox|email))[\s\S]{0,250}?(\n\n|$)`),
		Replacement: "\n\n",
	},
	{
		Name:        "script-leakage",
		Pattern:     regexp.MustCompile(`(?is)(window\.\w+\s*=|document\.\w+\(|function\s*\(\s*\)\s*\{)[\s\S]{0,500}?(\};?|\n\n|$)`),
		Replacement: "",
	},
	{
		Name:        "css-leakage",
		Pattern:     regexp.MustCompile(`(?s)\.[\w-]+\s*\{[^}]{0,400}\}`),
		Replacement: "",
	},
	{
		Name:        "share-buttons",
		Pattern:     regexp.MustCompile(`(?im)^[ \t]*(share (this job|on)|tweet|post to linkedin|copy link)[ \t]*$`),
		Replacement: "",
	},
}

// NoiseTableVersion exposes the current pattern table version.
func NoiseTableVersion() int { return noiseTableVersion }

// Patterns returns the active noise table (read-only by convention).
func Patterns() []NoisePattern { return noisePatterns }

// RemoveNoise applies the noise table to cleaned text. A result shorter
// than MinDescriptionLength is treated as leftover chrome rather than a
// real description and dropped entirely.
func RemoveNoise(s string) string {
	for _, p := range noisePatterns {
		s = p.Pattern.ReplaceAllString(s, p.Replacement)
	}
	s = collapseBlankLines(s)
	if len(strings.TrimSpace(s)) < MinDescriptionLength {
		return ""
	}
	return s
}
