package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/fetch"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/normalize"
)

const leverAPIBase = "https://api.lever.co/v0/postings"

// LeverOrg identifies one company's posting list on the Lever API.
type LeverOrg struct {
	Slug    string
	Company string
}

// LeverConfig configures the Lever adapter.
type LeverConfig struct {
	Orgs []LeverOrg
}

// Lever crawls the public Lever postings API. The summary payload already
// carries descriptions, so there is no detail round-trip.
type Lever struct {
	fetcher Fetcher
	cfg     LeverConfig
	logger  *zap.Logger
}

// NewLever builds the adapter.
func NewLever(fetcher Fetcher, cfg LeverConfig, logger *zap.Logger) *Lever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lever{fetcher: fetcher, cfg: cfg, logger: logger}
}

// Name implements ingest.SourceAdapter.
func (l *Lever) Name() string { return "lever" }

type leverPosting struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	HostedURL  string `json:"hostedUrl"`
	CreatedAt  int64  `json:"createdAt"`
	Categories struct {
		Location   string `json:"location"`
		Commitment string `json:"commitment"`
		Team       string `json:"team"`
	} `json:"categories"`
	Description string `json:"description"`
	Lists       []struct {
		Text    string `json:"text"`
		Content string `json:"content"`
	} `json:"lists"`
	Tags []string `json:"tags"`
}

// Crawl fetches every configured org. Org-level failures are collected and
// returned together with the records from the orgs that succeeded.
func (l *Lever) Crawl(ctx context.Context) ([]ingest.RawJobRecord, error) {
	var records []ingest.RawJobRecord
	var firstErr error

	for _, org := range l.cfg.Orgs {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		orgRecords, err := l.crawlOrg(ctx, org)
		records = append(records, orgRecords...)
		if err != nil {
			l.logger.Warn("lever org failed",
				zap.String("org", org.Slug), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("org %s: %w", org.Slug, err)
			}
		}
	}
	return records, firstErr
}

func (l *Lever) crawlOrg(ctx context.Context, org LeverOrg) ([]ingest.RawJobRecord, error) {
	listURL := fmt.Sprintf("%s/%s?mode=json", leverAPIBase, org.Slug)
	payload, err := l.fetcher.Fetch(ctx, fetch.Request{URL: listURL, Source: l.Name()})
	if err != nil {
		return nil, err
	}

	var postings []leverPosting
	if err := json.Unmarshal(payload.Body, &postings); err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}

	records := make([]ingest.RawJobRecord, 0, len(postings))
	for _, posting := range postings {
		if posting.Text == "" || posting.HostedURL == "" {
			l.logger.Debug("lever posting skipped",
				zap.String("org", org.Slug), zap.String("id", posting.ID))
			continue
		}
		records = append(records, l.mapPosting(org, posting))
	}
	return records, nil
}

func (l *Lever) mapPosting(org LeverOrg, posting leverPosting) ingest.RawJobRecord {
	record := ingest.RawJobRecord{
		Title:          posting.Text,
		Company:        org.Company,
		URL:            posting.HostedURL,
		Location:       posting.Categories.Location,
		EmploymentType: posting.Categories.Commitment,
		Category:       posting.Categories.Team,
		Tags:           posting.Tags,
		Source:         l.Name(),
		Description:    l.renderDescription(posting),
	}
	if posting.CreatedAt > 0 {
		record.PostedAt = time.UnixMilli(posting.CreatedAt).UTC()
	}
	return record
}

// renderDescription joins the free-form description with the titled lists
// Lever splits requirements and benefits into.
func (l *Lever) renderDescription(posting leverPosting) string {
	var b strings.Builder
	b.WriteString(posting.Description)
	for _, list := range posting.Lists {
		if list.Text != "" {
			b.WriteString("\n\n## ")
			b.WriteString(list.Text)
			b.WriteString("\n")
		}
		b.WriteString(list.Content)
	}
	return normalize.Clean(b.String())
}
