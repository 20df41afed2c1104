package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/fetch"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/normalize"
)

// RSSConfig configures the RSS adapter.
type RSSConfig struct {
	FeedURLs []string
}

// RSS crawls job-board syndication feeds. Feed items usually carry titles
// shaped like "Role at Company"; the split is a heuristic and items that do
// not match keep the whole title with an empty company, leaving rejection
// to validation.
type RSS struct {
	fetcher Fetcher
	cfg     RSSConfig
	parser  *gofeed.Parser
	logger  *zap.Logger
}

// NewRSS builds the adapter.
func NewRSS(fetcher Fetcher, cfg RSSConfig, logger *zap.Logger) *RSS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSS{fetcher: fetcher, cfg: cfg, parser: gofeed.NewParser(), logger: logger}
}

// Name implements ingest.SourceAdapter.
func (r *RSS) Name() string { return "rss" }

// Crawl fetches and parses every configured feed. Feed-level failures are
// collected and returned together with the items from the feeds that
// parsed.
func (r *RSS) Crawl(ctx context.Context) ([]ingest.RawJobRecord, error) {
	var records []ingest.RawJobRecord
	var firstErr error

	for _, feedURL := range r.cfg.FeedURLs {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		feedRecords, err := r.crawlFeed(ctx, feedURL)
		records = append(records, feedRecords...)
		if err != nil {
			r.logger.Warn("rss feed failed", zap.String("feed", feedURL), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("feed %s: %w", feedURL, err)
			}
		}
	}
	return records, firstErr
}

func (r *RSS) crawlFeed(ctx context.Context, feedURL string) ([]ingest.RawJobRecord, error) {
	payload, err := r.fetcher.Fetch(ctx, fetch.Request{URL: feedURL, Source: r.Name()})
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.ParseString(string(payload.Body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	records := make([]ingest.RawJobRecord, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			r.logger.Debug("rss item without link skipped",
				zap.String("feed", feedURL), zap.String("title", item.Title))
			continue
		}
		title, company := splitRoleAtCompany(item.Title)
		record := ingest.RawJobRecord{
			Title:       title,
			Company:     company,
			URL:         item.Link,
			Tags:        item.Categories,
			Source:      r.Name(),
			Description: normalize.Clean(firstNonEmpty(item.Content, item.Description)),
		}
		if item.PublishedParsed != nil {
			record.PostedAt = item.PublishedParsed.UTC()
		}
		records = append(records, record)
	}
	return records, nil
}

// splitRoleAtCompany splits titles like "Backend Engineer at Chainrail" on
// the last " at ", so roles containing the word keep it.
func splitRoleAtCompany(title string) (role, company string) {
	idx := strings.LastIndex(title, " at ")
	if idx < 0 {
		return strings.TrimSpace(title), ""
	}
	return strings.TrimSpace(title[:idx]), strings.TrimSpace(title[idx+len(" at "):])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
