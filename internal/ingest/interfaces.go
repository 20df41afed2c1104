package ingest

import (
	"context"
	"time"
)

// UpsertResult reports what the store did with an upsert-by-URL.
type UpsertResult struct {
	ID    string
	IsNew bool
}

// Store is the keyed document store the pipeline writes to. The upsert must
// be atomic per URL: overlapping crawls of the same source must not lose
// updates.
type Store interface {
	UpsertByURL(ctx context.Context, job CanonicalJob) (UpsertResult, error)
	FindByURL(ctx context.Context, url string) (CanonicalJob, bool, error)
	FindActiveByCompany(ctx context.Context, companySubstring string) ([]CanonicalJob, error)
	UpdateEnrichment(ctx context.Context, id string, badges []Badge, backers []string, sector, officeLocation string) error
	Deactivate(ctx context.Context, id string) error
	AppendCrawlLog(ctx context.Context, entry CrawlLogEntry) error
}

// SourceAdapter turns one external source into raw records. A non-nil error
// with a non-empty slice means the adapter failed part-way; the records it
// did extract are still valid.
type SourceAdapter interface {
	Name() string
	Crawl(ctx context.Context) ([]RawJobRecord, error)
}

// Notifier delivers run summaries to an external channel. Delivery failures
// are best-effort and must never fail the crawl.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}

// Archive persists raw fetched payloads for later inspection.
type Archive interface {
	Put(ctx context.Context, source string, contentType string, body []byte) (string, error)
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}
