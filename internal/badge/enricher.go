package badge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/registry"
)

// Enricher recomputes badges for a saved job and backfills
// backers/sector/office-location from the company registry. Registry data
// only ever fills empty fields; crawled or curated values are never
// overwritten.
type Enricher struct {
	store    ingest.Store
	registry *registry.Registry
	clock    ingest.Clock
	logger   *zap.Logger
}

// NewEnricher builds an Enricher.
func NewEnricher(store ingest.Store, reg *registry.Registry, clock ingest.Clock, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		store:    store,
		registry: reg,
		clock:    clock,
		logger:   logger,
	}
}

// Apply merges registry data into the job (empty fields only) and returns
// the job with its recomputed badge set. Pure with respect to the store.
func (e *Enricher) Apply(job ingest.CanonicalJob) ingest.CanonicalJob {
	if e.registry != nil {
		if c, ok := e.registry.Lookup(job.Company); ok {
			if len(job.Backers) == 0 {
				job.Backers = append([]string(nil), c.Backers...)
			}
			if job.Sector == "" {
				job.Sector = c.Sector
			}
			if job.OfficeLocation == "" {
				job.OfficeLocation = c.OfficeLocation
			}
			if job.Stage == "" {
				job.Stage = c.Stage
			}
			if job.CompanyWebsite == "" {
				job.CompanyWebsite = c.Website
			}
			if !job.HasToken {
				job.HasToken = c.HasToken
			}
		}
	}
	job.Badges = ComputeBadges(job, e.clock.Now())
	return job
}

// Enrich loads the job by URL, applies enrichment and writes the derived
// fields back. Called best-effort after every save; a failure here must not
// fail the job save.
func (e *Enricher) Enrich(ctx context.Context, url string) error {
	job, found, err := e.store.FindByURL(ctx, url)
	if err != nil {
		return fmt.Errorf("load job for enrichment: %w", err)
	}
	if !found {
		return fmt.Errorf("job %q not found for enrichment", url)
	}

	enriched := e.Apply(job)
	if err := e.store.UpdateEnrichment(ctx, job.ID, enriched.Badges, enriched.Backers, enriched.Sector, enriched.OfficeLocation); err != nil {
		return fmt.Errorf("write enrichment: %w", err)
	}
	e.logger.Debug("job enriched",
		zap.String("url", url),
		zap.Int("badges", len(enriched.Badges)),
	)
	return nil
}
