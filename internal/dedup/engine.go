// Package dedup validates raw adapter output and writes canonical records,
// resolving cross-source duplicates by normalized title and company.
package dedup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/metrics"
	"github.com/chainboard/jobs-crawler/internal/normalize"
)

const defaultEnrichTimeout = 15 * time.Second

// Enricher recomputes badges and registry fields for a saved record.
type Enricher interface {
	Enrich(ctx context.Context, url string) error
}

// Outcome reports what ValidateAndSave did with a record. Saved is true
// when the record was persisted or confirmed as a duplicate of an existing
// record; IsNew is true only for a first-time insert.
type Outcome struct {
	Saved bool
	IsNew bool
}

// Engine is the single writer to the store within a crawl run.
type Engine struct {
	store      ingest.Store
	priorities PriorityTable
	clock      ingest.Clock
	logger     *zap.Logger
	enricher   Enricher

	enrichTimeout time.Duration
	wg            sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithPriorities replaces the default source priority table.
func WithPriorities(table PriorityTable) Option {
	return func(e *Engine) {
		if table != nil {
			e.priorities = table
		}
	}
}

// WithClock injects a clock, used by tests for deterministic timestamps.
func WithClock(clock ingest.Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithEnricher wires the badge engine, triggered best-effort after every
// successful save.
func WithEnricher(enricher Enricher) Option {
	return func(e *Engine) {
		e.enricher = enricher
	}
}

// NewEngine builds an engine over the given store.
func NewEngine(store ingest.Store, opts ...Option) *Engine {
	e := &Engine{
		store:         store,
		priorities:    DefaultPriorities(),
		clock:         systemClock{},
		logger:        zap.NewNop(),
		enrichTimeout: defaultEnrichTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// ValidateAndSave runs the full validate, dedup, upsert sequence for one
// raw record. Invalid records are logged and reported as {false, false};
// only store failures produce a non-nil error.
func (e *Engine) ValidateAndSave(ctx context.Context, raw ingest.RawJobRecord) (Outcome, error) {
	if err := validate(raw); err != nil {
		e.logger.Warn("record rejected",
			zap.String("source", raw.Source),
			zap.String("url", raw.URL),
			zap.Error(err),
		)
		metrics.ObserveJobSaved(raw.Source, "rejected")
		return Outcome{}, nil
	}

	dup, resolved, err := e.resolveDuplicates(ctx, raw)
	if err != nil {
		return Outcome{}, err
	}
	if resolved {
		metrics.ObserveJobSaved(raw.Source, "duplicate")
		e.triggerEnrichment(ctx, dup.URL)
		return Outcome{Saved: true, IsNew: false}, nil
	}

	job, err := e.buildCanonical(ctx, raw)
	if err != nil {
		return Outcome{}, err
	}
	result, err := e.store.UpsertByURL(ctx, job)
	if err != nil {
		return Outcome{}, fmt.Errorf("upsert %s: %w", raw.URL, err)
	}

	disposition := "updated"
	if result.IsNew {
		disposition = "new"
	}
	metrics.ObserveJobSaved(raw.Source, disposition)
	e.triggerEnrichment(ctx, job.URL)
	return Outcome{Saved: true, IsNew: result.IsNew}, nil
}

// Wait blocks until all in-flight enrichment goroutines finish. Called by
// the orchestrator before building the run summary.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func validate(raw ingest.RawJobRecord) error {
	if utf8.RuneCountInString(strings.TrimSpace(raw.Title)) < 2 {
		return fmt.Errorf("title too short")
	}
	if strings.TrimSpace(raw.Company) == "" {
		return fmt.Errorf("company is empty")
	}
	if strings.TrimSpace(raw.Source) == "" {
		return fmt.Errorf("source is empty")
	}
	u, err := url.Parse(raw.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url %q is not an absolute http(s) url", raw.URL)
	}
	return nil
}

// resolveDuplicates looks for an active record describing the same posting
// at a different URL. When one exists with priority at least equal to the
// incoming source, the incoming record is a confirmed duplicate and the
// winner is returned; lower-priority matches are deactivated so the caller
// can insert the incoming record as the new canonical one.
func (e *Engine) resolveDuplicates(ctx context.Context, raw ingest.RawJobRecord) (ingest.CanonicalJob, bool, error) {
	existing, err := e.store.FindActiveByCompany(ctx, strings.TrimSpace(raw.Company))
	if err != nil {
		return ingest.CanonicalJob{}, false, fmt.Errorf("find by company %q: %w", raw.Company, err)
	}

	titleKey := normalize.NormalizeTitleKey(raw.Title)
	incomingPriority := e.priorities.Lookup(raw.Source)

	var losers []ingest.CanonicalJob
	for _, job := range existing {
		if job.URL == raw.URL {
			continue
		}
		if normalize.NormalizeTitleKey(job.Title) != titleKey {
			continue
		}
		if e.priorities.Lookup(job.Source) >= incomingPriority {
			if err := e.backfillDescription(ctx, job, raw); err != nil {
				return ingest.CanonicalJob{}, false, err
			}
			e.logger.Debug("duplicate kept existing record",
				zap.String("existing_url", job.URL),
				zap.String("incoming_url", raw.URL),
				zap.String("incoming_source", raw.Source),
			)
			return job, true, nil
		}
		losers = append(losers, job)
	}

	for _, job := range losers {
		if err := e.store.Deactivate(ctx, job.ID); err != nil {
			return ingest.CanonicalJob{}, false, fmt.Errorf("deactivate %s: %w", job.ID, err)
		}
		e.logger.Info("superseded lower-priority record",
			zap.String("deactivated_url", job.URL),
			zap.String("deactivated_source", job.Source),
			zap.String("incoming_source", raw.Source),
		)
	}
	return ingest.CanonicalJob{}, false, nil
}

// backfillDescription fills the winning record's description from the
// losing duplicate when the winner has none.
func (e *Engine) backfillDescription(ctx context.Context, winner ingest.CanonicalJob, raw ingest.RawJobRecord) error {
	if winner.Description != "" || strings.TrimSpace(raw.Description) == "" {
		return nil
	}
	winner.Description = raw.Description
	winner.UpdatedAt = e.clock.Now()
	if _, err := e.store.UpsertByURL(ctx, winner); err != nil {
		return fmt.Errorf("backfill description for %s: %w", winner.URL, err)
	}
	return nil
}

// buildCanonical maps the raw record onto the stored shape. First-time URLs
// get a fresh ID here so both store implementations receive a complete
// record; re-crawls carry over the prior record's immutable and
// enrichment-owned fields.
func (e *Engine) buildCanonical(ctx context.Context, raw ingest.RawJobRecord) (ingest.CanonicalJob, error) {
	now := e.clock.Now()
	job := ingest.CanonicalJob{
		Title:           raw.Title,
		Company:         raw.Company,
		URL:             raw.URL,
		Location:        raw.Location,
		EmploymentType:  raw.EmploymentType,
		Category:        raw.Category,
		Description:     raw.Description,
		SalaryMin:       raw.SalaryMin,
		SalaryMax:       raw.SalaryMax,
		SalaryCurrency:  raw.SalaryCurrency,
		Tags:            raw.Tags,
		Source:          raw.Source,
		CompanyLogo:     raw.CompanyLogo,
		CompanyWebsite:  raw.CompanyWebsite,
		IsActive:        true,
		PostedDate:      raw.PostedAt,
		CrawledAt:       now,
		UpdatedAt:       now,
		LastValidatedAt: &now,
	}
	if job.PostedDate.IsZero() {
		job.PostedDate = now
	}

	prior, found, err := e.store.FindByURL(ctx, raw.URL)
	if err != nil {
		return ingest.CanonicalJob{}, fmt.Errorf("find by url %s: %w", raw.URL, err)
	}
	if !found {
		job.ID = uuid.NewString()
		return job, nil
	}

	job.ID = prior.ID
	job.PostedDate = prior.PostedDate
	job.CrawledAt = prior.CrawledAt
	if job.Description == "" {
		job.Description = prior.Description
	}
	// Enrichment-owned fields survive the re-crawl; the badge engine
	// recomputes them after the save.
	job.Badges = prior.Badges
	job.Backers = prior.Backers
	job.Sector = prior.Sector
	job.OfficeLocation = prior.OfficeLocation
	job.HasToken = prior.HasToken
	job.Stage = prior.Stage
	return job, nil
}

// triggerEnrichment recomputes badges for the record at url in the
// background. Failures are logged and never affect the save.
func (e *Engine) triggerEnrichment(ctx context.Context, url string) {
	if e.enricher == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		enrichCtx, cancel := context.WithTimeout(detached, e.enrichTimeout)
		defer cancel()
		if err := e.enricher.Enrich(enrichCtx, url); err != nil {
			e.logger.Warn("enrichment failed", zap.String("url", url), zap.Error(err))
		}
	}()
}
