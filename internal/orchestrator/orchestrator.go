// Package orchestrator runs the configured source adapters as one crawl
// run: bounded concurrency, per-source timeouts, an overall wall-clock
// budget, and a summary of what happened.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/dedup"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/metrics"
)

const (
	defaultConcurrency   = 3
	defaultSourceTimeout = 5 * time.Minute
	defaultRunBudget     = 30 * time.Minute
)

// Validator is the slice of the dedup engine the orchestrator uses.
type Validator interface {
	ValidateAndSave(ctx context.Context, raw ingest.RawJobRecord) (dedup.Outcome, error)
	Wait()
}

// Config bounds a crawl run.
type Config struct {
	// Concurrency caps how many adapters run at once.
	Concurrency int
	// SourceTimeout bounds a single adapter invocation.
	SourceTimeout time.Duration
	// SourceTimeouts overrides the timeout per source name, for
	// high-volume sources that legitimately run long.
	SourceTimeouts map[string]time.Duration
	// RunBudget is the overall wall-clock allowance. Sources not yet
	// admitted when it runs out are skipped.
	RunBudget time.Duration
}

// Orchestrator drives one crawl run end to end.
type Orchestrator struct {
	adapters  []ingest.SourceAdapter
	validator Validator
	notifier  ingest.Notifier
	clock     ingest.Clock
	logger    *zap.Logger
	cfg       Config
}

// New builds an orchestrator. A nil notifier disables notification.
func New(
	adapters []ingest.SourceAdapter,
	validator Validator,
	notifier ingest.Notifier,
	clock ingest.Clock,
	logger *zap.Logger,
	cfg Config,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = defaultSourceTimeout
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = defaultRunBudget
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		adapters:  adapters,
		validator: validator,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run crawls every configured source and returns the aggregated summary.
// Per-source failures and panics are contained; the returned error is
// non-nil only when the store rejected every write the run attempted.
func (o *Orchestrator) Run(ctx context.Context) (ingest.RunSummary, error) {
	started := o.clock.Now()
	runID := uuid.NewString()
	o.logger.Info("crawl run started",
		zap.String("run_id", runID), zap.Int("sources", len(o.adapters)))

	results := make([]ingest.SourceResult, len(o.adapters))
	sem := make(chan struct{}, o.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, adapter := range o.adapters {
		sem <- struct{}{}

		// Budget gate: a source already running may finish, but no new
		// source is admitted past the allowance.
		if o.clock.Now().Sub(started) > o.cfg.RunBudget {
			<-sem
			results[i] = ingest.SourceResult{
				Name:      adapter.Name(),
				Status:    ingest.SourceSkipped,
				ErrorText: "run budget exhausted",
			}
			o.logger.Warn("source skipped, run budget exhausted",
				zap.String("run_id", runID), zap.String("source", adapter.Name()))
			continue
		}

		wg.Add(1)
		go func(i int, adapter ingest.SourceAdapter) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.runSource(ctx, adapter)
		}(i, adapter)
	}
	wg.Wait()
	o.validator.Wait()

	summary := o.summarize(runID, started, results)
	metrics.ObserveRunDuration(summary.Duration)
	o.logger.Info("crawl run finished",
		zap.String("run_id", runID),
		zap.Duration("duration", summary.Duration),
		zap.Int("processed", summary.TotalProcessed),
		zap.Int("new", summary.TotalNew),
		zap.Int("sources_failed", summary.SourcesFailed))

	o.deliver(ctx, summary)

	if summary.TotalProcessed == 0 {
		if storeErr := firstStoreError(results); storeErr != "" {
			return summary, fmt.Errorf("store rejected every write: %s", storeErr)
		}
	}
	return summary, nil
}

// runSource executes one adapter with its timeout and feeds its records
// through the validator. Panics are contained so sibling sources keep
// running.
func (o *Orchestrator) runSource(ctx context.Context, adapter ingest.SourceAdapter) (result ingest.SourceResult) {
	name := adapter.Name()
	result = ingest.SourceResult{Name: name, Status: ingest.SourceSucceeded}

	defer func() {
		if r := recover(); r != nil {
			result.Status = ingest.SourceFailed
			result.ErrorText = fmt.Sprintf("panic: %v", r)
			metrics.ObserveSourceFailed(name)
			o.logger.Error("source panicked",
				zap.String("source", name), zap.Any("panic", r))
		}
	}()

	timeout := o.cfg.SourceTimeout
	if override, ok := o.cfg.SourceTimeouts[name]; ok && override > 0 {
		timeout = override
	}
	sourceCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	records, crawlErr := adapter.Crawl(sourceCtx)
	result.Found = len(records)
	if crawlErr != nil {
		result.Status = ingest.SourceFailed
		result.ErrorText = crawlErr.Error()
		metrics.ObserveSourceFailed(name)
		o.logger.Warn("source crawl failed",
			zap.String("source", name),
			zap.Int("partial_records", len(records)),
			zap.Error(crawlErr))
	}

	for _, record := range records {
		outcome, err := o.validator.ValidateAndSave(ctx, record)
		if err != nil {
			// A store failure is not worth retrying record by record;
			// report the source and move on.
			result.Status = ingest.SourceFailed
			result.ErrorText = storeErrPrefix + err.Error()
			metrics.ObserveSourceFailed(name)
			o.logger.Error("store failure while saving",
				zap.String("source", name), zap.Error(err))
			return result
		}
		if outcome.Saved {
			result.Saved++
		}
		if outcome.IsNew {
			result.New++
		}
	}
	return result
}

const storeErrPrefix = "store: "

func (o *Orchestrator) summarize(runID string, started time.Time, results []ingest.SourceResult) ingest.RunSummary {
	summary := ingest.RunSummary{
		RunID:    runID,
		Started:  started,
		Duration: o.clock.Now().Sub(started),
		Sources:  results,
	}
	for _, r := range results {
		summary.TotalProcessed += r.Saved
		summary.TotalNew += r.New
		if r.Status == ingest.SourceFailed {
			summary.SourcesFailed++
		}
	}
	return summary
}

// deliver sends the summary through the notifier. Best effort only.
func (o *Orchestrator) deliver(ctx context.Context, summary ingest.RunSummary) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, summary); err != nil {
		o.logger.Warn("run summary delivery failed",
			zap.String("run_id", summary.RunID), zap.Error(err))
	}
}

func firstStoreError(results []ingest.SourceResult) string {
	for _, r := range results {
		if r.Status == ingest.SourceFailed && len(r.ErrorText) > len(storeErrPrefix) &&
			r.ErrorText[:len(storeErrPrefix)] == storeErrPrefix {
			return r.ErrorText
		}
	}
	return ""
}
