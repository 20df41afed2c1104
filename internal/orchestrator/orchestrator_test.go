package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainboard/jobs-crawler/internal/dedup"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeAdapter struct {
	name    string
	records []ingest.RawJobRecord
	err     error
	// crawl overrides the canned behaviour when set.
	crawl func(ctx context.Context) ([]ingest.RawJobRecord, error)
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Crawl(ctx context.Context) ([]ingest.RawJobRecord, error) {
	if f.crawl != nil {
		return f.crawl(ctx)
	}
	return f.records, f.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []ingest.RunSummary
	err       error
}

func (f *fakeNotifier) Notify(_ context.Context, summary ingest.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, summary)
	return f.err
}

func (f *fakeNotifier) delivered() []ingest.RunSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ingest.RunSummary(nil), f.summaries...)
}

func record(title, company, url, source string) ingest.RawJobRecord {
	return ingest.RawJobRecord{Title: title, Company: company, URL: url, Source: source}
}

func TestRun_AggregatesSources(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)
	notifier := &fakeNotifier{}

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "greenhouse", records: []ingest.RawJobRecord{
			record("Protocol Engineer", "Chainrail", "https://x/1", "greenhouse"),
			record("Backend Engineer", "Nodewatch", "https://x/2", "greenhouse"),
		}},
		&fakeAdapter{name: "rss", records: []ingest.RawJobRecord{
			record("Smart Contract Auditor", "Quorum Labs", "https://x/3", "rss"),
			// Invalid: dropped by validation, not saved.
			record("", "Quorum Labs", "https://x/4", "rss"),
		}},
	}

	o := New(adapters, engine, notifier, newFakeClock(), nil, Config{})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, summary.TotalProcessed)
	require.Equal(t, 3, summary.TotalNew)
	require.Zero(t, summary.SourcesFailed)
	require.Len(t, store.All(), 3)

	require.Len(t, summary.Sources, 2)
	byName := map[string]ingest.SourceResult{}
	for _, r := range summary.Sources {
		byName[r.Name] = r
	}
	require.Equal(t, ingest.SourceSucceeded, byName["greenhouse"].Status)
	require.Equal(t, 2, byName["greenhouse"].Saved)
	require.Equal(t, 2, byName["rss"].Found)
	require.Equal(t, 1, byName["rss"].Saved)

	delivered := notifier.delivered()
	require.Len(t, delivered, 1)
	require.Equal(t, summary.RunID, delivered[0].RunID)
}

func TestRun_PanicDoesNotSinkSiblings(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "bad", crawl: func(context.Context) ([]ingest.RawJobRecord, error) {
			panic("selector exploded")
		}},
		&fakeAdapter{name: "good", records: []ingest.RawJobRecord{
			record("Protocol Engineer", "Chainrail", "https://x/1", "good"),
		}},
	}

	o := New(adapters, engine, nil, newFakeClock(), nil, Config{Concurrency: 1})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.SourcesFailed)
	require.Equal(t, 1, summary.TotalProcessed)
	require.Equal(t, ingest.SourceFailed, summary.Sources[0].Status)
	require.Contains(t, summary.Sources[0].ErrorText, "panic")
	require.Equal(t, ingest.SourceSucceeded, summary.Sources[1].Status)
}

func TestRun_FailedSourceKeepsPartialBatch(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{
			name: "greenhouse",
			records: []ingest.RawJobRecord{
				record("Protocol Engineer", "Chainrail", "https://x/1", "greenhouse"),
			},
			err: errors.New("board deadco: status 500"),
		},
	}

	o := New(adapters, engine, nil, newFakeClock(), nil, Config{})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, summary.SourcesFailed)
	require.Equal(t, 1, summary.TotalProcessed, "partial batches are still saved")
	require.Equal(t, ingest.SourceFailed, summary.Sources[0].Status)
	require.Contains(t, summary.Sources[0].ErrorText, "deadco")
}

func TestRun_BudgetSkipsLateSources(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)
	clock := newFakeClock()

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "slow", crawl: func(context.Context) ([]ingest.RawJobRecord, error) {
			// The first source consumes the entire budget.
			clock.Advance(31 * time.Minute)
			return []ingest.RawJobRecord{record("Protocol Engineer", "Chainrail", "https://x/1", "slow")}, nil
		}},
		&fakeAdapter{name: "late", records: []ingest.RawJobRecord{
			record("Backend Engineer", "Nodewatch", "https://x/2", "late"),
		}},
	}

	o := New(adapters, engine, nil, clock, nil, Config{Concurrency: 1, RunBudget: 30 * time.Minute})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, ingest.SourceSucceeded, summary.Sources[0].Status)
	require.Equal(t, ingest.SourceSkipped, summary.Sources[1].Status)
	require.Equal(t, "run budget exhausted", summary.Sources[1].ErrorText)
	require.Equal(t, 1, summary.TotalProcessed)
	require.Len(t, store.All(), 1)
}

func TestRun_ConcurrencyIsBounded(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)

	var inFlight, peak atomic.Int32
	slowCrawl := func(context.Context) ([]ingest.RawJobRecord, error) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		return nil, nil
	}

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "a", crawl: slowCrawl},
		&fakeAdapter{name: "b", crawl: slowCrawl},
		&fakeAdapter{name: "c", crawl: slowCrawl},
		&fakeAdapter{name: "d", crawl: slowCrawl},
	}

	o := New(adapters, engine, nil, newFakeClock(), nil, Config{Concurrency: 2})
	_, err := o.Run(context.Background())
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_SourceTimeoutCancelsCrawl(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "hang", crawl: func(ctx context.Context) ([]ingest.RawJobRecord, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}},
	}

	o := New(adapters, engine, nil, newFakeClock(), nil, Config{
		SourceTimeouts: map[string]time.Duration{"hang": 20 * time.Millisecond},
	})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, ingest.SourceFailed, summary.Sources[0].Status)
	require.Contains(t, summary.Sources[0].ErrorText, "context deadline exceeded")
}

type failingValidator struct{}

func (failingValidator) ValidateAndSave(context.Context, ingest.RawJobRecord) (dedup.Outcome, error) {
	return dedup.Outcome{}, errors.New("connection refused")
}

func (failingValidator) Wait() {}

func TestRun_StoreFailureIsCatastrophicWhenNothingSaved(t *testing.T) {
	t.Parallel()

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "greenhouse", records: []ingest.RawJobRecord{
			record("Protocol Engineer", "Chainrail", "https://x/1", "greenhouse"),
		}},
	}

	o := New(adapters, failingValidator{}, nil, newFakeClock(), nil, Config{})
	summary, err := o.Run(context.Background())
	require.Error(t, err)
	require.Zero(t, summary.TotalProcessed)
	require.Equal(t, 1, summary.SourcesFailed)
}

func TestRun_NotifierFailureDoesNotFailRun(t *testing.T) {
	t.Parallel()

	store := memory.NewStore()
	engine := dedup.NewEngine(store)
	notifier := &fakeNotifier{err: errors.New("webhook down")}

	adapters := []ingest.SourceAdapter{
		&fakeAdapter{name: "greenhouse", records: []ingest.RawJobRecord{
			record("Protocol Engineer", "Chainrail", "https://x/1", "greenhouse"),
		}},
	}

	o := New(adapters, engine, notifier, newFakeClock(), nil, Config{})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, summary.TotalProcessed)
	require.Len(t, notifier.delivered(), 1)
}
