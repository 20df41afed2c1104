package api

import (
	"sync"

	"github.com/chainboard/jobs-crawler/internal/ingest"
)

const runLogCapacity = 20

// RunLog keeps the most recent run summaries in memory for the status
// endpoints. The crawl loop records into it after every run.
type RunLog struct {
	mu   sync.RWMutex
	runs []ingest.RunSummary
}

// NewRunLog builds an empty run log.
func NewRunLog() *RunLog {
	return &RunLog{}
}

// Record appends a summary, evicting the oldest past capacity.
func (l *RunLog) Record(summary ingest.RunSummary) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, summary)
	if len(l.runs) > runLogCapacity {
		l.runs = l.runs[len(l.runs)-runLogCapacity:]
	}
}

// Last returns the most recent summary.
func (l *RunLog) Last() (ingest.RunSummary, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.runs) == 0 {
		return ingest.RunSummary{}, false
	}
	return l.runs[len(l.runs)-1], true
}

// All returns the retained summaries, oldest first.
func (l *RunLog) All() []ingest.RunSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]ingest.RunSummary(nil), l.runs...)
}
