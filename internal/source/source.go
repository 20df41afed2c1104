// Package source implements the per-source extraction adapters. Each
// adapter fetches through the resilient client, maps vendor payloads onto
// raw records, and tolerates per-item failures: malformed items are skipped
// and logged, and a partial batch is returned alongside any error.
package source

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/chainboard/jobs-crawler/internal/fetch"
)

// Fetcher is the slice of the fetch client adapters depend on.
type Fetcher interface {
	Fetch(ctx context.Context, req fetch.Request) (fetch.Payload, error)
}

// politeSleep pauses between sequential requests to the same vendor,
// adding jitter up to half the base delay. Returns early when the context
// is cancelled.
func politeSleep(ctx context.Context, base time.Duration) {
	if base <= 0 {
		return
	}
	d := base + randomJitter(base/2)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return 0
	}
	return time.Duration(n.Int64())
}
