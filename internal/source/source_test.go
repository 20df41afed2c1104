package source

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chainboard/jobs-crawler/internal/fetch"
)

// fakeFetcher serves canned payloads keyed by URL and records the order of
// requests.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string]string
	errs     map[string]error
	calls    []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		payloads: make(map[string]string),
		errs:     make(map[string]error),
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, req fetch.Request) (fetch.Payload, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.URL)
	f.mu.Unlock()

	if err, ok := f.errs[req.URL]; ok {
		return fetch.Payload{}, err
	}
	body, ok := f.payloads[req.URL]
	if !ok {
		return fetch.Payload{}, fmt.Errorf("no canned payload for %s", req.URL)
	}
	return fetch.Payload{
		URL:        req.URL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
	}, nil
}

func (f *fakeFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}
