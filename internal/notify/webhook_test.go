package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainboard/jobs-crawler/internal/ingest"
)

func TestWebhook_DeliversSummary(t *testing.T) {
	t.Parallel()

	var got ingest.RunSummary
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	summary := ingest.RunSummary{
		RunID:          "run-42",
		Started:        time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
		TotalProcessed: 17,
		TotalNew:       5,
		Sources: []ingest.SourceResult{
			{Name: "greenhouse", Status: ingest.SourceSucceeded, Found: 17, Saved: 17, New: 5},
		},
	}

	err := NewWebhook(server.URL, time.Second).Notify(context.Background(), summary)
	require.NoError(t, err)
	require.Equal(t, summary, got)
}

func TestWebhook_NonSuccessStatusIsAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	err := NewWebhook(server.URL, time.Second).Notify(context.Background(), ingest.RunSummary{RunID: "run-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "502")
}

func TestWebhook_UnreachableEndpoint(t *testing.T) {
	t.Parallel()

	err := NewWebhook("http://127.0.0.1:1", time.Second).Notify(context.Background(), ingest.RunSummary{})
	require.Error(t, err)
}

func TestNoop_AlwaysSucceeds(t *testing.T) {
	t.Parallel()

	require.NoError(t, Noop{}.Notify(context.Background(), ingest.RunSummary{RunID: "run-1"}))
}
