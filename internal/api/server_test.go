package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/store/memory"
)

func testServer(t *testing.T) (*Server, *memory.Store, *RunLog) {
	t.Helper()
	store := memory.NewStore()
	runs := NewRunLog()
	return NewServer(store, runs, nil), store, runs
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, _, _ := testServer(t)
	rec := doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLastRun(t *testing.T) {
	t.Parallel()

	s, _, runs := testServer(t)

	rec := doRequest(t, s, http.MethodGet, "/v1/runs/last")
	require.Equal(t, http.StatusNotFound, rec.Code)

	runs.Record(ingest.RunSummary{RunID: "run-1", Started: time.Now().UTC(), TotalNew: 2})
	runs.Record(ingest.RunSummary{RunID: "run-2", Started: time.Now().UTC(), TotalNew: 7})

	rec = doRequest(t, s, http.MethodGet, "/v1/runs/last")
	require.Equal(t, http.StatusOK, rec.Code)

	var got ingest.RunSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "run-2", got.RunID)
	require.Equal(t, 7, got.TotalNew)
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	s, _, runs := testServer(t)
	runs.Record(ingest.RunSummary{RunID: "run-1"})
	runs.Record(ingest.RunSummary{RunID: "run-2"})

	rec := doRequest(t, s, http.MethodGet, "/v1/runs/")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Runs []ingest.RunSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Runs, 2)
	require.Equal(t, "run-1", got.Runs[0].RunID)
}

func TestSearchJobs(t *testing.T) {
	t.Parallel()

	s, store, _ := testServer(t)
	_, err := store.UpsertByURL(context.Background(), ingest.CanonicalJob{
		Title: "Protocol Engineer", Company: "Chainrail",
		URL: "https://x/1", Source: "greenhouse", IsActive: true,
	})
	require.NoError(t, err)

	rec := doRequest(t, s, http.MethodGet, "/v1/jobs?company=chainrail")
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Jobs  []ingest.CanonicalJob `json:"jobs"`
		Count int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, 1, got.Count)
	require.Equal(t, "Protocol Engineer", got.Jobs[0].Title)

	rec = doRequest(t, s, http.MethodGet, "/v1/jobs")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunLog_EvictsPastCapacity(t *testing.T) {
	t.Parallel()

	runs := NewRunLog()
	for i := 0; i < runLogCapacity+5; i++ {
		runs.Record(ingest.RunSummary{RunID: string(rune('a' + i))})
	}
	require.Len(t, runs.All(), runLogCapacity)
	last, ok := runs.Last()
	require.True(t, ok)
	require.Equal(t, string(rune('a'+runLogCapacity+4)), last.RunID)
}
