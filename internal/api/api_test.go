package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/maltedev/catalog-crawler/internal/models"
)

type stubOutbox struct {
	counts map[string]int64
	err    error
}

func (s stubOutbox) CountByStatus(context.Context) (map[string]int64, error) {
	return s.counts, s.err
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return r
}

func TestRegistryLifecycle(t *testing.T) {
	r := newTestRegistry()

	r.StartSite("run-1", "amazon", "browser")
	r.StartSite("run-1", "shopee", "browser")

	run, ok := r.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, RunStatusRunning, run.Status)
	require.Len(t, run.Sites, 2)

	out := &models.Output{Products: make([]models.Product, 3), Categories: make([]models.Category, 1)}
	terms := []models.TermSummary{{Site: "amazon", Term: "mouse", Total: 3, WithPrice: 2}}
	r.FinishSite("run-1", "amazon", out, terms, nil)

	run, _ = r.Get("run-1")
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Equal(t, RunStatusCompleted, run.Sites[0].Status)
	assert.Equal(t, 3, run.Sites[0].Products)
	assert.NotNil(t, run.Sites[0].CompletedAt)

	r.FinishSite("run-1", "shopee", nil, []models.TermSummary{{Term: "case", Skipped: true}}, errors.New("blocked"))

	run, _ = r.Get("run-1")
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "blocked", run.Sites[1].Error)

	stats := r.Stats()
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailedSites)
	assert.Equal(t, 3, stats.TotalProducts)
	assert.Equal(t, 1, stats.TermsSkipped)
	assert.InDelta(t, 2.0/3.0, stats.PriceRatio, 0.0001)
}

func TestRegistryListNewestFirst(t *testing.T) {
	r := newTestRegistry()
	r.StartSite("old", "ebay", "static")
	r.StartSite("new", "ebay", "static")

	runs := r.List()
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)

	// returned runs are copies
	runs[0].Sites[0].Status = "tampered"
	again, _ := r.Get("new")
	assert.Equal(t, RunStatusRunning, again.Sites[0].Status)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		outbox     OutboxCounter
		wantStatus int
		wantBody   string
	}{
		{"no outbox", nil, http.StatusOK, "ok"},
		{"healthy outbox", stubOutbox{counts: map[string]int64{"pending": 3}}, http.StatusOK, "ok"},
		{"backlog", stubOutbox{counts: map[string]int64{"pending": 1001}}, http.StatusOK, "warning"},
		{"dead letters", stubOutbox{counts: map[string]int64{"dead_letter": 101}}, http.StatusServiceUnavailable, "error"},
		{"outbox down", stubOutbox{err: errors.New("conn refused")}, http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewHandlers(NewRegistry(), tt.outbox, nil))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
		})
	}
}

func TestRunRoutes(t *testing.T) {
	reg := newTestRegistry()
	reg.StartSite("run-7", "walmart", "browser")
	router := NewRouter(NewHandlers(reg, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/run-7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var run Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run-7", run.ID)
	assert.Equal(t, "walmart", run.Sites[0].Site)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var runs []Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"running_sites":1`)
}

func TestMetricsRoute(t *testing.T) {
	router := NewRouter(NewHandlers(NewRegistry(), nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestServerStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := NewServer("127.0.0.1:0", NewHandlers(NewRegistry(), nil, nil), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
