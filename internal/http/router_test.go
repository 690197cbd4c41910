package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iago/review-radar-back/internal/domain"
	"github.com/iago/review-radar-back/internal/http/handlers"
	"github.com/iago/review-radar-back/internal/repository"
	"github.com/iago/review-radar-back/internal/service"
	"github.com/iago/review-radar-back/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScraper struct {
	result *domain.ScrapeResult
	gate   chan struct{}
}

func (s stubScraper) Scrape(ctx context.Context, _ string) (*domain.ScrapeResult, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.result, nil
}

type stubClassifier struct{}

func (stubClassifier) Classify(_ context.Context, reviews []domain.Review) (*domain.SentimentResult, error) {
	annotations := make([]domain.SentimentAnnotation, len(reviews))
	for i := range annotations {
		annotations[i] = domain.SentimentAnnotation{Label: domain.SentimentPositive, Score: 0.9}
	}
	return &domain.SentimentResult{Annotations: annotations, Classifier: "stub"}, nil
}

type downStore struct{}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

type testServer struct {
	handler    http.Handler
	repo       *repository.MemoryJobsRepository
	dispatcher *worker.Dispatcher
}

func newTestServer(t *testing.T, scraper worker.Scraper, health repository.HealthChecker) testServer {
	t.Helper()
	repo := repository.NewMemoryJobsRepository()
	processor := worker.NewProcessor(repo, scraper, stubClassifier{}, nil, nil)
	dispatcher := worker.NewDispatcher(processor, 2, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dispatcher.Shutdown(ctx)
	})

	jobs := service.NewJobsService(repo, dispatcher, nil)
	handler := NewRouter(RouterDependencies{
		API:         handlers.NewAPI(jobs, health, nil),
		CORSOrigins: []string{"http://localhost:3000"},
	})
	return testServer{handler: handler, repo: repo, dispatcher: dispatcher}
}

func (s testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	request := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	request.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	s.handler.ServeHTTP(recorder, request)

	var decoded map[string]any
	if recorder.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	}
	return recorder, decoded
}

func scrapeFixture() *domain.ScrapeResult {
	return &domain.ScrapeResult{
		Success: true,
		Product: domain.ScrapedProduct{Name: "Desk Lamp"},
		Reviews: []domain.Review{
			{ID: "1", Stars: 5, Text: "bright and sturdy"},
			{ID: "2", Stars: 4, Text: "good price"},
		},
	}
}

func TestSubmitAndPollUntilCompleted(t *testing.T) {
	srv := newTestServer(t, stubScraper{result: scrapeFixture()}, nil)

	recorder, body := srv.do(t, http.MethodPost, "/api/analyze", `{"url":"https://shop.example.com/lamp"}`)
	require.Equal(t, http.StatusAccepted, recorder.Code)
	assert.Equal(t, true, body["success"])
	id, _ := body["analysis_id"].(string)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		_, status := srv.do(t, http.MethodGet, "/api/analysis/"+id+"/status", "")
		return status["status"] == string(domain.JobStatusCompleted)
	}, 2*time.Second, 10*time.Millisecond)

	recorder, body = srv.do(t, http.MethodGet, "/analysis/"+id, "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "completed", body["status"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, id, data["analysis_id"])
	result, ok := data["result"].(map[string]any)
	require.True(t, ok)
	product, ok := result["product"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Desk Lamp", product["name"])

	recorder, body = srv.do(t, http.MethodGet, "/analyses/recent", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	items, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
}

func TestSubmitAnswersBeforePipelineFinishes(t *testing.T) {
	gate := make(chan struct{})
	srv := newTestServer(t, stubScraper{result: scrapeFixture(), gate: gate}, nil)
	defer close(gate)

	recorder, body := srv.do(t, http.MethodPost, "/analyze", `{"url":"https://shop.example.com/lamp"}`)
	require.Equal(t, http.StatusAccepted, recorder.Code)
	id := body["analysis_id"].(string)

	recorder, body = srv.do(t, http.MethodGet, "/analysis/"+id+"/status", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, []any{"pending", "processing"}, body["status"])
	assert.Contains(t, body, "notes")
	assert.Contains(t, body, "created_at")
}

func TestPollingIsMonotoneAndCompletedResultIsStable(t *testing.T) {
	gate := make(chan struct{})
	srv := newTestServer(t, stubScraper{result: scrapeFixture(), gate: gate}, nil)

	recorder, body := srv.do(t, http.MethodPost, "/analyze", `{"url":"https://shop.example.com/lamp"}`)
	require.Equal(t, http.StatusAccepted, recorder.Code)
	id := body["analysis_id"].(string)

	rank := map[any]int{"pending": 0, "processing": 1, "completed": 2, "failed": 2}
	last := -1
	observe := func() any {
		recorder, status := srv.do(t, http.MethodGet, "/analysis/"+id+"/status", "")
		require.Equal(t, http.StatusOK, recorder.Code)
		current, ok := rank[status["status"]]
		require.True(t, ok, "unexpected status %v", status["status"])
		require.GreaterOrEqual(t, current, last, "status went backwards to %v", status["status"])
		last = current
		return status["status"]
	}

	for i := 0; i < 5; i++ {
		observe()
	}
	assert.Less(t, last, 2)

	close(gate)
	deadline := time.Now().Add(2 * time.Second)
	for observe() != "completed" {
		require.True(t, time.Now().Before(deadline), "analysis did not complete in time")
		time.Sleep(time.Millisecond)
	}

	first, _ := srv.do(t, http.MethodGet, "/analysis/"+id, "")
	second, _ := srv.do(t, http.MethodGet, "/api/analysis/"+id, "")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, "completed", observe())
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing url", body: `{}`, message: "Product URL is required"},
		{name: "malformed url", body: `{"url":"not a url"}`, message: "Invalid URL format"},
		{name: "bad json", body: `{"url":`, message: "Invalid JSON payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, stubScraper{result: scrapeFixture()}, nil)

			recorder, body := srv.do(t, http.MethodPost, "/api/analyze", tt.body)
			require.Equal(t, http.StatusBadRequest, recorder.Code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["message"])
			assert.NotEmpty(t, body["request_id"])

			items, err := srv.repo.ListRecent(context.Background(), 10)
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestSubmitRejectsOversizedBody(t *testing.T) {
	srv := newTestServer(t, stubScraper{result: scrapeFixture()}, nil)
	payload := `{"url":"https://shop.example.com/` + strings.Repeat("a", 2<<20) + `"}`

	recorder, _ := srv.do(t, http.MethodPost, "/analyze", payload)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestUnknownAnalysis(t *testing.T) {
	srv := newTestServer(t, stubScraper{result: scrapeFixture()}, nil)

	for _, path := range []string{"/analysis/nope", "/api/analysis/nope/status"} {
		recorder, body := srv.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, recorder.Code, path)
		assert.Equal(t, "Analysis not found", body["message"])
	}
}

func TestHealthAndUnknownRoute(t *testing.T) {
	srv := newTestServer(t, stubScraper{result: scrapeFixture()}, nil)

	for _, path := range []string{"/health", "/api/health"} {
		recorder, body := srv.do(t, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "Review Radar API is running", body["message"])
		assert.NotEmpty(t, body["timestamp"])
	}

	recorder, body := srv.do(t, http.MethodGet, "/api/unknown", "")
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "Route not found", body["message"])

	recorder, body = srv.do(t, http.MethodGet, "/nothing/here", "")
	require.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "Route not found", body["message"])
}

func TestReady(t *testing.T) {
	recorder, _ := newTestServer(t, stubScraper{result: scrapeFixture()}, nil).do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder, body := newTestServer(t, stubScraper{result: scrapeFixture()}, downStore{}).do(t, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, false, body["success"])
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, stubScraper{result: scrapeFixture()}, nil)

	request := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	request.Header.Set("Origin", "http://localhost:3000")
	request.Header.Set("Access-Control-Request-Method", http.MethodPost)
	recorder := httptest.NewRecorder()
	srv.handler.ServeHTTP(recorder, request)

	assert.Equal(t, "http://localhost:3000", recorder.Header().Get("Access-Control-Allow-Origin"))
}
