package router_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"talent-search-go/internal/analytics"
	"talent-search-go/internal/api/handler"
	"talent-search-go/internal/api/router"
	"talent-search-go/internal/query"
	"talent-search-go/internal/scoring"
	"talent-search-go/internal/search"
	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSearcher struct{}

func (stubSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	return &search.Response{}, nil
}

type stubEventStore struct{}

func (stubEventStore) InsertAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error {
	return nil
}

func (stubEventStore) ListAnalyticsEvents(ctx context.Context, since time.Time) ([]types.AnalyticsEvent, error) {
	return nil, nil
}

func newTestServer(t *testing.T, apiKeys []string) *server.Hertz {
	t.Helper()

	engine, err := scoring.NewEngine(stubSearcher{})
	require.NoError(t, err)
	aggregator, err := analytics.NewAggregator(stubEventStore{})
	require.NoError(t, err)
	t.Cleanup(aggregator.Close)

	h := server.Default()
	router.RegisterRoutes(h, &router.Handlers{
		Search:    handler.NewSearchHandler(query.NewInterpreter(), query.NewBuilder(), engine, aggregator),
		Candidate: handler.NewCandidateHandler(nil, nil),
		Sync:      handler.NewSyncHandler(nil, nil, nil),
		Analytics: handler.NewAnalyticsHandler(aggregator),
	}, apiKeys)
	return h
}

func TestHealthSkipsAuth(t *testing.T) {
	h := newTestServer(t, []string{"secret"})

	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAPIKeyRequired(t *testing.T) {
	h := newTestServer(t, []string{"secret"})

	// 无密钥
	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/analytics/trends", nil)
	assert.Equal(t, 401, w.Result().StatusCode())

	// 错误密钥
	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/analytics/trends", nil,
		ut.Header{Key: "X-API-Key", Value: "wrong"})
	assert.Equal(t, 401, w.Result().StatusCode())

	// 正确密钥
	w = ut.PerformRequest(h.Engine, "GET", "/api/v1/analytics/trends", nil,
		ut.Header{Key: "X-API-Key", Value: "secret"})
	assert.Equal(t, 200, w.Result().StatusCode())
}

func TestNoKeysConfiguredDisablesAuth(t *testing.T) {
	h := newTestServer(t, nil)

	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/analytics/trends", nil)
	assert.Equal(t, 200, w.Result().StatusCode())
}
