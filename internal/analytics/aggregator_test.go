package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"talent-search-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockEventStore 内存事件存储
type mockEventStore struct {
	mu     sync.Mutex
	events []types.AnalyticsEvent
}

func (m *mockEventStore) InsertAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *mockEventStore) ListAnalyticsEvents(ctx context.Context, since time.Time) ([]types.AnalyticsEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.AnalyticsEvent
	for _, e := range m.events {
		if e.Timestamp.After(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func eventAt(daysAgo int, queryText, filters string) types.AnalyticsEvent {
	return types.AnalyticsEvent{
		QueryText: queryText,
		Mode:      types.ModeGeneral,
		Filters:   filters,
		Timestamp: time.Now().AddDate(0, 0, -daysAgo).Add(-time.Hour),
	}
}

// TestLogEventAsyncPersist 事件经缓冲通道异步落库
func TestLogEventAsyncPersist(t *testing.T) {
	store := &mockEventStore{}
	agg, err := NewAggregator(store)
	require.NoError(t, err)

	agg.LogEvent(types.AnalyticsEvent{QueryText: "find Go developers"})
	agg.LogEvent(types.AnalyticsEvent{QueryText: "senior Python engineers"})
	agg.Close()

	require.Len(t, store.events, 2)
	// 未填时间戳的事件落库前补上
	assert.False(t, store.events[0].Timestamp.IsZero())
}

// TestGetTrendsTopSkillsAndVolume 窗口聚合：Top技能、日volume与洞察
func TestGetTrendsTopSkillsAndVolume(t *testing.T) {
	store := &mockEventStore{events: []types.AnalyticsEvent{
		eventAt(1, "find Go developers", ""),
		eventAt(2, "Go and Kubernetes experts", ""),
		eventAt(3, "senior Python engineers", `{"locations":["Austin"]}`),
		eventAt(10, "Python developers in Boston", `{"locations":["Boston"]}`),
	}}
	agg, err := NewAggregator(store)
	require.NoError(t, err)
	defer agg.Close()

	report, err := agg.GetTrends(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 30, report.WindowDays)
	assert.Equal(t, 4, report.TotalQueries)

	require.NotEmpty(t, report.TopSkills)
	counts := make(map[string]int)
	for _, tc := range report.TopSkills {
		counts[tc.Term] = tc.Count
	}
	assert.Equal(t, 2, counts["Go"])
	assert.Equal(t, 2, counts["Python"])
	assert.Equal(t, 1, counts["Kubernetes"])

	locs := make(map[string]int)
	for _, tc := range report.TopLocations {
		locs[tc.Term] = tc.Count
	}
	assert.Equal(t, 1, locs["Austin"])
	assert.Equal(t, 1, locs["Boston"])

	// 4个事件分布在4天
	assert.Len(t, report.DailyVolume, 4)
	assert.Contains(t, report.Insights, "most requested skill: Go")
}

// TestGetTrendsSkipsMalformedRows 脏数据行被跳过，不拖垮聚合
func TestGetTrendsSkipsMalformedRows(t *testing.T) {
	store := &mockEventStore{events: []types.AnalyticsEvent{
		eventAt(1, "find Go developers", ""),
		{QueryText: "", Timestamp: time.Now().Add(-time.Hour)},
		eventAt(2, "Python engineers", `{invalid json`),
	}}
	agg, err := NewAggregator(store)
	require.NoError(t, err)
	defer agg.Close()

	report, err := agg.GetTrends(context.Background(), 30)
	require.NoError(t, err)

	// 空查询行被跳过；坏过滤JSON只损失过滤维度，事件本身照常计数
	assert.Equal(t, 2, report.TotalQueries)
	assert.Empty(t, report.TopLocations)
}

// TestGetTrendsCountsFilterOnlyEvents 纯过滤查询的文本是空的，照常进入统计
func TestGetTrendsCountsFilterOnlyEvents(t *testing.T) {
	store := &mockEventStore{events: []types.AnalyticsEvent{
		eventAt(1, "", `{"skills":["Go"],"locations":["Austin"]}`),
	}}
	agg, err := NewAggregator(store)
	require.NoError(t, err)
	defer agg.Close()

	report, err := agg.GetTrends(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalQueries)
	assert.Len(t, report.DailyVolume, 1)

	counts := make(map[string]int)
	for _, tc := range report.TopSkills {
		counts[tc.Term] = tc.Count
	}
	assert.Equal(t, 1, counts["Go"])

	locs := make(map[string]int)
	for _, tc := range report.TopLocations {
		locs[tc.Term] = tc.Count
	}
	assert.Equal(t, 1, locs["Austin"])
}

// TestGetTrendsWeekOverWeek 周环比洞察
func TestGetTrendsWeekOverWeek(t *testing.T) {
	store := &mockEventStore{events: []types.AnalyticsEvent{
		eventAt(1, "find Go developers", ""),
		eventAt(2, "find Go developers", ""),
		eventAt(3, "find Go developers", ""),
		eventAt(4, "find Go developers", ""),
		eventAt(10, "find Go developers", ""),
		eventAt(11, "find Go developers", ""),
	}}
	agg, err := NewAggregator(store)
	require.NoError(t, err)
	defer agg.Close()

	report, err := agg.GetTrends(context.Background(), 30)
	require.NoError(t, err)

	// 最近7天4条，前一周2条 → +100%
	assert.Contains(t, report.Insights, "+100% week-over-week query volume")
}

// mockTrendsCache 内存趋势缓存
type mockTrendsCache struct {
	mu     sync.Mutex
	stored map[int]*types.TrendReport
	hits   int
}

func (m *mockTrendsCache) GetTrendReport(ctx context.Context, windowDays int) (*types.TrendReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.stored[windowDays]; ok {
		m.hits++
		return r, nil
	}
	return nil, nil
}

func (m *mockTrendsCache) SetTrendReport(ctx context.Context, windowDays int, report *types.TrendReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored == nil {
		m.stored = make(map[int]*types.TrendReport)
	}
	m.stored[windowDays] = report
	return nil
}

// TestGetTrendsUsesCache 第二次查询命中缓存
func TestGetTrendsUsesCache(t *testing.T) {
	store := &mockEventStore{events: []types.AnalyticsEvent{
		eventAt(1, "find Go developers", ""),
	}}
	cache := &mockTrendsCache{}
	agg, err := NewAggregator(store, WithTrendsCache(cache))
	require.NoError(t, err)
	defer agg.Close()

	first, err := agg.GetTrends(context.Background(), 30)
	require.NoError(t, err)

	second, err := agg.GetTrends(context.Background(), 30)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.TotalQueries, second.TotalQueries)
}
