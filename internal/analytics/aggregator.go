package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"talent-search-go/internal/constants"
	"talent-search-go/internal/query"
	"talent-search-go/internal/types"
)

// EventStore 事件的持久化端，由MySQL存储层实现
type EventStore interface {
	InsertAnalyticsEvent(ctx context.Context, event *types.AnalyticsEvent) error
	ListAnalyticsEvents(ctx context.Context, since time.Time) ([]types.AnalyticsEvent, error)
}

// TrendsCache 趋势报告的缓存端，由Redis存储层实现，可为 nil
type TrendsCache interface {
	GetTrendReport(ctx context.Context, windowDays int) (*types.TrendReport, error)
	SetTrendReport(ctx context.Context, windowDays int, report *types.TrendReport) error
}

// Aggregator 分析聚合器：查询事件经缓冲通道异步落库，
// 读取侧对追加日志做窗口聚合。
// 写入相对请求主路径是 fire-and-forget 的，记录失败绝不反噬原始搜索请求。
type Aggregator struct {
	store  EventStore
	cache  TrendsCache
	events chan types.AnalyticsEvent
	wg     sync.WaitGroup
	once   sync.Once
	logger *log.Logger
}

// AggregatorOption Aggregator 的配置选项
type AggregatorOption func(*Aggregator)

// WithTrendsCache 启用趋势报告缓存
func WithTrendsCache(cache TrendsCache) AggregatorOption {
	return func(a *Aggregator) {
		a.cache = cache
	}
}

// WithEventBuffer 设置事件缓冲通道的容量
func WithEventBuffer(size int) AggregatorOption {
	return func(a *Aggregator) {
		if size > 0 {
			a.events = make(chan types.AnalyticsEvent, size)
		}
	}
}

// WithAggregatorLogger 设置自定义日志记录器
func WithAggregatorLogger(logger *log.Logger) AggregatorOption {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator 创建分析聚合器并启动落库协程
func NewAggregator(store EventStore, options ...AggregatorOption) (*Aggregator, error) {
	if store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}

	a := &Aggregator{
		store:  store,
		events: make(chan types.AnalyticsEvent, 256),
		logger: log.New(os.Stdout, "[Analytics] ", log.LstdFlags),
	}
	for _, option := range options {
		option(a)
	}

	a.wg.Add(1)
	go a.consume()
	return a, nil
}

// consume 后台消费事件通道，逐条落库
func (a *Aggregator) consume() {
	defer a.wg.Done()
	for event := range a.events {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.store.InsertAnalyticsEvent(ctx, &event); err != nil {
			a.logger.Printf("分析事件落库失败: %v", err)
		}
		cancel()
	}
}

// LogEvent 追加一条查询事件。非阻塞：缓冲满时丢弃并记日志，
// 不会让调用方的搜索请求等待或失败。
func (a *Aggregator) LogEvent(event types.AnalyticsEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case a.events <- event:
	default:
		a.logger.Printf("分析事件缓冲已满，丢弃事件: query=%q", event.QueryText)
	}
}

// Close 关闭事件通道并等待落库协程排空缓冲
func (a *Aggregator) Close() {
	a.once.Do(func() {
		close(a.events)
	})
	a.wg.Wait()
}

// GetTrends 聚合窗口内的查询事件，产出趋势报告。
// 无法解析的历史事件行直接跳过，不让单条脏数据拖垮整个聚合。
func (a *Aggregator) GetTrends(ctx context.Context, windowDays int) (*types.TrendReport, error) {
	if windowDays <= 0 {
		windowDays = constants.DefaultTrendWindowDay
	}

	if a.cache != nil {
		if cached, err := a.cache.GetTrendReport(ctx, windowDays); err == nil && cached != nil {
			return cached, nil
		}
	}

	since := time.Now().AddDate(0, 0, -windowDays)
	events, err := a.store.ListAnalyticsEvents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("读取分析事件失败: %w", err)
	}

	report := aggregate(events, windowDays)

	if a.cache != nil {
		if err := a.cache.SetTrendReport(ctx, windowDays, report); err != nil {
			a.logger.Printf("缓存趋势报告失败: %v", err)
		}
	}
	return report, nil
}

// aggregate 对事件列表做纯计算聚合
func aggregate(events []types.AnalyticsEvent, windowDays int) *types.TrendReport {
	skillCounts := make(map[string]int)
	locationCounts := make(map[string]int)
	dailyVolume := make(map[string]int)

	now := time.Now()
	lastWeek, prevWeek := 0, 0
	total := 0

	for _, event := range events {
		// 纯过滤查询的文本是空的，只有文本和过滤条件都为空才算坏行
		if event.Timestamp.IsZero() ||
			(strings.TrimSpace(event.QueryText) == "" && strings.TrimSpace(event.Filters) == "") {
			continue
		}

		total++
		dailyVolume[event.Timestamp.Format("2006-01-02")]++

		age := now.Sub(event.Timestamp)
		if age <= 7*24*time.Hour {
			lastWeek++
		} else if age <= 14*24*time.Hour {
			prevWeek++
		}

		for _, skill := range query.ExtractSkillsFromText(event.QueryText, 0) {
			skillCounts[skill]++
		}

		// 过滤条件是JSON编码存储的，坏行只损失该事件的过滤维度
		if event.Filters != "" {
			var filters types.QueryFilters
			if err := json.Unmarshal([]byte(event.Filters), &filters); err == nil {
				for _, skill := range filters.Skills {
					skillCounts[query.CanonicalSkill(skill)]++
				}
				for _, loc := range filters.Locations {
					locationCounts[strings.TrimSpace(loc)]++
				}
			}
		}
	}

	report := &types.TrendReport{
		WindowDays:   windowDays,
		TotalQueries: total,
		TopSkills:    topN(skillCounts, constants.DefaultTrendTopN),
		TopLocations: topN(locationCounts, constants.DefaultTrendTopN),
		DailyVolume:  dailyVolume,
	}
	report.Insights = buildInsights(report, lastWeek, prevWeek)
	return report
}

// topN 取计数最高的N个词条，计数相同按词条字典序保证确定性
func topN(counts map[string]int, n int) []types.TermCount {
	terms := make([]types.TermCount, 0, len(counts))
	for term, count := range counts {
		terms = append(terms, types.TermCount{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// buildInsights 从聚合结果派生少量文字洞察
func buildInsights(report *types.TrendReport, lastWeek, prevWeek int) []string {
	var insights []string

	if prevWeek > 0 {
		change := float64(lastWeek-prevWeek) / float64(prevWeek) * 100
		insights = append(insights, fmt.Sprintf("%+.0f%% week-over-week query volume", change))
	} else if lastWeek > 0 {
		insights = append(insights, fmt.Sprintf("%d queries in the last 7 days", lastWeek))
	}

	if len(report.TopSkills) > 0 {
		insights = append(insights, fmt.Sprintf("most requested skill: %s", report.TopSkills[0].Term))
	}
	if len(report.TopLocations) > 0 {
		insights = append(insights, fmt.Sprintf("most searched location: %s", report.TopLocations[0].Term))
	}
	return insights
}
