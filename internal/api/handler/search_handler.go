package handler

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"talent-search-go/internal/analytics"
	"talent-search-go/internal/query"
	"talent-search-go/internal/scoring"
	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// SearchHandler 负责候选人搜索和岗位匹配请求
type SearchHandler struct {
	interpreter *query.Interpreter
	builder     *query.Builder
	engine      *scoring.Engine
	aggregator  *analytics.Aggregator // 可为nil，此时不记录查询事件
	logger      *log.Logger
}

// NewSearchHandler 创建SearchHandler实例
func NewSearchHandler(interpreter *query.Interpreter, builder *query.Builder, engine *scoring.Engine, aggregator *analytics.Aggregator) *SearchHandler {
	return &SearchHandler{
		interpreter: interpreter,
		builder:     builder,
		engine:      engine,
		aggregator:  aggregator,
		logger:      log.New(os.Stdout, "[SearchHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// matchRequest 岗位匹配请求体
type matchRequest struct {
	Job  types.JobRequirements `json:"job"`
	Top  int                   `json:"top,omitempty"`
	Skip int                   `json:"skip,omitempty"`
}

// HandleSearch 处理候选人搜索请求。
// POST /api/v1/search
// 请求体二选一：query (自由文本，走查询解释器) 或 filters (显式过滤条件)。
func (h *SearchHandler) HandleSearch(ctx context.Context, c *app.RequestContext) {
	var req types.SearchQuery
	if err := c.BindAndValidate(&req); err != nil {
		writeError(c, types.NewValidationError("invalid_request_body", "请求体格式不正确"))
		return
	}

	mode := req.Mode
	if mode == "" {
		mode = types.ModeGeneral
	}

	var (
		built  *query.BuiltQuery
		intent *types.ParsedIntent
		err    error
	)
	switch {
	case req.Filters != nil:
		built, err = h.builder.BuildFromFilters(req.Filters)
	case req.RawQuery != "":
		intent, err = h.interpreter.Interpret(req.RawQuery)
		if err == nil {
			built, err = h.builder.BuildFromIntent(intent)
		}
	default:
		err = types.NewValidationError("missing_query", "query 和 filters 至少需要一个")
	}
	if err != nil {
		writeError(c, err)
		return
	}

	ranked, err := h.engine.Rank(ctx, &scoring.RankRequest{
		Query: built,
		Mode:  mode,
		Top:   req.Top,
		Skip:  req.Skip,
	})
	if err != nil {
		h.logger.Printf("搜索执行失败: %v", err)
		writeError(c, err)
		return
	}

	h.logQueryEvent(c, req.RawQuery, mode, req.Filters, intent, len(ranked.Results))

	resp := map[string]interface{}{
		"results":     ranked.Results,
		"total_count": ranked.TotalCount,
	}
	if len(ranked.Facets) > 0 {
		resp["facets"] = ranked.Facets
	}
	if intent != nil {
		resp["parsed_intent"] = intent
	}
	c.JSON(consts.StatusOK, resp)
}

// HandleMatch 处理岗位匹配请求，按技能覆盖度叠加语义分进行排序。
// POST /api/v1/search/match
func (h *SearchHandler) HandleMatch(ctx context.Context, c *app.RequestContext) {
	var req matchRequest
	if err := c.BindAndValidate(&req); err != nil {
		writeError(c, types.NewValidationError("invalid_request_body", "请求体格式不正确"))
		return
	}

	if len(req.Job.RequiredSkills) == 0 && len(req.Job.PreferredSkills) == 0 {
		writeError(c, types.NewValidationError("missing_job_skills", "岗位要求至少包含一项必要或优先技能"))
		return
	}

	// 用岗位技能构建召回查询，位置作为硬过滤条件
	allSkills := make([]string, 0, len(req.Job.RequiredSkills)+len(req.Job.PreferredSkills))
	allSkills = append(allSkills, req.Job.RequiredSkills...)
	allSkills = append(allSkills, req.Job.PreferredSkills...)
	filters := &types.QueryFilters{
		Skills:    allSkills,
		Locations: req.Job.Locations,
	}

	built, err := h.builder.BuildFromFilters(filters)
	if err != nil {
		writeError(c, err)
		return
	}

	job := req.Job
	ranked, err := h.engine.Rank(ctx, &scoring.RankRequest{
		Query: built,
		Mode:  types.ModeJobMatch,
		Job:   &job,
		Top:   req.Top,
		Skip:  req.Skip,
	})
	if err != nil {
		h.logger.Printf("岗位匹配失败: %v", err)
		writeError(c, err)
		return
	}

	h.logQueryEvent(c, req.Job.Title, types.ModeJobMatch, filters, nil, len(ranked.Results))

	resp := map[string]interface{}{
		"results":     ranked.Results,
		"total_count": ranked.TotalCount,
	}
	if len(ranked.Facets) > 0 {
		resp["facets"] = ranked.Facets
	}
	c.JSON(consts.StatusOK, resp)
}

// logQueryEvent 异步记录查询事件，失败只影响统计不影响主流程
func (h *SearchHandler) logQueryEvent(c *app.RequestContext, queryText string, mode types.SearchMode, filters *types.QueryFilters, intent *types.ParsedIntent, resultCount int) {
	if h.aggregator == nil {
		return
	}

	// 过滤条件序列化失败时只丢掉该维度，事件本身照常记录
	var filtersJSON string
	if filters == nil && intent != nil {
		filters = &types.QueryFilters{
			Skills:       intent.Skills,
			Locations:    intent.Locations,
			Availability: intent.Availability,
			VisaStatus:   intent.VisaStatus,
		}
	}
	if filters != nil {
		if data, err := json.Marshal(filters); err == nil {
			filtersJSON = string(data)
		}
	}

	h.aggregator.LogEvent(types.AnalyticsEvent{
		QueryText:   queryText,
		Mode:        mode,
		Filters:     filtersJSON,
		ResultCount: resultCount,
		ActorID:     actorFromContext(c),
		Timestamp:   time.Now(),
	})
}
