package scoring

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"talent-search-go/internal/constants"
	"talent-search-go/internal/query"
	"talent-search-go/internal/search"
	"talent-search-go/internal/tracing"
	"talent-search-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var scoringTracer = otel.Tracer("talent-search-go/scoring")

// 打分权重。岗位匹配模式下语义分与技能分按 0.6/0.4 合成，
// 技能分内部必备技能与优先技能按 0.7/0.3 合成。
const (
	semanticWeight  = 0.6
	skillWeight     = 0.4
	requiredWeight  = 0.7
	preferredWeight = 0.3
)

// RankRequest 一次打分请求
type RankRequest struct {
	Query *query.BuiltQuery      // 查询构建器的产物
	Mode  types.SearchMode       // 打分模式
	Job   *types.JobRequirements // 岗位匹配模式下的技能要求，其他模式可为 nil
	Top   int
	Skip  int
}

// RankedResults 排好序的打分结果
type RankedResults struct {
	Results    []types.MatchResult            `json:"results"`
	TotalCount int64                          `json:"total_count"`
	Facets     map[string][]search.FacetCount `json:"facets,omitempty"`
}

// Engine 打分引擎：调用搜索服务取回带语义分的候选人，
// 叠加本地计算的技能覆盖分，产出单一排序的结果列表。
type Engine struct {
	searcher search.Searcher
	logger   *log.Logger
}

// EngineOption Engine 的配置选项
type EngineOption func(*Engine)

// WithEngineLogger 设置自定义日志记录器
func WithEngineLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine 创建打分引擎
func NewEngine(searcher search.Searcher, options ...EngineOption) (*Engine, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher 不能为空")
	}
	e := &Engine{
		searcher: searcher,
		logger:   log.New(os.Stdout, "[ScoringEngine] ", log.LstdFlags),
	}
	for _, option := range options {
		option(e)
	}
	return e, nil
}

// Rank 执行检索并打分。
// 搜索服务失败时返回 ExternalServiceError，不会静默退化成空结果。
// 结果恒按 OverallScore 降序，同分按 CandidateID 升序。
func (e *Engine) Rank(ctx context.Context, req *RankRequest) (*RankedResults, error) {
	if req == nil || req.Query == nil {
		return nil, types.NewValidationError("missing_query", "打分请求缺少查询")
	}

	ctx, span := scoringTracer.Start(ctx, "Engine.Rank")
	defer span.End()
	span.SetAttributes(
		attribute.String("scoring.mode", string(req.Mode)),
		attribute.String("scoring.query", tracing.SafeQueryText(req.Query.QueryText)),
	)

	top := req.Top
	if top <= 0 {
		top = constants.DefaultSearchTop
	}

	resp, err := e.searcher.Search(ctx, &search.Request{
		QueryText: req.Query.QueryText,
		Filter:    req.Query.Filter,
		Facets:    req.Query.Facets,
		Top:       top,
		Skip:      req.Skip,
	})
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearchIndex)
		return nil, types.NewExternalServiceError("search", err)
	}

	jobMatch := req.Mode == types.ModeJobMatch && req.Job != nil

	results := make([]types.MatchResult, 0, len(resp.Results))
	for _, hit := range resp.Results {
		r := types.MatchResult{
			CandidateID:   documentString(hit.Document, "id"),
			Name:          documentString(hit.Document, "name"),
			SemanticScore: hit.Score,
			Highlights:    hit.Highlights,
		}

		if jobMatch {
			candidateSkills := documentStrings(hit.Document, "skills")
			r.SkillScore, r.MatchedSkills = SkillScore(candidateSkills, req.Job.RequiredSkills, req.Job.PreferredSkills)
			r.OverallScore = semanticWeight*r.SemanticScore + skillWeight*r.SkillScore
		} else {
			r.OverallScore = r.SemanticScore
		}

		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].OverallScore != results[j].OverallScore {
			return results[i].OverallScore > results[j].OverallScore
		}
		return results[i].CandidateID < results[j].CandidateID
	})

	span.SetAttributes(attribute.Int("scoring.result_count", len(results)))
	e.logger.Printf("打分完成: mode=%s results=%d", req.Mode, len(results))

	return &RankedResults{
		Results:    results,
		TotalCount: resp.Count,
		Facets:     resp.Facets,
	}, nil
}

// SkillScore 计算候选人技能对岗位要求的覆盖分。
// 必备技能覆盖率权重 0.7，优先技能覆盖率权重 0.3；
// 某一类技能集为空时该项按 0 贡献处理，不做除零。
// 返回技能分和命中的候选人技能列表。
func SkillScore(candidateSkills, requiredSkills, preferredSkills []string) (float64, []string) {
	matched := make(map[string]bool)

	requiredHits := countMatches(candidateSkills, requiredSkills, matched)
	preferredHits := countMatches(candidateSkills, preferredSkills, matched)

	var score float64
	if len(requiredSkills) > 0 {
		score += requiredWeight * float64(requiredHits) / float64(len(requiredSkills))
	}
	if len(preferredSkills) > 0 {
		score += preferredWeight * float64(preferredHits) / float64(len(preferredSkills))
	}

	matchedSkills := make([]string, 0, len(matched))
	for _, cs := range candidateSkills {
		if matched[strings.ToLower(cs)] {
			matchedSkills = append(matchedSkills, cs)
		}
	}
	return score, matchedSkills
}

// countMatches 统计岗位技能中被候选人技能覆盖的数量。
// 匹配规则是别名归一后的大小写不敏感整词相等，
// 不采用双向子串匹配，"Java" 不会命中 "JavaScript"。
func countMatches(candidateSkills, jobSkills []string, matched map[string]bool) int {
	hits := 0
	for _, js := range jobSkills {
		jc := strings.ToLower(query.CanonicalSkill(js))
		for _, cs := range candidateSkills {
			if strings.ToLower(query.CanonicalSkill(cs)) == jc {
				hits++
				matched[strings.ToLower(cs)] = true
				break
			}
		}
	}
	return hits
}

func documentString(doc search.Document, field string) string {
	if v, ok := doc[field].(string); ok {
		return v
	}
	return ""
}

func documentStrings(doc search.Document, field string) []string {
	switch v := doc[field].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
