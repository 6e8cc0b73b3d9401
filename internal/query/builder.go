package query

import (
	"strings"

	"talent-search-go/internal/types"
)

// defaultFacets 默认请求的分面字段，用于前端过滤器的计数展示
var defaultFacets = []string{"skills", "location", "availability", "visa_status"}

// BuiltQuery 查询构建器的产物，可直接提交给搜索服务
type BuiltQuery struct {
	QueryText string   // 全文检索文本，无实体时为 "*"
	Filter    string   // 过滤表达式，可为空
	Facets    []string // 分面字段列表
}

// Builder 查询构建器：把 ParsedIntent 或显式过滤条件翻译成搜索服务的查询语法。
// 与解释器一样是纯计算组件，可并发使用。
type Builder struct {
	facets []string
}

// BuilderOption Builder 的配置选项
type BuilderOption func(*Builder)

// WithFacets 覆盖默认的分面字段
func WithFacets(facets []string) BuilderOption {
	return func(b *Builder) {
		b.facets = facets
	}
}

// NewBuilder 创建一个新的查询构建器
func NewBuilder(options ...BuilderOption) *Builder {
	b := &Builder{facets: defaultFacets}
	for _, option := range options {
		option(b)
	}
	return b
}

// BuildFromIntent 从解析出的意图构建查询。
// 技能进入检索文本做 OR 匹配而不是硬过滤，部分命中的候选人仍会出现在结果中，
// 由打分引擎再按技能覆盖率加权；地点、到岗时间、签证状态是硬过滤条件。
func (b *Builder) BuildFromIntent(intent *types.ParsedIntent) (*BuiltQuery, error) {
	if intent == nil {
		return nil, types.NewValidationError("missing_intent", "查询意图不能为空")
	}
	filters := &types.QueryFilters{
		Skills:       intent.Skills,
		Locations:    intent.Locations,
		Availability: intent.Availability,
		VisaStatus:   intent.VisaStatus,
	}
	return b.BuildFromFilters(filters)
}

// BuildFromFilters 从显式结构化过滤条件构建查询。
// 所有实体都为空时产出 "*" 全量查询，这是有意保留的透传模式。
func (b *Builder) BuildFromFilters(filters *types.QueryFilters) (*BuiltQuery, error) {
	if filters == nil {
		filters = &types.QueryFilters{}
	}

	queryText := "*"
	if len(filters.Skills) > 0 {
		queryText = strings.Join(filters.Skills, " OR ")
	}

	// 类别内 OR，类别间 AND
	var clauses []FilterExpr

	if len(filters.Locations) > 0 {
		or := Or{}
		for _, loc := range filters.Locations {
			or.Exprs = append(or.Exprs, Eq{Field: "location", Value: loc})
		}
		clauses = append(clauses, or)
	}
	if filters.Availability != types.AvailabilityUnknown {
		clauses = append(clauses, Eq{Field: "availability", Value: string(filters.Availability)})
	}
	if filters.VisaStatus != types.VisaUnknown {
		clauses = append(clauses, Eq{Field: "visa_status", Value: string(filters.VisaStatus)})
	}

	filter, err := And{Exprs: clauses}.Render()
	if err != nil {
		return nil, err
	}

	facets := make([]string, len(b.facets))
	copy(facets, b.facets)

	return &BuiltQuery{
		QueryText: queryText,
		Filter:    filter,
		Facets:    facets,
	}, nil
}
