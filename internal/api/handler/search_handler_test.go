package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"talent-search-go/internal/api/handler"
	"talent-search-go/internal/query"
	"talent-search-go/internal/scoring"
	"talent-search-go/internal/search"
	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearcher 固定返回预设响应的检索端，记录最近一次请求供断言
type fakeSearcher struct {
	resp    *search.Response
	err     error
	lastReq *search.Request
}

func (f *fakeSearcher) Search(ctx context.Context, req *search.Request) (*search.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// newSearchTestServer 组装一个带真实解释器/构建器/打分引擎的测试服务，
// 只有最外层的检索端是假的
func newSearchTestServer(t *testing.T, searcher search.Searcher) *server.Hertz {
	t.Helper()

	engine, err := scoring.NewEngine(searcher)
	require.NoError(t, err)

	sh := handler.NewSearchHandler(query.NewInterpreter(), query.NewBuilder(), engine, nil)

	h := server.Default()
	h.POST("/api/v1/search", sh.HandleSearch)
	h.POST("/api/v1/search/match", sh.HandleMatch)
	return h
}

func postJSON(t *testing.T, h *server.Hertz, path string, body interface{}) *ut.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return ut.PerformRequest(h.Engine, "POST", path,
		&ut.Body{Body: bytes.NewBuffer(data), Len: len(data)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

// searchResponse 搜索接口响应体
type searchResponse struct {
	Results      []types.MatchResult `json:"results"`
	TotalCount   int64               `json:"total_count"`
	ParsedIntent *types.ParsedIntent `json:"parsed_intent"`
}

// errorResponse 错误响应体
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

func TestHandleSearchWithRawQuery(t *testing.T) {
	searcher := &fakeSearcher{resp: &search.Response{
		Results: []search.Hit{
			{Document: search.Document{"id": "cand-1", "name": "张伟"}, Score: 0.91},
			{Document: search.Document{"id": "cand-2", "name": "李娜"}, Score: 0.74},
		},
		Count: 2,
	}}
	h := newSearchTestServer(t, searcher)

	w := postJSON(t, h, "/api/v1/search", map[string]interface{}{
		"query": "Senior Go engineer in Berlin",
	})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body searchResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, "cand-1", body.Results[0].CandidateID)
	assert.Equal(t, int64(2), body.TotalCount)

	// 自由文本路径要带上解析出的意图
	require.NotNil(t, body.ParsedIntent)
	assert.Contains(t, body.ParsedIntent.Skills, "Go")
	assert.Contains(t, body.ParsedIntent.Locations, "Berlin")

	// 解释出的实体要进入实际发出的检索请求
	require.NotNil(t, searcher.lastReq)
	assert.NotEmpty(t, searcher.lastReq.QueryText)
}

func TestHandleSearchWithExplicitFilters(t *testing.T) {
	searcher := &fakeSearcher{resp: &search.Response{
		Results: []search.Hit{{Document: search.Document{"id": "cand-9"}, Score: 0.5}},
		Count:   1,
	}}
	h := newSearchTestServer(t, searcher)

	w := postJSON(t, h, "/api/v1/search", map[string]interface{}{
		"filters": map[string]interface{}{
			"skills":    []string{"Python"},
			"locations": []string{"Shanghai"},
		},
	})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body searchResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.Len(t, body.Results, 1)
	// 显式过滤路径不经过解释器
	assert.Nil(t, body.ParsedIntent)
	require.NotNil(t, searcher.lastReq)
	assert.NotEmpty(t, searcher.lastReq.Filter)
}

func TestHandleSearchMissingQuery(t *testing.T) {
	h := newSearchTestServer(t, &fakeSearcher{resp: &search.Response{}})

	w := postJSON(t, h, "/api/v1/search", map[string]interface{}{})
	resp := w.Result()
	require.Equal(t, 400, resp.StatusCode())

	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "missing_query", body.Error.Code)
}

func TestHandleSearchUpstreamFailure(t *testing.T) {
	h := newSearchTestServer(t, &fakeSearcher{err: errors.New("connection refused")})

	w := postJSON(t, h, "/api/v1/search", map[string]interface{}{
		"query": "Go developer",
	})
	resp := w.Result()
	require.Equal(t, 502, resp.StatusCode())

	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "external_service_error", body.Error.Code)
	assert.Contains(t, body.Error.Details, "connection refused")
}

func TestHandleMatchBlendsSkillScore(t *testing.T) {
	searcher := &fakeSearcher{resp: &search.Response{
		Results: []search.Hit{
			// 语义分高但技能不沾边
			{Document: search.Document{"id": "cand-a", "skills": []interface{}{"Photoshop"}}, Score: 0.95},
			// 语义分略低但技能全中
			{Document: search.Document{"id": "cand-b", "skills": []interface{}{"Go", "Kubernetes"}}, Score: 0.80},
		},
		Count: 2,
	}}
	h := newSearchTestServer(t, searcher)

	w := postJSON(t, h, "/api/v1/search/match", map[string]interface{}{
		"job": map[string]interface{}{
			"title":           "平台工程师",
			"required_skills": []string{"Go", "Kubernetes"},
		},
	})
	resp := w.Result()
	require.Equal(t, 200, resp.StatusCode())

	var body searchResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	require.Len(t, body.Results, 2)

	// 0.6*0.80 + 0.4*0.7 = 0.76 > 0.6*0.95 = 0.57，技能覆盖把cand-b顶到首位
	assert.Equal(t, "cand-b", body.Results[0].CandidateID)
	assert.InDelta(t, 0.7, body.Results[0].SkillScore, 1e-9)
	assert.ElementsMatch(t, []string{"Go", "Kubernetes"}, body.Results[0].MatchedSkills)
	assert.Equal(t, "cand-a", body.Results[1].CandidateID)
	assert.Zero(t, body.Results[1].SkillScore)
}

func TestHandleMatchRequiresSkills(t *testing.T) {
	h := newSearchTestServer(t, &fakeSearcher{resp: &search.Response{}})

	w := postJSON(t, h, "/api/v1/search/match", map[string]interface{}{
		"job": map[string]interface{}{"title": "岗位没有技能要求"},
	})
	resp := w.Result()
	require.Equal(t, 400, resp.StatusCode())

	var body errorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "missing_job_skills", body.Error.Code)
}
