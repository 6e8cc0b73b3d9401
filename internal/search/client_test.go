package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"talent-search-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.SearchConfig{
		Endpoint:  server.URL,
		IndexName: "candidates",
		APIKey:    "test-key",
	})
	require.NoError(t, err)
	return client
}

// TestClientSearch 检索请求的路径、请求头和响应解析
func TestClientSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/candidates/docs/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Python OR Go", req.QueryText)
		assert.Equal(t, "location eq 'Austin'", req.Filter)

		json.NewEncoder(w).Encode(Response{
			Results: []Hit{
				{Document: Document{"id": "c1"}, Score: 0.9},
				{Document: Document{"id": "c2"}, Score: 0.7},
			},
			Count: 2,
		})
	})

	resp, err := client.Search(context.Background(), &Request{
		QueryText: "Python OR Go",
		Filter:    "location eq 'Austin'",
		Top:       10,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), resp.Count)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, "c1", resp.Results[0].Document["id"])
}

// TestClientSearchServerError 非2xx状态码作为错误返回
func TestClientSearchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index unavailable", http.StatusServiceUnavailable)
	})

	_, err := client.Search(context.Background(), &Request{QueryText: "*"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

// TestClientMergeOrUpload 批量写入的动作类型与逐文档结果
func TestClientMergeOrUpload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/candidates/docs/index", r.URL.Path)

		var body struct {
			Value []map[string]interface{} `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Value, 2)
		assert.Equal(t, "mergeOrUpload", body.Value[0]["@search.action"])
		assert.Equal(t, "c1", body.Value[0]["id"])

		w.WriteHeader(http.StatusMultiStatus)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []DocResult{
				{Key: "c1", Succeeded: true, StatusCode: 200},
				{Key: "c2", Succeeded: false, StatusCode: 422, Message: "missing field"},
			},
		})
	})

	results, err := client.MergeOrUploadDocuments(context.Background(), []Document{
		{"id": "c1", "skills": []string{"Go"}},
		{"id": "c2"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Succeeded)
	assert.False(t, results[1].Succeeded)
	assert.Equal(t, "missing field", results[1].Message)
}

// TestClientMergeOrUploadIdempotent 相同文档重复提交不报错
func TestClientMergeOrUploadIdempotent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []DocResult{{Key: "c1", Succeeded: true, StatusCode: 200}},
		})
	})

	doc := Document{"id": "c1", "skills": []string{"Go"}}
	for i := 0; i < 2; i++ {
		results, err := client.MergeOrUploadDocuments(context.Background(), []Document{doc})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.True(t, results[0].Succeeded)
	}
}

// TestClientDeleteDocuments 删除操作按主键构造文档
func TestClientDeleteDocuments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Value []map[string]interface{} `json:"value"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Value, 1)
		assert.Equal(t, "delete", body.Value[0]["@search.action"])
		assert.Equal(t, "c9", body.Value[0]["id"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"value": []DocResult{{Key: "c9", Succeeded: true, StatusCode: 200}},
		})
	})

	results, err := client.DeleteDocuments(context.Background(), []string{"c9"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded)
}

// TestClientStats 索引统计接口
func TestClientStats(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/indexes/candidates/stats", r.URL.Path)
		json.NewEncoder(w).Encode(IndexStats{DocumentCount: 42, StorageSize: 10240})
	})

	stats, err := client.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), stats.DocumentCount)
	assert.Equal(t, int64(10240), stats.StorageSize)
}

// TestClientEmptyBatch 空批量直接返回，不发起请求
func TestClientEmptyBatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("空批量不应发起HTTP请求")
	})

	results, err := client.MergeOrUploadDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, results)
}
