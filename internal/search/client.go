package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"talent-search-go/internal/config"
	"talent-search-go/internal/tracing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 搜索服务专用tracer
var searchTracer = otel.Tracer("talent-search-go/search")

// Request 一次检索请求
type Request struct {
	QueryText string   `json:"search"`
	Filter    string   `json:"filter,omitempty"`
	Facets    []string `json:"facets,omitempty"`
	Top       int      `json:"top,omitempty"`
	Skip      int      `json:"skip,omitempty"`
	Select    []string `json:"select,omitempty"`
	OrderBy   string   `json:"orderby,omitempty"`
}

// Document 索引文档，键为字段名
type Document map[string]interface{}

// Hit 单条检索命中
type Hit struct {
	Document   Document `json:"document"`
	Score      float64  `json:"score"`
	Highlights []string `json:"highlights,omitempty"`
}

// FacetCount 单个分面取值的计数
type FacetCount struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// Response 检索响应
type Response struct {
	Results []Hit                   `json:"results"`
	Count   int64                   `json:"count"`
	Facets  map[string][]FacetCount `json:"facets,omitempty"`
}

// DocResult 批量索引操作中单个文档的结果
type DocResult struct {
	Key        string `json:"key"`
	Succeeded  bool   `json:"succeeded"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message,omitempty"`
}

// IndexStats 索引的文档数与存储占用
type IndexStats struct {
	DocumentCount int64 `json:"document_count"`
	StorageSize   int64 `json:"storage_size"`
}

// Searcher 检索能力接口，打分引擎依赖它而不是具体客户端
type Searcher interface {
	Search(ctx context.Context, req *Request) (*Response, error)
}

// Indexer 索引写入能力接口，索引同步器依赖它
type Indexer interface {
	MergeOrUploadDocuments(ctx context.Context, docs []Document) ([]DocResult, error)
	DeleteDocuments(ctx context.Context, keys []string) ([]DocResult, error)
	Stats(ctx context.Context) (*IndexStats, error)
}

// 确保Client同时实现检索和索引写入接口
var (
	_ Searcher = (*Client)(nil)
	_ Indexer  = (*Client)(nil)
)

// Client 搜索服务的HTTP客户端。
// 检索走 POST {endpoint}/indexes/{index}/docs/search，
// 批量写入走 POST {endpoint}/indexes/{index}/docs/index，
// 索引统计走 GET {endpoint}/indexes/{index}/stats。
type Client struct {
	endpoint   string
	indexName  string
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
}

// ClientOption 定义Client构造函数选项
type ClientOption func(*Client)

// WithHTTPTimeout 设置HTTP客户端超时
func WithHTTPTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithHTTPClient 替换底层HTTP客户端，测试时注入 httptest 服务端用
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger 设置自定义日志记录器
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient 创建搜索服务客户端
func NewClient(cfg *config.SearchConfig, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("搜索服务配置不能为空")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("搜索服务endpoint不能为空")
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "candidates"
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		endpoint:   cfg.Endpoint,
		indexName:  indexName,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     log.New(io.Discard, "", 0),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Search 执行一次检索
func (c *Client) Search(ctx context.Context, req *Request) (*Response, error) {
	ctx, span := searchTracer.Start(ctx, "SearchClient.Search",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("search.index", c.indexName),
		attribute.Int("search.top", req.Top),
		attribute.Bool("search.has_filter", req.Filter != ""),
	)

	var resp Response
	path := fmt.Sprintf("/indexes/%s/docs/search", url.PathEscape(c.indexName))
	if err := c.postJSON(ctx, span, path, req, &resp); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.result_count", len(resp.Results)))
	return &resp, nil
}

// indexBatchAction 批量写入中的单个动作
type indexBatchAction struct {
	Action string `json:"@search.action"` // mergeOrUpload 或 delete
	Document
}

// MarshalJSON 把动作类型和文档字段平铺到同一个JSON对象
func (a indexBatchAction) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(a.Document)+1)
	for k, v := range a.Document {
		flat[k] = v
	}
	flat["@search.action"] = a.Action
	return json.Marshal(flat)
}

// MergeOrUploadDocuments 批量合并或新建文档。
// 操作是幂等的：相同内容重复提交不会报错也不会产生重复文档。
// 单个文档失败不会中断其余文档，结果按文档逐条返回。
func (c *Client) MergeOrUploadDocuments(ctx context.Context, docs []Document) ([]DocResult, error) {
	return c.indexBatch(ctx, "mergeOrUpload", docs)
}

// DeleteDocuments 按主键批量删除文档
func (c *Client) DeleteDocuments(ctx context.Context, keys []string) ([]DocResult, error) {
	docs := make([]Document, 0, len(keys))
	for _, key := range keys {
		docs = append(docs, Document{"id": key})
	}
	return c.indexBatch(ctx, "delete", docs)
}

func (c *Client) indexBatch(ctx context.Context, action string, docs []Document) ([]DocResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	ctx, span := searchTracer.Start(ctx, "SearchClient.IndexBatch",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("search.index", c.indexName),
		attribute.String("search.action", action),
		attribute.Int("search.batch_size", len(docs)),
	)

	actions := make([]indexBatchAction, 0, len(docs))
	for _, doc := range docs {
		actions = append(actions, indexBatchAction{Action: action, Document: doc})
	}

	body := map[string]interface{}{"value": actions}
	var result struct {
		Value []DocResult `json:"value"`
	}

	path := fmt.Sprintf("/indexes/%s/docs/index", url.PathEscape(c.indexName))
	if err := c.postJSON(ctx, span, path, body, &result); err != nil {
		return nil, err
	}

	return result.Value, nil
}

// Stats 获取索引的文档数和存储占用，用于漂移统计
func (c *Client) Stats(ctx context.Context) (*IndexStats, error) {
	ctx, span := searchTracer.Start(ctx, "SearchClient.Stats",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	statsURL := fmt.Sprintf("%s/indexes/%s/stats", c.endpoint, url.PathEscape(c.indexName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statsURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("创建索引统计请求失败: %w", err)
	}
	c.setHeaders(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("请求索引统计失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("索引统计返回异常状态码: %d, 响应: %s", resp.StatusCode, string(raw))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return nil, err
	}

	var stats IndexStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("解析索引统计响应失败: %w", err)
	}
	return &stats, nil
}

// postJSON 统一的POST JSON请求封装，注入追踪上下文并做状态码检查
func (c *Client) postJSON(ctx context.Context, span trace.Span, path string, payload, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	fullURL := c.endpoint + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(raw))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("创建请求失败: %w", err)
	}
	c.setHeaders(ctx, req)

	span.SetAttributes(
		attribute.String("http.method", http.MethodPost),
		attribute.String("http.url", fullURL),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("请求搜索服务失败: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("搜索服务返回异常状态码: %d, 响应: %s", resp.StatusCode, string(body))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("解析搜索服务响应失败: %w", err)
		}
	}

	c.logger.Printf("搜索服务请求成功: %s", path)
	return nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
}
