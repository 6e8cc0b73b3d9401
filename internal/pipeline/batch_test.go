package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"talent-search-go/internal/search"
	"talent-search-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFetcher 按对象键返回预置的简历字节
type mockFetcher struct {
	data map[string][]byte
}

func (m *mockFetcher) GetResume(ctx context.Context, objectKey string) ([]byte, error) {
	if d, ok := m.data[objectKey]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("对象不存在: %s", objectKey)
}

// mockExtractor 记录并发度，可对指定内容返回错误
type mockExtractor struct {
	mu         sync.Mutex
	inFlight   int
	maxSeen    int
	failOn     string
	failErr    error
	perItemLag time.Duration
}

func (m *mockExtractor) Extract(ctx context.Context, data []byte, format string) (*types.ExtractedResume, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	if m.perItemLag > 0 {
		time.Sleep(m.perItemLag)
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if m.failOn != "" && string(data) == m.failOn {
		return nil, m.failErr
	}
	return &types.ExtractedResume{
		Skills:            []string{"Go"},
		ExperienceSummary: "experience summary",
	}, nil
}

// mockSink 收集转发来的文档
type mockSink struct {
	mu     sync.Mutex
	docs   []search.Document
	calls  int
	failed []types.ItemError
	err    error
}

func (m *mockSink) SyncDocuments(ctx context.Context, docs []search.Document) (*search.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	m.docs = append(m.docs, docs...)
	return &search.SyncResult{
		Succeeded: len(docs) - len(m.failed),
		Failed:    m.failed,
	}, nil
}

func makeItems(n int) ([]types.BatchItem, map[string][]byte) {
	items := make([]types.BatchItem, 0, n)
	data := make(map[string][]byte, n)
	for i := 1; i <= n; i++ {
		key := fmt.Sprintf("resumes/c%d.txt", i)
		items = append(items, types.BatchItem{
			CandidateID:     fmt.Sprintf("c%d", i),
			ResumeObjectKey: key,
		})
		data[key] = []byte(fmt.Sprintf("resume text %d", i))
	}
	return items, data
}

// TestPipelineZeroItems 零输入立即完成
func TestPipelineZeroItems(t *testing.T) {
	p, err := NewPipeline(&mockFetcher{}, &mockExtractor{}, &mockSink{})
	require.NoError(t, err)

	result, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, types.BatchCompleted, result.Status)
	assert.Equal(t, 0, result.Processed)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, result.Batches)
}

// TestPipelinePartialFailure 5个候选人、并发2、1个提取失败：
// processed=5，errors恰好1条，其余4个的文档进入同步器
func TestPipelinePartialFailure(t *testing.T) {
	items, data := makeItems(5)
	extractor := &mockExtractor{
		failOn:  "resume text 3",
		failErr: types.NewSchemaValidationError("缺少必填字段: name"),
	}
	sink := &mockSink{}

	p, err := NewPipeline(&mockFetcher{data: data}, extractor, sink,
		WithConcurrency(2), WithChunkDelay(0))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, types.BatchCompleted, result.Status)
	assert.Equal(t, 5, result.Processed)
	assert.Equal(t, 4, result.Succeeded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "c3", result.Errors[0].CandidateID)
	assert.Equal(t, 3, result.Batches)

	// 其余4个候选人的提取结果已转发
	assert.Len(t, sink.docs, 4)
	ids := make([]string, 0, len(sink.docs))
	for _, doc := range sink.docs {
		ids = append(ids, doc["id"].(string))
	}
	assert.ElementsMatch(t, []string{"c1", "c2", "c4", "c5"}, ids)
}

// TestPipelineConcurrencyBound 并发度不超过设置的上限
func TestPipelineConcurrencyBound(t *testing.T) {
	items, data := makeItems(9)
	extractor := &mockExtractor{perItemLag: 20 * time.Millisecond}

	p, err := NewPipeline(&mockFetcher{data: data}, extractor, &mockSink{},
		WithConcurrency(3), WithChunkDelay(0))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 9, result.Processed)
	assert.Equal(t, 3, result.Batches)
	assert.LessOrEqual(t, extractor.maxSeen, 3)
	assert.Greater(t, extractor.maxSeen, 1)
}

// TestPipelineFetchFailureIsolated 下载失败只影响该项
func TestPipelineFetchFailureIsolated(t *testing.T) {
	items, data := makeItems(3)
	delete(data, "resumes/c2.txt")

	p, err := NewPipeline(&mockFetcher{data: data}, &mockExtractor{}, &mockSink{},
		WithConcurrency(2), WithChunkDelay(0))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Processed)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "c2", result.Errors[0].CandidateID)
	assert.Contains(t, result.Errors[0].Reason, "下载简历失败")
}

// TestPipelineSinkFailureScopedToChunk 同步失败只记该块的成功项，后续块继续
func TestPipelineSinkFailureScopedToChunk(t *testing.T) {
	items, data := makeItems(4)
	sink := &mockSink{err: fmt.Errorf("search index down")}

	p, err := NewPipeline(&mockFetcher{data: data}, &mockExtractor{}, sink,
		WithConcurrency(2), WithChunkDelay(0))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, types.BatchCompleted, result.Status)
	assert.Equal(t, 4, result.Processed)
	assert.Equal(t, 0, result.Succeeded)
	assert.Len(t, result.Errors, 4)
	assert.Equal(t, 2, sink.calls)
}

// TestPipelineCanceledReportsRemaining 取消后剩余项记为错误，不静默丢弃
func TestPipelineCanceledReportsRemaining(t *testing.T) {
	items, data := makeItems(6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPipeline(&mockFetcher{data: data}, &mockExtractor{}, &mockSink{},
		WithConcurrency(2), WithChunkDelay(0))
	require.NoError(t, err)

	result, err := p.Run(ctx, items)
	require.NoError(t, err)

	assert.Equal(t, types.BatchCompleted, result.Status)
	assert.Equal(t, 6, result.Processed)
	assert.Len(t, result.Errors, 6)
	for _, e := range result.Errors {
		assert.Contains(t, e.Reason, "批处理被取消")
	}
}

// mockDeduper 第一次见到的MD5返回true
type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *mockDeduper) CheckAndSetTextMD5(ctx context.Context, md5Hex string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[md5Hex] {
		return false, nil
	}
	m.seen[md5Hex] = true
	return true, nil
}

// TestPipelineDedupe 相同文本的简历第二次出现被跳过
func TestPipelineDedupe(t *testing.T) {
	items, data := makeItems(2)
	data["resumes/c2.txt"] = data["resumes/c1.txt"]

	p, err := NewPipeline(&mockFetcher{data: data}, &mockExtractor{}, &mockSink{},
		WithConcurrency(1), WithChunkDelay(0), WithDeduper(&mockDeduper{}))
	require.NoError(t, err)

	result, err := p.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "c2", result.Errors[0].CandidateID)
	assert.Contains(t, result.Errors[0].Reason, "重复")
}
