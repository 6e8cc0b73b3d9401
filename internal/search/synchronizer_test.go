package search

import (
	"context"
	"errors"
	"testing"

	"talent-search-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockIndexer 模拟索引写入端
type mockIndexer struct {
	results []DocResult
	stats   *IndexStats
	err     error

	uploaded [][]Document
	deleted  [][]string
}

func (m *mockIndexer) MergeOrUploadDocuments(ctx context.Context, docs []Document) ([]DocResult, error) {
	m.uploaded = append(m.uploaded, docs)
	return m.results, m.err
}

func (m *mockIndexer) DeleteDocuments(ctx context.Context, keys []string) ([]DocResult, error) {
	m.deleted = append(m.deleted, keys)
	return m.results, m.err
}

func (m *mockIndexer) Stats(ctx context.Context) (*IndexStats, error) {
	return m.stats, m.err
}

// mockCounter 模拟存储侧统计
type mockCounter struct {
	total    int64
	unsynced int64
	marked   []string
	markErr  error
}

func (m *mockCounter) CountCandidates(ctx context.Context) (int64, error) { return m.total, nil }
func (m *mockCounter) CountUnsynced(ctx context.Context) (int64, error)  { return m.unsynced, nil }
func (m *mockCounter) MarkCandidatesSynced(ctx context.Context, ids []string) error {
	m.marked = append(m.marked, ids...)
	return m.markErr
}

// TestSyncDocumentsPartialFailure 单文档失败进错误列表，其余文档照常成功
func TestSyncDocumentsPartialFailure(t *testing.T) {
	indexer := &mockIndexer{
		results: []DocResult{
			{Key: "c1", Succeeded: true, StatusCode: 200},
			{Key: "c2", Succeeded: false, StatusCode: 422, Message: "bad document"},
			{Key: "c3", Succeeded: true, StatusCode: 201},
		},
	}
	counter := &mockCounter{}

	sync, err := NewSynchronizer(indexer, counter)
	require.NoError(t, err)

	result, err := sync.SyncDocuments(context.Background(), []Document{
		{"id": "c1"}, {"id": "c2"}, {"id": "c3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "c2", result.Failed[0].CandidateID)
	assert.Equal(t, "bad document", result.Failed[0].Reason)

	// 只有成功的文档会被打上同步标记
	assert.ElementsMatch(t, []string{"c1", "c3"}, counter.marked)
}

// TestSyncDocumentsTransportFailure 服务不可达返回 ExternalServiceError
func TestSyncDocumentsTransportFailure(t *testing.T) {
	indexer := &mockIndexer{err: errors.New("connection refused")}

	sync, err := NewSynchronizer(indexer, nil)
	require.NoError(t, err)

	_, err = sync.SyncDocuments(context.Background(), []Document{{"id": "c1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrExternalService))
}

// TestSyncDocumentsEmpty 空输入直接返回空结果
func TestSyncDocumentsEmpty(t *testing.T) {
	indexer := &mockIndexer{}
	sync, err := NewSynchronizer(indexer, nil)
	require.NoError(t, err)

	result, err := sync.SyncDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Succeeded)
	assert.Empty(t, result.Failed)
	assert.Empty(t, indexer.uploaded)
}

// TestDriftStats 漂移统计合并索引侧与存储侧数据
func TestDriftStats(t *testing.T) {
	indexer := &mockIndexer{stats: &IndexStats{DocumentCount: 90, StorageSize: 4096}}
	counter := &mockCounter{total: 100, unsynced: 10}

	sync, err := NewSynchronizer(indexer, counter)
	require.NoError(t, err)

	stats, err := sync.DriftStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(90), stats.IndexedDocuments)
	assert.Equal(t, int64(4096), stats.IndexStorageSize)
	assert.Equal(t, int64(100), stats.StoredCandidates)
	assert.Equal(t, int64(10), stats.UnsyncedCount)
}

// TestDeleteDocumentsCollectsResults 删除结果同样逐文档收集
func TestDeleteDocumentsCollectsResults(t *testing.T) {
	indexer := &mockIndexer{
		results: []DocResult{
			{Key: "c1", Succeeded: true, StatusCode: 200},
			{Key: "c2", Succeeded: false, StatusCode: 404},
		},
	}

	sync, err := NewSynchronizer(indexer, nil)
	require.NoError(t, err)

	result, err := sync.DeleteDocuments(context.Background(), []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "c2", result.Failed[0].CandidateID)
}
