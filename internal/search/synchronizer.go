package search

import (
	"context"
	"fmt"
	"log"
	"os"

	"talent-search-go/internal/tracing"
	"talent-search-go/internal/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var syncTracer = otel.Tracer("talent-search-go/search/synchronizer")

// CandidateCounter 同步器需要的文档存储侧统计能力，由MySQL存储层实现
type CandidateCounter interface {
	CountCandidates(ctx context.Context) (int64, error)
	CountUnsynced(ctx context.Context) (int64, error)
	MarkCandidatesSynced(ctx context.Context, candidateIDs []string) error
}

// SyncResult 一次批量同步的逐文档结果
type SyncResult struct {
	Succeeded int               `json:"succeeded"`
	Failed    []types.ItemError `json:"failed"`
}

// Synchronizer 索引同步器：把结构化候选人文档批量写入搜索索引，
// 并对比文档存储与索引计算漂移统计。
// 单个文档的失败只进入错误列表，不会中断同一批里的其余文档。
type Synchronizer struct {
	indexer Indexer
	counter CandidateCounter
	logger  *log.Logger
}

// SynchronizerOption Synchronizer 的配置选项
type SynchronizerOption func(*Synchronizer)

// WithSyncLogger 设置自定义日志记录器
func WithSyncLogger(logger *log.Logger) SynchronizerOption {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

// NewSynchronizer 创建索引同步器。
// counter 可以为 nil，此时漂移统计只包含索引侧数据。
func NewSynchronizer(indexer Indexer, counter CandidateCounter, options ...SynchronizerOption) (*Synchronizer, error) {
	if indexer == nil {
		return nil, fmt.Errorf("indexer 不能为空")
	}

	s := &Synchronizer{
		indexer: indexer,
		counter: counter,
		logger:  log.New(os.Stdout, "[Synchronizer] ", log.LstdFlags),
	}
	for _, option := range options {
		option(s)
	}
	return s, nil
}

// SyncDocuments 批量合并或新建候选人文档。
// 传输层失败（服务不可达）返回 ExternalServiceError；
// 单文档级失败收集进 SyncResult.Failed 返回给调用方。
func (s *Synchronizer) SyncDocuments(ctx context.Context, docs []Document) (*SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "Synchronizer.SyncDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("sync.document_count", len(docs)))

	if len(docs) == 0 {
		return &SyncResult{}, nil
	}

	results, err := s.indexer.MergeOrUploadDocuments(ctx, docs)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearchIndex)
		return nil, types.NewExternalServiceError("search", err)
	}

	out := s.collectResults(results)

	// 成功写入的文档在存储侧打同步标记，供漂移统计使用
	if s.counter != nil && out.Succeeded > 0 {
		var syncedIDs []string
		for _, r := range results {
			if r.Succeeded {
				syncedIDs = append(syncedIDs, r.Key)
			}
		}
		if err := s.counter.MarkCandidatesSynced(ctx, syncedIDs); err != nil {
			// 标记失败不影响同步本身的结果，只影响漂移统计的精度
			s.logger.Printf("标记候选人同步状态失败: %v", err)
		}
	}

	s.logger.Printf("索引同步完成: 成功=%d 失败=%d", out.Succeeded, len(out.Failed))
	return out, nil
}

// DeleteDocuments 按候选人ID批量删除索引文档
func (s *Synchronizer) DeleteDocuments(ctx context.Context, candidateIDs []string) (*SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "Synchronizer.DeleteDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("sync.delete_count", len(candidateIDs)))

	if len(candidateIDs) == 0 {
		return &SyncResult{}, nil
	}

	results, err := s.indexer.DeleteDocuments(ctx, candidateIDs)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearchIndex)
		return nil, types.NewExternalServiceError("search", err)
	}

	return s.collectResults(results), nil
}

// DriftStats 计算文档存储与搜索索引之间的漂移统计
func (s *Synchronizer) DriftStats(ctx context.Context) (*types.SyncStats, error) {
	ctx, span := syncTracer.Start(ctx, "Synchronizer.DriftStats",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	indexStats, err := s.indexer.Stats(ctx)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeSearchIndex)
		return nil, types.NewExternalServiceError("search", err)
	}

	stats := &types.SyncStats{
		IndexedDocuments: indexStats.DocumentCount,
		IndexStorageSize: indexStats.StorageSize,
	}

	if s.counter != nil {
		stored, err := s.counter.CountCandidates(ctx)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, fmt.Errorf("统计存储侧候选人数量失败: %w", err)
		}
		unsynced, err := s.counter.CountUnsynced(ctx)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			return nil, fmt.Errorf("统计未同步候选人数量失败: %w", err)
		}
		stats.StoredCandidates = stored
		stats.UnsyncedCount = unsynced
	}

	span.SetAttributes(
		attribute.Int64("sync.indexed_documents", stats.IndexedDocuments),
		attribute.Int64("sync.unsynced_count", stats.UnsyncedCount),
	)
	return stats, nil
}

func (s *Synchronizer) collectResults(results []DocResult) *SyncResult {
	out := &SyncResult{}
	for _, r := range results {
		if r.Succeeded {
			out.Succeeded++
			continue
		}
		reason := r.Message
		if reason == "" {
			reason = fmt.Sprintf("索引写入失败，状态码 %d", r.StatusCode)
		}
		out.Failed = append(out.Failed, types.ItemError{
			CandidateID: r.Key,
			Reason:      reason,
		})
	}
	return out
}
