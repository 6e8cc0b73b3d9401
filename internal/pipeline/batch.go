package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"talent-search-go/internal/constants"
	"talent-search-go/internal/search"
	"talent-search-go/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var pipelineTracer = otel.Tracer("talent-search-go/pipeline")

// ResumeFetcher 从对象存储读取简历原始字节，由MinIO存储层实现
type ResumeFetcher interface {
	GetResume(ctx context.Context, objectKey string) ([]byte, error)
}

// Extractor 简历提取能力，由 extractor.ResumeExtractor 实现
type Extractor interface {
	Extract(ctx context.Context, data []byte, format string) (*types.ExtractedResume, error)
}

// DocumentSink 提取成功后的文档去向，由 search.Synchronizer 实现
type DocumentSink interface {
	SyncDocuments(ctx context.Context, docs []search.Document) (*search.SyncResult, error)
}

// Deduper 文本去重能力，由Redis存储层实现。
// 返回 true 表示首次出现，false 表示重复文本。
type Deduper interface {
	CheckAndSetTextMD5(ctx context.Context, md5Hex string) (bool, error)
}

// Pipeline 批处理流水线：把 (candidateID, resumeObjectKey) 列表
// 按并发上限分块跑过简历提取器，把成功项转发给索引同步器。
// 单项失败只记入错误列表，不影响同块或后续块的其他项；
// 计数只增不减，每个输入项恰好成功或失败一次。
type Pipeline struct {
	fetcher     ResumeFetcher
	extractor   Extractor
	sink        DocumentSink
	deduper     Deduper
	concurrency int
	chunkDelay  time.Duration
	logger      *log.Logger
}

// PipelineOption Pipeline 的配置选项
type PipelineOption func(*Pipeline)

// WithConcurrency 设置并发上限，同时也是分块大小
func WithConcurrency(n int) PipelineOption {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithChunkDelay 设置块与块之间的停顿，作为对下游的粗粒度背压
func WithChunkDelay(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d >= 0 {
			p.chunkDelay = d
		}
	}
}

// WithDeduper 启用基于文本MD5的重复简历跳过
func WithDeduper(d Deduper) PipelineOption {
	return func(p *Pipeline) {
		p.deduper = d
	}
}

// WithPipelineLogger 设置自定义日志记录器
func WithPipelineLogger(logger *log.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline 创建批处理流水线
func NewPipeline(fetcher ResumeFetcher, extractor Extractor, sink DocumentSink, options ...PipelineOption) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher 不能为空")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor 不能为空")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink 不能为空")
	}

	p := &Pipeline{
		fetcher:     fetcher,
		extractor:   extractor,
		sink:        sink,
		concurrency: constants.DefaultBatchConcurrency,
		chunkDelay:  constants.DefaultInterChunkDelay,
		logger:      log.New(os.Stdout, "[Pipeline] ", log.LstdFlags),
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// itemOutcome 单项处理结果，每个并发槽位只写自己的条目，块完结后统一合并
type itemOutcome struct {
	candidateID string
	doc         search.Document
	err         error
}

// Run 执行一次批处理。零输入立即完成。
// 返回的 BatchResult 里 Processed 恒等于输入项数，
// 未成功的项一定出现在 Errors 中。
func (p *Pipeline) Run(ctx context.Context, items []types.BatchItem) (*types.BatchResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "Pipeline.Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("batch.item_count", len(items)),
		attribute.Int("batch.concurrency", p.concurrency),
	)

	result := &types.BatchResult{
		JobID:     uuid.NewString(),
		Status:    types.BatchCreated,
		Errors:    []types.ItemError{},
		StartedAt: time.Now(),
	}

	if len(items) == 0 {
		result.Status = types.BatchCompleted
		result.EndedAt = time.Now()
		return result, nil
	}

	result.Status = types.BatchRunning
	p.logger.Printf("批处理 %s 开始: items=%d concurrency=%d", result.JobID, len(items), p.concurrency)

	for start := 0; start < len(items); start += p.concurrency {
		end := start + p.concurrency
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		// 调用方放弃后剩余项记为未处理错误，不静默丢弃
		if err := ctx.Err(); err != nil {
			for _, item := range items[start:] {
				result.Processed++
				result.Errors = append(result.Errors, types.ItemError{
					CandidateID: item.CandidateID,
					Reason:      fmt.Sprintf("批处理被取消: %v", err),
				})
			}
			break
		}

		if start > 0 && p.chunkDelay > 0 {
			time.Sleep(p.chunkDelay)
		}

		outcomes := p.processChunk(ctx, chunk)
		result.Batches++

		// 合并本块结果并把成功项转发给同步器
		var docs []search.Document
		var docOwner []string
		for _, o := range outcomes {
			result.Processed++
			if o.err != nil {
				result.Errors = append(result.Errors, types.ItemError{
					CandidateID: o.candidateID,
					Reason:      o.err.Error(),
				})
				continue
			}
			docs = append(docs, o.doc)
			docOwner = append(docOwner, o.candidateID)
		}

		p.forwardChunk(ctx, result, docs, docOwner)
	}

	result.Status = types.BatchCompleted
	result.EndedAt = time.Now()

	span.SetAttributes(
		attribute.Int("batch.processed", result.Processed),
		attribute.Int("batch.error_count", len(result.Errors)),
	)
	p.logger.Printf("批处理 %s 完成: processed=%d succeeded=%d errors=%d batches=%d",
		result.JobID, result.Processed, result.Succeeded, len(result.Errors), result.Batches)
	return result, nil
}

// processChunk 并发处理一个块，每个槽位写入自己的结果位，整块等待后返回
func (p *Pipeline) processChunk(ctx context.Context, chunk []types.BatchItem) []itemOutcome {
	outcomes := make([]itemOutcome, len(chunk))
	var wg sync.WaitGroup

	for i, item := range chunk {
		wg.Add(1)
		go func(slot int, item types.BatchItem) {
			defer wg.Done()
			doc, err := p.processItem(ctx, item)
			outcomes[slot] = itemOutcome{
				candidateID: item.CandidateID,
				doc:         doc,
				err:         err,
			}
		}(i, item)
	}
	wg.Wait()

	return outcomes
}

// processItem 处理单个简历：下载、去重、提取、组装索引文档
func (p *Pipeline) processItem(ctx context.Context, item types.BatchItem) (search.Document, error) {
	data, err := p.fetcher.GetResume(ctx, item.ResumeObjectKey)
	if err != nil {
		return nil, fmt.Errorf("下载简历失败: %w", err)
	}

	if p.deduper != nil {
		sum := md5.Sum(data)
		fresh, err := p.deduper.CheckAndSetTextMD5(ctx, hex.EncodeToString(sum[:]))
		if err != nil {
			// 去重层故障不阻断提取，只损失去重能力
			p.logger.Printf("候选人 %s 去重检查失败: %v", item.CandidateID, err)
		} else if !fresh {
			return nil, fmt.Errorf("重复的简历内容，已存在相同文本")
		}
	}

	extracted, err := p.extractor.Extract(ctx, data, formatFromKey(item.ResumeObjectKey))
	if err != nil {
		return nil, err
	}

	doc := search.Document{
		"id":                 item.CandidateID,
		"skills":             extracted.Skills,
		"experience_summary": extracted.ExperienceSummary,
	}
	if extracted.Name != "" {
		doc["name"] = extracted.Name
	}
	if extracted.Location != "" {
		doc["location"] = extracted.Location
	}
	return doc, nil
}

// forwardChunk 把本块的成功文档交给同步器，逐文档失败转换为对应项的错误
func (p *Pipeline) forwardChunk(ctx context.Context, result *types.BatchResult, docs []search.Document, docOwner []string) {
	if len(docs) == 0 {
		return
	}

	syncResult, err := p.sink.SyncDocuments(ctx, docs)
	if err != nil {
		// 同步整体失败只影响本块的成功项，后续块继续
		for _, id := range docOwner {
			result.Errors = append(result.Errors, types.ItemError{
				CandidateID: id,
				Reason:      fmt.Sprintf("索引同步失败: %v", err),
			})
		}
		return
	}

	failed := make(map[string]string, len(syncResult.Failed))
	for _, f := range syncResult.Failed {
		failed[f.CandidateID] = f.Reason
	}
	for _, id := range docOwner {
		if reason, ok := failed[id]; ok {
			result.Errors = append(result.Errors, types.ItemError{CandidateID: id, Reason: reason})
			continue
		}
		result.Succeeded++
	}
}

// formatFromKey 从对象键的扩展名推断简历格式，无扩展名按 pdf 处理
func formatFromKey(objectKey string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(objectKey), "."))
	if ext == "" {
		return "pdf"
	}
	return ext
}
