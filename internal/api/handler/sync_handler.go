package handler

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"talent-search-go/internal/pipeline"
	"talent-search-go/internal/search"
	"talent-search-go/internal/storage"
	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
)

// 单次同步请求从数据库捞取的未同步候选人上限
const maxSyncBatchSize = 1000

// SyncHandler 负责索引同步的触发和漂移查询
type SyncHandler struct {
	storage      *storage.Storage
	synchronizer *search.Synchronizer
	pipeline     *pipeline.Pipeline
	logger       *log.Logger
}

// NewSyncHandler 创建SyncHandler实例
func NewSyncHandler(s *storage.Storage, sync *search.Synchronizer, p *pipeline.Pipeline) *SyncHandler {
	return &SyncHandler{
		storage:      s,
		synchronizer: sync,
		pipeline:     p,
		logger:       log.New(os.Stdout, "[SyncHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// syncRequest 同步触发请求体。candidate_ids 为空时同步所有未入索引的候选人。
type syncRequest struct {
	CandidateIDs []string `json:"candidate_ids,omitempty"`
}

// HandleTriggerSync 触发索引同步。
// RabbitMQ可用时发布异步任务并返回202，否则降级为同步执行批处理。
// POST /api/v1/index/sync
func (h *SyncHandler) HandleTriggerSync(ctx context.Context, c *app.RequestContext) {
	var req syncRequest
	if len(c.Request.Body()) > 0 {
		if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
			writeError(c, types.NewValidationError("invalid_request_body", "请求体格式不正确"))
			return
		}
	}

	items, err := h.resolveSyncItems(ctx, req.CandidateIDs)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(items) == 0 {
		c.JSON(consts.StatusOK, map[string]interface{}{
			"message":    "没有待同步的候选人",
			"item_count": 0,
		})
		return
	}

	if h.storage.RabbitMQ != nil {
		requestUUID, err := uuid.NewV7()
		if err != nil {
			writeError(c, err)
			return
		}
		msg := &storage.SyncRequestMessage{
			RequestID:   requestUUID.String(),
			Items:       items,
			RequestedBy: actorFromContext(c),
			RequestedAt: time.Now(),
		}
		if err := h.storage.RabbitMQ.PublishSyncRequest(ctx, msg); err != nil {
			h.logger.Printf("发布同步任务失败: %v", err)
			writeError(c, types.NewExternalServiceError("rabbitmq", err))
			return
		}
		h.logger.Printf("同步任务已入队: request=%s items=%d", msg.RequestID, len(items))
		c.JSON(consts.StatusAccepted, map[string]interface{}{
			"request_id": msg.RequestID,
			"item_count": len(items),
			"status":     "queued",
		})
		return
	}

	// 消息队列不可用时同步执行，调用方需容忍较长响应时间
	result, err := h.runPipeline(ctx, items)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// HandleDriftStats 查询文档存储与搜索索引之间的漂移统计。
// GET /api/v1/index/drift
func (h *SyncHandler) HandleDriftStats(ctx context.Context, c *app.RequestContext) {
	stats, err := h.synchronizer.DriftStats(ctx)
	if err != nil {
		h.logger.Printf("漂移统计查询失败: %v", err)
		writeError(c, err)
		return
	}

	// 最近同步时间为辅助信息，读取失败不影响主结果
	if h.storage.Redis != nil {
		if at, err := h.storage.Redis.GetLastIndexSync(ctx); err == nil && !at.IsZero() {
			stats.LastSyncedAt = &at
		}
	}

	c.JSON(consts.StatusOK, stats)
}

// StartSyncConsumer 启动同步任务消费协程，进程退出前持续消费
func (h *SyncHandler) StartSyncConsumer() (<-chan struct{}, error) {
	return h.storage.RabbitMQ.StartSyncConsumer(func(body []byte) bool {
		var msg storage.SyncRequestMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			h.logger.Printf("同步消息解析失败，丢弃: %v", err)
			return true
		}

		ctx := context.Background()
		result, err := h.runPipeline(ctx, msg.Items)
		if err != nil {
			h.logger.Printf("同步任务执行失败，重新入队 (request=%s): %v", msg.RequestID, err)
			return false
		}

		completed := &storage.SyncCompletedMessage{
			RequestID: msg.RequestID,
			JobID:     result.JobID,
			Processed: result.Processed,
			Succeeded: result.Succeeded,
			Failed:    result.Processed - result.Succeeded,
			EndedAt:   result.EndedAt,
		}
		if err := h.storage.RabbitMQ.PublishSyncCompleted(ctx, completed); err != nil {
			h.logger.Printf("发布同步完成事件失败 (request=%s): %v", msg.RequestID, err)
		}

		h.logger.Printf("同步任务完成: request=%s job=%s processed=%d succeeded=%d",
			msg.RequestID, result.JobID, result.Processed, result.Succeeded)
		return true
	})
}

// resolveSyncItems 把请求解析为批处理项。显式指定候选人时逐个校验存在性并取对象键
func (h *SyncHandler) resolveSyncItems(ctx context.Context, candidateIDs []string) ([]types.BatchItem, error) {
	if len(candidateIDs) > 0 {
		items := make([]types.BatchItem, 0, len(candidateIDs))
		for _, id := range candidateIDs {
			candidate, err := h.storage.MySQL.GetCandidateByID(ctx, id)
			if err != nil {
				return nil, types.NewValidationError("unknown_candidate", "候选人不存在: "+id)
			}
			items = append(items, types.BatchItem{
				CandidateID:     candidate.CandidateID,
				ResumeObjectKey: candidate.ResumeObjectKey,
			})
		}
		return items, nil
	}

	candidates, err := h.storage.MySQL.ListUnsyncedCandidates(ctx, maxSyncBatchSize)
	if err != nil {
		return nil, types.NewExternalServiceError("mysql", err)
	}
	items := make([]types.BatchItem, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, types.BatchItem{
			CandidateID:     candidate.CandidateID,
			ResumeObjectKey: candidate.ResumeObjectKey,
		})
	}
	return items, nil
}

// runPipeline 执行批处理并记录本次同步时间
func (h *SyncHandler) runPipeline(ctx context.Context, items []types.BatchItem) (*types.BatchResult, error) {
	result, err := h.pipeline.Run(ctx, items)
	if err != nil {
		return nil, err
	}
	if h.storage.Redis != nil && result.Succeeded > 0 {
		if err := h.storage.Redis.SetLastIndexSync(ctx, result.EndedAt); err != nil {
			h.logger.Printf("记录同步时间失败: %v", err)
		}
	}
	return result, nil
}

// actorFromContext 从认证中间件注入的上下文里取调用方标识
func actorFromContext(c *app.RequestContext) string {
	if v, ok := c.Get("api_key"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
