package storage

import (
	"time"

	"talent-search-go/internal/types"
)

// SyncCompletedRoutingKey 批处理完成事件的路由键
const SyncCompletedRoutingKey = "index.sync.completed"

// SyncRequestMessage 批处理同步请求消息，由API层发布、流水线消费者处理
type SyncRequestMessage struct {
	RequestID   string            `json:"request_id"`
	Items       []types.BatchItem `json:"items"`
	RequestedBy string            `json:"requested_by,omitempty"` // 触发请求的操作者
	RequestedAt time.Time         `json:"requested_at"`
}

// SyncCompletedMessage 批处理完成事件
type SyncCompletedMessage struct {
	RequestID string    `json:"request_id"`
	JobID     string    `json:"job_id"` // 流水线分配的批次作业ID
	Processed int       `json:"processed"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	EndedAt   time.Time `json:"ended_at"`
}
