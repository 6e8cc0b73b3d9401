package handler

import (
	"context"
	"log"
	"os"
	"strconv"

	"talent-search-go/internal/analytics"
	"talent-search-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// AnalyticsHandler 负责查询趋势统计
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
	logger     *log.Logger
}

// NewAnalyticsHandler 创建AnalyticsHandler实例
func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{
		aggregator: aggregator,
		logger:     log.New(os.Stdout, "[AnalyticsHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleTrends 返回时间窗口内的查询趋势报告。
// GET /api/v1/analytics/trends?window_days=30
func (h *AnalyticsHandler) HandleTrends(ctx context.Context, c *app.RequestContext) {
	windowDays := 0
	if raw := c.Query("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(c, types.NewValidationError("invalid_window_days", "window_days 必须是正整数"))
			return
		}
		windowDays = parsed
	}

	report, err := h.aggregator.GetTrends(ctx, windowDays)
	if err != nil {
		h.logger.Printf("趋势统计查询失败: %v", err)
		writeError(c, err)
		return
	}
	c.JSON(consts.StatusOK, report)
}
