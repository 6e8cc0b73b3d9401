package router

import (
	"context"

	"talent-search-go/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// Handlers 路由注册所需的全部处理器
type Handlers struct {
	Search    *handler.SearchHandler
	Candidate *handler.CandidateHandler
	Sync      *handler.SyncHandler
	Analytics *handler.AnalyticsHandler
}

// RegisterRoutes 注册 API 路由。
// 配置了 API Key 时，除健康检查外的所有路由都要求请求头携带 X-API-Key。
func RegisterRoutes(h *server.Hertz, handlers *Handlers, apiKeys []string) {
	api := h.Group("/api/v1")

	api.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})

	authed := api.Group("")
	if len(apiKeys) > 0 {
		authed.Use(apiKeyMiddleware(apiKeys))
	}

	authed.POST("/search", handlers.Search.HandleSearch)
	authed.POST("/search/match", handlers.Search.HandleMatch)

	authed.POST("/candidates", handlers.Candidate.HandleUploadCandidate)
	authed.GET("/candidates", handlers.Candidate.HandleListCandidates)
	authed.GET("/candidates/:id", handlers.Candidate.HandleGetCandidate)

	authed.POST("/index/sync", handlers.Sync.HandleTriggerSync)
	authed.GET("/index/drift", handlers.Sync.HandleDriftStats)

	authed.GET("/analytics/trends", handlers.Analytics.HandleTrends)
}

// apiKeyMiddleware 校验 X-API-Key 请求头，通过后把密钥放入上下文供审计使用
func apiKeyMiddleware(apiKeys []string) app.HandlerFunc {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, key := range apiKeys {
		allowed[key] = struct{}{}
	}

	return keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithContextKey("api_key"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			_, ok := allowed[key]
			return ok, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.JSON(consts.StatusUnauthorized, utils.H{
				"error": utils.H{
					"code":    "unauthorized",
					"message": "无效或缺失的API密钥",
				},
			})
			c.Abort()
		}),
	)
}
