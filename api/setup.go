package api

import (
	"net/http"

	chatHandlers "web3agent/api/handlers/chat"
	toolHandlers "web3agent/api/handlers/tools"
	"web3agent/internal/agent"
	"web3agent/internal/config"
	"web3agent/internal/metrics"
	middlewarepkg "web3agent/internal/middleware"
	"web3agent/internal/tools"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 构建 Gin 路由
// recorder 为 nil 时执行历史接口返回 503
func SetupRouter(cfg *config.Config, service *agent.Service, executor *tools.Executor, recorder *tools.GormRecorder) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(RequestLogger())
	router.Use(CORS())
	router.Use(metrics.PrometheusMiddleware())

	chatHandler := chatHandlers.NewChatHandler(service, executor)
	toolHandler := toolHandlers.NewToolHandler(executor, recorder)

	router.GET("/health", healthHandler(service, executor))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(middlewarepkg.NewRateLimiter(nil).Middleware())
	{
		api.POST("/chat", chatHandler.Chat)
		api.POST("/user-agent/query", chatHandler.Query)
		api.POST("/spoonos/execute", chatHandler.Execute)

		api.GET("/tools", toolHandler.ListTools)
		api.GET("/tools/:name", toolHandler.GetTool)
		api.POST("/tools/:name/execute", toolHandler.ExecuteTool)
		api.GET("/tools/:name/executions", toolHandler.ListExecutions)
	}

	return router
}

// healthHandler 聚合代理与执行器的健康状态
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} map[string]any
// @Router /health [get]
func healthHandler(service *agent.Service, executor *tools.Executor) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := executor.HealthCheck()
		status := http.StatusOK
		if !health.Initialized {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":   health.Status,
			"agent":    service.Health(),
			"executor": health,
		})
	}
}
