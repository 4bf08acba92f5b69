package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"web3agent/api"
	"web3agent/internal/agent"
	"web3agent/internal/ai"
	"web3agent/internal/config"
	"web3agent/internal/infra"
	"web3agent/internal/logger"
	"web3agent/internal/metrics"
	"web3agent/internal/session"
	"web3agent/internal/tools"
	"web3agent/internal/tools/web3"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// 统一加载 .env，便于集中管理 APP_* 环境变量
	if err := godotenv.Load(); err == nil {
		fmt.Println("已加载 .env 文件")
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	cfg, err := config.Load(env, "")
	if err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.String("env", env),
		zap.String("mode", cfg.Server.Mode),
	)

	// 执行历史数据库（可选）
	var recorder *tools.GormRecorder
	db, err := infra.InitDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	if db != nil {
		if err := infra.AutoMigrate(db, &tools.Execution{}); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
		recorder = tools.NewGormRecorder(db)
	}

	// 会话存储：Redis 不可用时降级为内存存储
	var store session.Store
	if rdb, err := infra.InitRedis(&cfg.Redis); err != nil {
		logger.Warn("Redis 不可用，会话历史使用内存存储", zap.Error(err))
		store = session.NewMemoryStore(50)
	} else {
		store = session.NewRedisStore(rdb)
	}

	// 模型客户端：未配置 API Key 时代理以降级模式运行
	var model ai.ModelClient
	if client, err := ai.NewOpenAIClient(&cfg.AI); err != nil {
		logger.Warn("模型客户端不可用，意图分类将使用关键词匹配", zap.Error(err))
	} else {
		model = client
	}

	// 工具执行器
	providers := []tools.CategoryProvider{
		web3.NewMarketDataProvider(cfg.Web3.MarketData),
		web3.NewDEXAnalyticsProvider(cfg.Web3.MarketData, cfg.Web3.DEX),
		web3.NewEVMProvider(cfg.Web3.EVM),
		web3.NewNeoProvider(cfg.Web3.Neo),
		web3.NewGitHubProvider(cfg.Web3.GitHub),
	}
	executorOpts := []tools.Option{
		tools.WithDefaultTimeout(time.Duration(cfg.Agent.ToolTimeout) * time.Second),
		tools.WithMetrics(tools.NewMetrics(metrics.NewToolCallRecorder())),
	}
	if recorder != nil {
		executorOpts = append(executorOpts, tools.WithRecorder(recorder))
	}
	executor := tools.NewExecutor(tools.NewRegistry(), providers, executorOpts...)
	executor.Initialize(context.Background(), tools.AllCategories()...)

	// 对话代理
	agentOpts := []agent.Option{}
	if model != nil {
		agentOpts = append(agentOpts, agent.WithModelClient(model))
	}
	if cfg.Agent.DemoLogPath != "" {
		demoLog, err := agent.OpenDemoLog(cfg.Agent.DemoLogPath)
		if err != nil {
			logger.Warn("演示日志不可用", zap.Error(err))
		} else {
			defer demoLog.Close()
			agentOpts = append(agentOpts, agent.WithDemoLog(demoLog))
		}
	}
	service := agent.NewService(executor, store, cfg.Agent, agentOpts...)

	router := api.SetupRouter(cfg, service, executor, recorder)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器启动失败", zap.Error(err))
		}
	}()

	gracefulShutdown(server)
}

// gracefulShutdown 优雅关闭
func gracefulShutdown(server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务器已安全关闭")
}
