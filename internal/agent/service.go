package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"web3agent/internal/ai"
	"web3agent/internal/config"
	"web3agent/internal/intent"
	"web3agent/internal/logger"
	"web3agent/internal/metrics"
	"web3agent/internal/session"
	"web3agent/internal/tools"
)

// web3Keywords 判断输入是否属于 Web3 问题的关键词表
var web3Keywords = []string{
	"eth", "btc", "token", "price", "balance", "swap", "gas", "wallet",
	"address", "crypto", "defi", "nft", "blockchain", "transaction",
	"ohlcv", "kline", "candles", "chart", "binance", "usdt", "usdc",
	"uniswap", "contract", "transfer",
	"代币", "价格", "余额", "兑换", "钱包", "地址", "链上", "交易", "合约", "行情",
}

// Service 对话代理
// 过滤出 Web3 问题，分类意图后交给工具执行器，其余走通用对话
type Service struct {
	model    ai.ModelClient
	executor *tools.Executor
	router   *intent.Router
	fallback *intent.Fallback
	store    session.Store
	cfg      config.AgentConfig
	demoLog  *DemoLog
}

// Option Service 配置选项
type Option func(*Service)

// WithModelClient 注入语言模型客户端，缺省时全程走关键词降级
func WithModelClient(model ai.ModelClient) Option {
	return func(s *Service) { s.model = model }
}

// WithDemoLog 注入演示日志
func WithDemoLog(demoLog *DemoLog) Option {
	return func(s *Service) { s.demoLog = demoLog }
}

// NewService 创建对话代理
func NewService(executor *tools.Executor, store session.Store, cfg config.AgentConfig, opts ...Option) *Service {
	s := &Service{
		executor: executor,
		router:   intent.NewRouter(),
		fallback: intent.NewFallback(),
		store:    store,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessQuery 处理一轮用户输入，永远返回可展示的文本
func (s *Service) ProcessQuery(ctx context.Context, query, sessionID string) (response string) {
	if sessionID == "" {
		sessionID = s.cfg.DefaultSession
	}

	var trace demoTrace
	defer func() {
		if r := recover(); r != nil {
			logger.Error("对话处理 panic", zap.Any("panic", r), zap.String("session", sessionID))
			response = fmt.Sprintf("处理你的请求时遇到了问题：%v", r)
		}
		s.remember(ctx, sessionID, query, response)
		if s.demoLog != nil {
			s.demoLog.Record(DemoEntry{
				SessionID: sessionID,
				Query:     query,
				Response:  response,
				Tool:      trace.tool,
				Error:     trace.err,
			})
		}
	}()

	if isWeb3Query(query) {
		metrics.ChatQueriesTotal.WithLabelValues("web3").Inc()
		cleanQuery := s.extractWeb3Query(ctx, query, sessionID)
		return s.handleWeb3Query(ctx, cleanQuery, &trace)
	}
	metrics.ChatQueriesTotal.WithLabelValues("general").Inc()
	return s.handleGeneralChat(ctx, query, sessionID)
}

// demoTrace 工具执行路径的记录信息，供演示日志使用
type demoTrace struct {
	tool string
	err  string
}

// handleWeb3Query 意图分类 → 路由 → 执行 → 格式化
func (s *Service) handleWeb3Query(ctx context.Context, query string, trace *demoTrace) string {
	it := s.classifyIntent(ctx, query)
	logger.Info("意图分类完成",
		zap.String("action", string(it.Action)),
		zap.Float64("confidence", it.Confidence))

	if !s.executorReady() {
		return s.fallback.Respond(it).Output
	}

	toolName := s.router.Resolve(it.Action)
	params := s.router.AdaptParameters(toolName, it.Parameters)
	timeout := time.Duration(s.cfg.ToolTimeout) * time.Second

	result := s.executor.Execute(ctx, toolName, params, timeout)
	trace.tool = toolName
	if !result.Success {
		trace.err = result.Error
		return fmt.Sprintf("❌ %s", result.Error)
	}
	return s.formatResult(ctx, query, result)
}

// executorReady 执行器已初始化且至少注册了一个工具
func (s *Service) executorReady() bool {
	if s.executor == nil {
		return false
	}
	health := s.executor.HealthCheck()
	return health.Initialized && health.TotalTools > 0
}

// extractWeb3Query 借助模型从带噪输入里提取干净的 Web3 问题
// 模型不可用或失败时退回原始输入
func (s *Service) extractWeb3Query(ctx context.Context, query, sessionID string) string {
	if s.model == nil {
		return query
	}

	contextText := s.historyContext(ctx, sessionID, s.contextWindow())
	prompt := "从下面的用户输入中提取 Web3/加密货币问题，去掉无关内容，只保留核心问题。\n\n"
	if contextText != "" {
		prompt += "上下文：\n" + contextText + "\n"
	}
	prompt += fmt.Sprintf("用户输入：%q\n\n只返回干净的 Web3 问题，不要解释：", query)

	extracted, err := s.model.Complete(ctx, []ai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		logger.Warn("查询提取失败，使用原始输入", zap.Error(err))
		return query
	}
	extracted = strings.TrimSpace(extracted)
	if extracted == "" {
		return query
	}
	return extracted
}

// handleGeneralChat 非 Web3 输入的通用对话
func (s *Service) handleGeneralChat(ctx context.Context, query, sessionID string) string {
	if s.model == nil {
		return capabilityGuide
	}

	historyText := s.historyContext(ctx, sessionID, 3)
	if historyText == "" {
		historyText = "（没有历史对话）"
	}
	prompt := fmt.Sprintf(
		"你是一个 Web3 助手，背后接入了 20 多个真实链上工具。\n\n历史对话：\n%s\n\n当前用户消息：%q\n\n"+
			"这看起来是一个通用问题。请友好地回答，并引导用户使用具体的 Web3 能力：查价格、查余额、估算 gas、代币兑换、K 线行情、NFT 信息、借贷利率等。",
		historyText, query)

	reply, err := s.model.Complete(ctx, []ai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		logger.Warn("通用对话模型调用失败", zap.Error(err))
		return capabilityGuide
	}
	return strings.TrimSpace(reply)
}

// capabilityGuide 模型不可用时的静态能力说明
const capabilityGuide = "我是 Web3 助手，可以帮你：\n" +
	"- 查询代币价格：\"ETH 现在多少钱？\"\n" +
	"- 查询钱包余额：\"查一下 0x... 的余额\"\n" +
	"- 估算 gas：\"现在转账要多少 gas？\"\n" +
	"- 代币兑换：\"把 1 ETH 换成 USDC\"\n" +
	"- K 线行情：\"看看 BTC 最近的 K 线\"\n" +
	"- 借贷利率：\"USDC 的存款利率是多少？\"\n" +
	"直接提出具体的 Web3 问题即可。"

// historyContext 拼装最近几轮对话作为上下文
func (s *Service) historyContext(ctx context.Context, sessionID string, limit int) string {
	if s.store == nil {
		return ""
	}
	history, err := s.store.History(ctx, sessionID, limit)
	if err != nil || len(history) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, exchange := range history {
		fmt.Fprintf(&sb, "此前：%s → %s\n", exchange.Input, exchange.Output)
	}
	return sb.String()
}

func (s *Service) contextWindow() int {
	if s.cfg.ContextWindow > 0 {
		return s.cfg.ContextWindow
	}
	return 2
}

// remember 追加会话记录，失败不影响本轮响应
func (s *Service) remember(ctx context.Context, sessionID, input, output string) {
	if s.store == nil {
		return
	}
	err := s.store.Append(ctx, sessionID, session.Exchange{
		Input:     input,
		Output:    output,
		Timestamp: time.Now(),
	})
	if err != nil {
		logger.Warn("会话记录写入失败", zap.Error(err), zap.String("session", sessionID))
	}
}

// Health 代理健康状态
func (s *Service) Health() map[string]any {
	return map[string]any{
		"model_available": s.model != nil,
		"executor_ready":  s.executorReady(),
	}
}

// isWeb3Query 关键词门控，命中任一关键词即按 Web3 问题处理
func isWeb3Query(query string) bool {
	lower := strings.ToLower(query)
	for _, keyword := range web3Keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
