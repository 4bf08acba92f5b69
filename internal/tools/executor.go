package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"web3agent/internal/logger"
)

// State 执行器状态
type State int32

const (
	StateNotInitialized State = iota
	StateInitializing
	StateInitialized
)

// DefaultTimeout 单次工具调用默认超时
const DefaultTimeout = 30 * time.Second

// Executor 工具执行引擎
// 按类别构造并注册工具，对外提供带超时、错误归一化的统一调用入口。
// Execute 对任何输入都返回 ExecutionResult，不向调用方抛出工具层失败。
type Executor struct {
	mu        sync.Mutex
	state     State
	registry  *Registry
	providers []CategoryProvider

	defaultTimeout time.Duration
	metrics        *Metrics
	recorder       ExecutionRecorder
}

// Option 执行器可选配置
type Option func(*Executor)

// WithDefaultTimeout 设置默认调用超时
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithMetrics 挂接指标收集器
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// WithRecorder 挂接执行历史记录器（可观测侧信道，不影响正确性）
func WithRecorder(r ExecutionRecorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// NewExecutor 创建执行引擎
// providers 按类别提供工具集，Initialize 时逐个尝试
func NewExecutor(registry *Registry, providers []CategoryProvider, opts ...Option) *Executor {
	e := &Executor{
		registry:       registry,
		providers:      providers,
		defaultTimeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry 返回底层注册表
func (e *Executor) Registry() *Registry {
	return e.registry
}

// State 返回当前状态
func (e *Executor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Initialize 按类别注册工具
// 幂等：已初始化时告警返回，不重复注册。单个类别注册失败只记日志，
// 不影响其余类别；全部尝试结束后无论成功多少都进入 Initialized
// （零工具是合法的退化状态）。不指定类别时默认只注册行情类别。
func (e *Executor) Initialize(ctx context.Context, categories ...Category) {
	e.mu.Lock()
	if e.state == StateInitialized {
		e.mu.Unlock()
		logger.Warn("执行器已初始化，忽略重复调用")
		return
	}
	e.state = StateInitializing
	e.mu.Unlock()

	if len(categories) == 0 {
		categories = []Category{CategoryMarketData}
	}

	requested := make(map[Category]bool, len(categories))
	for _, c := range categories {
		requested[c] = true
	}

	for _, provider := range e.providers {
		category := provider.Category()
		if !requested[category] {
			continue
		}
		if err := e.registerCategory(ctx, provider); err != nil {
			// 类别级失败是预期内的部分失败：依赖可能在当前部署中缺失
			logger.Error("类别注册失败，跳过该类别",
				zap.String("category", string(category)),
				zap.String("kind", string(KindCategoryRegistrationFailed)),
				zap.Error(err),
			)
		}
	}

	e.mu.Lock()
	e.state = StateInitialized
	e.mu.Unlock()

	logger.Info("执行器初始化完成",
		zap.Int("total_tools", e.registry.Count()),
	)
}

func (e *Executor) registerCategory(ctx context.Context, provider CategoryProvider) error {
	toolSet, err := provider.Tools(ctx)
	if err != nil {
		return err
	}
	for _, tool := range toolSet {
		def := tool.Definition()
		e.registry.Register(def.Name, tool, def.Category)
	}
	logger.Info("类别注册成功",
		zap.String("category", string(provider.Category())),
		zap.Int("count", len(toolSet)),
	)
	return nil
}

// Execute 执行单个工具
// 前置失败（未初始化 / 工具不存在）、超时、工具内部失败一律以失败的
// ExecutionResult 返回，调用方无需任何错误捕获。
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]any, timeout time.Duration) *ExecutionResult {
	if e.State() != StateInitialized {
		return &ExecutionResult{
			Success:   false,
			ToolName:  toolName,
			Category:  "unknown",
			Error:     "执行器未初始化，请先调用 Initialize()",
			ErrorKind: KindNotInitialized,
		}
	}

	tool, ok := e.registry.Lookup(toolName)
	if !ok {
		return &ExecutionResult{
			Success:   false,
			ToolName:  toolName,
			Category:  "unknown",
			Error:     fmt.Sprintf("工具 %q 不存在，可用工具: %v", toolName, e.registry.List()),
			ErrorKind: KindToolNotFound,
		}
	}

	// 类别按注册表名单反查；注册表不变式保证能查到，查不到也只降级为 unknown
	category := "unknown"
	if c, found := e.registry.CategoryOf(toolName); found {
		category = string(c)
	}

	if params == nil {
		params = map[string]any{}
	}
	if timeout <= 0 {
		if defTimeout := tool.Definition().Timeout; defTimeout > 0 {
			timeout = time.Duration(defTimeout) * time.Second
		} else {
			timeout = e.defaultTimeout
		}
	}

	logger.WithContext(ctx).Info("执行工具",
		zap.String("tool", toolName),
		zap.Any("params", params),
	)

	start := time.Now()
	result := e.invoke(ctx, tool, toolName, category, params, timeout)
	duration := time.Since(start)

	if result.Metadata == nil {
		result.Metadata = map[string]any{}
	}
	result.Metadata["duration_ms"] = duration.Milliseconds()

	if e.metrics != nil {
		e.metrics.RecordCall(toolName, result.Success, duration, result.Error)
	}
	if e.recorder != nil {
		e.recorder.Record(ctx, newExecution(result, params, start, duration))
	}
	if !result.Success {
		logger.WithContext(ctx).Warn("工具执行失败",
			zap.String("tool", toolName),
			zap.String("kind", string(result.ErrorKind)),
			zap.String("error", result.Error),
		)
	}

	return result
}

// invokeOutcome 工具 goroutine 的原始产出
type invokeOutcome struct {
	value any
	err   error
}

// invoke 带超时地调用工具并归一化结果形状
// 工具在独立 goroutine 中运行，select 监听超时：不配合取消的工具也不能
// 阻塞调用方超过时限。panic 统一恢复为工具失败。
func (e *Executor) invoke(ctx context.Context, tool Tool, toolName, category string, params map[string]any, timeout time.Duration) *ExecutionResult {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan invokeOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invokeOutcome{err: fmt.Errorf("工具发生 panic: %v", r)}
			}
		}()
		value, err := tool.Execute(execCtx, params)
		done <- invokeOutcome{value: value, err: err}
	}()

	select {
	case <-execCtx.Done():
		return &ExecutionResult{
			Success:   false,
			ToolName:  toolName,
			Category:  category,
			Error:     fmt.Sprintf("工具执行超时（%s）", timeout),
			ErrorKind: KindTimeout,
		}
	case outcome := <-done:
		if outcome.err != nil {
			return &ExecutionResult{
				Success:   false,
				ToolName:  toolName,
				Category:  category,
				Error:     fmt.Sprintf("工具执行失败: %s", outcome.err.Error()),
				ErrorKind: KindToolRaised,
			}
		}
		return normalize(outcome.value, toolName, category)
	}
}

// normalize 在执行器边界统一结果形状
// *Result 视为结构化结果：Err 为空即成功；其余任意值视为无条件成功的裸数据
func normalize(value any, toolName, category string) *ExecutionResult {
	if structured, ok := value.(*Result); ok && structured != nil {
		if structured.Err != "" {
			return &ExecutionResult{
				Success:  false,
				ToolName: toolName,
				Category: category,
				Data:     structured.Output,
				Error:    structured.Err,
			}
		}
		return &ExecutionResult{
			Success:  true,
			ToolName: toolName,
			Category: category,
			Data:     structured.Output,
		}
	}
	return &ExecutionResult{
		Success:  true,
		ToolName: toolName,
		Category: category,
		Data:     value,
	}
}

// ExecuteBatch 批量执行
// 结果切片与指令顺序严格一致；单条失败不影响其余指令。
// parallel 为真时全部并发调度，按下标回填保证槽位顺序。
func (e *Executor) ExecuteBatch(ctx context.Context, commands []Command, parallel bool) []*ExecutionResult {
	results := make([]*ExecutionResult, len(commands))

	if !parallel {
		for i, cmd := range commands {
			results[i] = e.Execute(ctx, cmd.ToolName, cmd.Parameters, cmd.Timeout)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, cmd := range commands {
		wg.Add(1)
		go func(index int, command Command) {
			defer wg.Done()
			defer func() {
				// 单条指令的意外失败写入对应槽位，不允许拖垮整批
				if r := recover(); r != nil {
					results[index] = &ExecutionResult{
						Success:   false,
						ToolName:  command.ToolName,
						Category:  "unknown",
						Error:     fmt.Sprintf("批量执行异常: %v", r),
						ErrorKind: KindToolRaised,
					}
				}
			}()
			results[index] = e.Execute(ctx, command.ToolName, command.Parameters, command.Timeout)
		}(i, cmd)
	}
	wg.Wait()
	return results
}

// AvailableTools 按类别返回可用工具名（跳过空类别）
func (e *Executor) AvailableTools() map[Category][]string {
	available := make(map[Category][]string)
	for _, category := range AllCategories() {
		if names := e.registry.ListByCategory(category); len(names) > 0 {
			available[category] = names
		}
	}
	return available
}

// ToolInfo 查询单个工具详情
func (e *Executor) ToolInfo(name string) (*ToolInfo, bool) {
	tool, ok := e.registry.Lookup(name)
	if !ok {
		return nil, false
	}

	category := "unknown"
	if c, found := e.registry.CategoryOf(name); found {
		category = string(c)
	}

	def := tool.Definition()
	return &ToolInfo{
		Name:        name,
		Category:    category,
		Description: def.Description,
		Parameters:  def.Parameters,
	}, true
}

// HealthCheck 健康检查，只读无副作用
func (e *Executor) HealthCheck() *Health {
	initialized := e.State() == StateInitialized
	status := "not_initialized"
	if initialized {
		status = "healthy"
	}
	return &Health{
		Initialized:     initialized,
		TotalTools:      e.registry.Count(),
		ToolsByCategory: e.registry.CategoryCounts(),
		Status:          status,
	}
}
