package tools

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcTool struct {
	def *Definition
	fn  func(ctx context.Context, params map[string]any) (any, error)
}

func (t *funcTool) Definition() *Definition { return t.def }

func (t *funcTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.fn(ctx, params)
}

func newFuncTool(name string, category Category, fn func(ctx context.Context, params map[string]any) (any, error)) *funcTool {
	return &funcTool{
		def: &Definition{Name: name, Category: category, Description: "test tool"},
		fn:  fn,
	}
}

// fakeProvider 可控的类别提供方
type fakeProvider struct {
	category Category
	toolSet  []Tool
	err      error
	calls    int
}

func (p *fakeProvider) Category() Category { return p.category }

func (p *fakeProvider) Tools(ctx context.Context) ([]Tool, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.toolSet, nil
}

func newTestExecutor(providers ...CategoryProvider) *Executor {
	return NewExecutor(NewRegistry(), providers)
}

func TestExecutorInitializeIdempotent(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			newStaticTool("get_token_price", CategoryMarketData, "ok"),
		},
	}
	e := newTestExecutor(provider)

	e.Initialize(context.Background(), CategoryMarketData)
	assert.Equal(t, StateInitialized, e.State())
	assert.Equal(t, 1, e.Registry().Count())
	assert.Equal(t, 1, provider.calls)

	// 第二次调用不再注册
	e.Initialize(context.Background(), CategoryMarketData)
	assert.Equal(t, 1, e.Registry().Count())
	assert.Equal(t, 1, provider.calls)
}

func TestExecutorInitializePartialFailure(t *testing.T) {
	broken := &fakeProvider{
		category: CategoryEVM,
		err:      errors.New("缺少 RPC 配置"),
	}
	healthy := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			newStaticTool("get_token_price", CategoryMarketData, "ok"),
			newStaticTool("get_24h_stats", CategoryMarketData, "ok"),
		},
	}
	e := newTestExecutor(broken, healthy)

	e.Initialize(context.Background(), CategoryEVM, CategoryMarketData)

	// 单类别失败不阻止初始化完成，其余类别工具照常可用
	assert.Equal(t, StateInitialized, e.State())
	assert.Equal(t, 2, e.Registry().Count())
	assert.Empty(t, e.Registry().ListByCategory(CategoryEVM))
	assert.Len(t, e.Registry().ListByCategory(CategoryMarketData), 2)
}

func TestExecutorInitializeDefaultCategory(t *testing.T) {
	market := &fakeProvider{category: CategoryMarketData, toolSet: []Tool{newStaticTool("get_token_price", CategoryMarketData, "ok")}}
	github := &fakeProvider{category: CategoryGitHub, toolSet: []Tool{newStaticTool("github_issues", CategoryGitHub, "ok")}}
	e := newTestExecutor(market, github)

	e.Initialize(context.Background())

	// 未指定类别时只注册行情类别
	assert.Equal(t, 1, market.calls)
	assert.Equal(t, 0, github.calls)
}

func TestExecuteBeforeInitialize(t *testing.T) {
	e := newTestExecutor()

	result := e.Execute(context.Background(), "get_token_price", nil, 0)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.Equal(t, KindNotInitialized, result.ErrorKind)
	assert.Equal(t, "unknown", result.Category)
}

func TestExecuteToolNotFound(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet:  []Tool{newStaticTool("get_token_price", CategoryMarketData, "ok")},
	}
	e := newTestExecutor(provider)
	e.Initialize(context.Background(), CategoryMarketData)

	result := e.Execute(context.Background(), "no_such_tool", nil, 0)

	assert.False(t, result.Success)
	assert.Equal(t, KindToolNotFound, result.ErrorKind)
	// 错误信息列出当前已注册工具，便于排查
	assert.Contains(t, result.Error, "get_token_price")
}

func TestExecuteResultNormalization(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			newFuncTool("raw", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				return map[string]any{"price": 2500.0}, nil
			}),
			newFuncTool("structured_ok", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				return &Result{Output: "42"}, nil
			}),
			newFuncTool("structured_err", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				return &Result{Err: "上游返回 429"}, nil
			}),
		},
	}
	e := newTestExecutor(provider)
	e.Initialize(context.Background(), CategoryMarketData)

	t.Run("裸值视为无条件成功", func(t *testing.T) {
		result := e.Execute(context.Background(), "raw", nil, 0)
		assert.True(t, result.Success)
		assert.Equal(t, map[string]any{"price": 2500.0}, result.Data)
		assert.Equal(t, string(CategoryMarketData), result.Category)
	})

	t.Run("结构化结果取 Output", func(t *testing.T) {
		result := e.Execute(context.Background(), "structured_ok", nil, 0)
		assert.True(t, result.Success)
		assert.Equal(t, "42", result.Data)
	})

	t.Run("结构化错误归一化为失败", func(t *testing.T) {
		result := e.Execute(context.Background(), "structured_err", nil, 0)
		assert.False(t, result.Success)
		assert.Equal(t, "上游返回 429", result.Error)
	})
}

func TestExecuteNeverRaises(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			newFuncTool("fails", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				return nil, errors.New("上游连接被拒绝")
			}),
			newFuncTool("panics", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				panic("boom")
			}),
		},
	}
	e := newTestExecutor(provider)
	e.Initialize(context.Background(), CategoryMarketData)

	t.Run("返回错误归一化为 ToolRaised", func(t *testing.T) {
		result := e.Execute(context.Background(), "fails", map[string]any{"x": 1}, 0)
		assert.False(t, result.Success)
		assert.Equal(t, KindToolRaised, result.ErrorKind)
		assert.Contains(t, result.Error, "上游连接被拒绝")
	})

	t.Run("panic 恢复为 ToolRaised", func(t *testing.T) {
		var result *ExecutionResult
		assert.NotPanics(t, func() {
			result = e.Execute(context.Background(), "panics", nil, 0)
		})
		assert.False(t, result.Success)
		assert.Equal(t, KindToolRaised, result.ErrorKind)
		assert.Contains(t, result.Error, "boom")
	})
}

func TestExecuteTimeout(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			newFuncTool("slow", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				// 故意无视取消信号，验证执行器自身的超时兜底
				time.Sleep(5 * time.Second)
				return "too late", nil
			}),
		},
	}
	e := newTestExecutor(provider)
	e.Initialize(context.Background(), CategoryMarketData)

	start := time.Now()
	result := e.Execute(context.Background(), "slow", nil, 100*time.Millisecond)
	elapsed := time.Since(start)

	assert.False(t, result.Success)
	assert.Equal(t, KindTimeout, result.ErrorKind)
	assert.Contains(t, result.Error, "100ms")
	assert.Less(t, elapsed, time.Second, "超时后应立刻返回，不等待工具结束")
}

func TestExecuteBatchOrder(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			newFuncTool("a", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				time.Sleep(50 * time.Millisecond) // A 最慢，检验槽位顺序与完成顺序无关
				return "A", nil
			}),
			newFuncTool("b", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				return nil, errors.New("B 失败")
			}),
			newFuncTool("c", CategoryMarketData, func(ctx context.Context, params map[string]any) (any, error) {
				return "C", nil
			}),
		},
	}
	e := newTestExecutor(provider)
	e.Initialize(context.Background(), CategoryMarketData)

	commands := []Command{
		{ToolName: "a"},
		{ToolName: "b"},
		{ToolName: "c"},
	}

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			results := e.ExecuteBatch(context.Background(), commands, parallel)

			require.Len(t, results, 3)
			assert.True(t, results[0].Success)
			assert.Equal(t, "A", results[0].Data)
			assert.False(t, results[1].Success)
			assert.True(t, results[2].Success)
			assert.Equal(t, "C", results[2].Data)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet:  []Tool{newStaticTool("get_token_price", CategoryMarketData, "ok")},
	}
	e := newTestExecutor(provider)

	t.Run("未初始化", func(t *testing.T) {
		health := e.HealthCheck()
		assert.False(t, health.Initialized)
		assert.Equal(t, "not_initialized", health.Status)
		assert.Equal(t, 0, health.TotalTools)
	})

	t.Run("初始化后健康", func(t *testing.T) {
		e.Initialize(context.Background(), CategoryMarketData)
		health := e.HealthCheck()
		assert.True(t, health.Initialized)
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, 1, health.TotalTools)
		assert.Equal(t, 1, health.ToolsByCategory[CategoryMarketData])
	})
}

func TestToolInfoAndAvailableTools(t *testing.T) {
	provider := &fakeProvider{
		category: CategoryMarketData,
		toolSet: []Tool{
			&funcTool{
				def: &Definition{
					Name:        "get_token_price",
					Category:    CategoryMarketData,
					Description: "查询交易对最新价格",
					Parameters:  map[string]any{"type": "object"},
				},
				fn: func(ctx context.Context, params map[string]any) (any, error) { return nil, nil },
			},
		},
	}
	e := newTestExecutor(provider)
	e.Initialize(context.Background(), CategoryMarketData)

	info, ok := e.ToolInfo("get_token_price")
	require.True(t, ok)
	assert.Equal(t, "get_token_price", info.Name)
	assert.Equal(t, string(CategoryMarketData), info.Category)
	assert.Equal(t, "查询交易对最新价格", info.Description)

	_, ok = e.ToolInfo("missing")
	assert.False(t, ok)

	available := e.AvailableTools()
	assert.Equal(t, []string{"get_token_price"}, available[CategoryMarketData])
	_, hasEVM := available[CategoryEVM]
	assert.False(t, hasEVM)
}

func TestMetricsRecording(t *testing.T) {
	m := NewMetrics(nil)
	m.RecordCall("get_token_price", true, 20*time.Millisecond, "")
	m.RecordCall("get_token_price", false, 40*time.Millisecond, "超时")

	snaps := m.Snapshot()
	require.Len(t, snaps, 1)
	assert.Equal(t, int64(2), snaps[0].TotalCalls)
	assert.Equal(t, int64(1), snaps[0].SuccessCalls)
	assert.Equal(t, int64(1), snaps[0].FailedCalls)
	assert.Equal(t, "超时", snaps[0].LastError)
	assert.InDelta(t, 20.0, snaps[0].MinLatencyMs, 1.0)
	assert.InDelta(t, 40.0, snaps[0].MaxLatencyMs, 1.0)
}
