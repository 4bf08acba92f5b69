package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"web3agent/internal/agent"
	"web3agent/internal/config"
	"web3agent/internal/session"
	"web3agent/internal/tools"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name     string
	output   any
	received map[string]any
}

func (t *stubTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        t.name,
		Category:    tools.CategoryMarketData,
		Description: "测试工具",
		Parameters:  map[string]any{},
	}
}

func (t *stubTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	t.received = params
	return t.output, nil
}

type stubProvider struct {
	toolSet []tools.Tool
}

func (p *stubProvider) Category() tools.Category { return tools.CategoryMarketData }

func (p *stubProvider) Tools(ctx context.Context) ([]tools.Tool, error) {
	return p.toolSet, nil
}

func newTestHandler(t *testing.T, toolSet ...tools.Tool) (*ChatHandler, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	executor := tools.NewExecutor(tools.NewRegistry(), []tools.CategoryProvider{&stubProvider{toolSet: toolSet}})
	executor.Initialize(context.Background(), tools.CategoryMarketData)

	cfg := config.AgentConfig{ToolTimeout: 5, ContextWindow: 2, DefaultSession: "default"}
	service := agent.NewService(executor, session.NewMemoryStore(10), cfg)

	h := NewChatHandler(service, executor)
	router := gin.New()
	router.POST("/api/chat", h.Chat)
	router.POST("/api/user-agent/query", h.Query)
	router.POST("/api/spoonos/execute", h.Execute)
	return h, router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestChatHandler(t *testing.T) {
	t.Run("缺少 query 返回 400", func(t *testing.T) {
		_, router := newTestHandler(t)
		resp := postJSON(t, router, "/api/chat", map[string]any{"session_id": "s1"})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("普通闲聊走对话代理", func(t *testing.T) {
		_, router := newTestHandler(t)
		resp := postJSON(t, router, "/api/chat", map[string]any{"query": "你好", "session_id": "s1"})
		require.Equal(t, http.StatusOK, resp.Code)

		var out AgentResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.True(t, out.Success)
		assert.Equal(t, "userAgent", out.Agent)
		assert.Equal(t, "s1", out.SessionID)
		assert.Contains(t, out.Response, "Web3 助手")
	})

	t.Run("未指定会话时生成默认会话 ID", func(t *testing.T) {
		_, router := newTestHandler(t)
		resp := postJSON(t, router, "/api/user-agent/query", map[string]any{"query": "你好"})
		require.Equal(t, http.StatusOK, resp.Code)

		var out AgentResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.NotEmpty(t, out.SessionID)
	})

	t.Run("spoonos 前缀直接执行工具", func(t *testing.T) {
		echo := &stubTool{name: "get_token_price", output: "price: 2500"}
		_, router := newTestHandler(t, echo)
		resp := postJSON(t, router, "/api/chat", map[string]any{
			"query":      "/spoonos get_token_price symbol=ETH-USDC",
			"session_id": "s2",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var out AgentResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.True(t, out.Success)
		assert.Equal(t, "spoonOS", out.Agent)
		assert.Contains(t, out.Response, "price: 2500")
		assert.Equal(t, "ETH-USDC", echo.received["symbol"])
	})

	t.Run("spoonos 缺少工具名返回用法提示", func(t *testing.T) {
		_, router := newTestHandler(t)
		resp := postJSON(t, router, "/api/chat", map[string]any{"query": "/spoonos"})
		require.Equal(t, http.StatusOK, resp.Code)

		var out AgentResponse
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.False(t, out.Success)
		assert.Contains(t, out.Response, "用法")
	})
}

func TestExecuteEndpoint(t *testing.T) {
	t.Run("执行已注册工具", func(t *testing.T) {
		echo := &stubTool{name: "get_token_price", output: map[string]any{"price": 2500.0}}
		_, router := newTestHandler(t, echo)
		resp := postJSON(t, router, "/api/spoonos/execute", map[string]any{
			"tool_name":  "get_token_price",
			"parameters": map[string]any{"symbol": "ETH-USDC"},
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var out struct {
			Success bool                  `json:"success"`
			Data    tools.ExecutionResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.True(t, out.Success)
		assert.Equal(t, "get_token_price", out.Data.ToolName)
	})

	t.Run("执行未注册工具返回失败结果", func(t *testing.T) {
		_, router := newTestHandler(t)
		resp := postJSON(t, router, "/api/spoonos/execute", map[string]any{
			"tool_name": "no_such_tool",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var out struct {
			Success bool                  `json:"success"`
			Data    tools.ExecutionResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
		assert.False(t, out.Success)
		assert.Equal(t, tools.KindToolNotFound, out.Data.ErrorKind)
	})

	t.Run("缺少 tool_name 返回 400", func(t *testing.T) {
		_, router := newTestHandler(t)
		resp := postJSON(t, router, "/api/spoonos/execute", map[string]any{"parameters": map[string]any{}})
		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}
