package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	toolspkg "web3agent/internal/tools"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	output any
}

func (t *stubTool) Definition() *toolspkg.Definition {
	return &toolspkg.Definition{
		Name:        t.name,
		Category:    toolspkg.CategoryMarketData,
		Description: "测试工具",
		Parameters: map[string]any{
			"symbol": map[string]any{"type": "string"},
		},
	}
}

func (t *stubTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.output, nil
}

type stubProvider struct {
	toolSet []toolspkg.Tool
}

func (p *stubProvider) Category() toolspkg.Category { return toolspkg.CategoryMarketData }

func (p *stubProvider) Tools(ctx context.Context) ([]toolspkg.Tool, error) {
	return p.toolSet, nil
}

func newTestRouter(t *testing.T, toolSet ...toolspkg.Tool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	executor := toolspkg.NewExecutor(toolspkg.NewRegistry(),
		[]toolspkg.CategoryProvider{&stubProvider{toolSet: toolSet}})
	executor.Initialize(context.Background(), toolspkg.CategoryMarketData)

	h := NewToolHandler(executor, nil)
	router := gin.New()
	router.GET("/api/tools", h.ListTools)
	router.GET("/api/tools/:name", h.GetTool)
	router.POST("/api/tools/:name/execute", h.ExecuteTool)
	router.GET("/api/tools/:name/executions", h.ListExecutions)
	return router
}

func TestListTools(t *testing.T) {
	router := newTestRouter(t,
		&stubTool{name: "get_token_price"},
		&stubTool{name: "get_24h_stats"},
	)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tools", nil))
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Success bool `json:"success"`
		Data    struct {
			Tools map[string][]string `json:"tools"`
			Count int                 `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, 2, out.Data.Count)
	assert.Len(t, out.Data.Tools["market_data"], 2)
}

func TestGetTool(t *testing.T) {
	router := newTestRouter(t, &stubTool{name: "get_token_price"})

	t.Run("已注册工具返回详情", func(t *testing.T) {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tools/get_token_price", nil))
		require.Equal(t, http.StatusOK, resp.Code)

		var info toolspkg.ToolInfo
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &info))
		assert.Equal(t, "get_token_price", info.Name)
		assert.Equal(t, "market_data", info.Category)
		assert.Contains(t, info.Parameters, "symbol")
	})

	t.Run("未注册工具返回 404", func(t *testing.T) {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tools/no_such_tool", nil))
		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestExecuteTool(t *testing.T) {
	router := newTestRouter(t, &stubTool{name: "get_token_price", output: map[string]any{"price": 2500.0}})

	body, _ := json.Marshal(ExecuteToolRequest{Parameters: map[string]any{"symbol": "ETH-USDC"}})
	req := httptest.NewRequest(http.MethodPost, "/api/tools/get_token_price/execute", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var out struct {
		Success bool                     `json:"success"`
		Data    toolspkg.ExecutionResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	assert.True(t, out.Success)
	assert.Equal(t, "get_token_price", out.Data.ToolName)
	assert.Equal(t, "market_data", out.Data.Category)
}

func TestListExecutionsWithoutRecorder(t *testing.T) {
	router := newTestRouter(t, &stubTool{name: "get_token_price"})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/tools/get_token_price/executions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}
