package chat

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	response "web3agent/api/handlers/common"
	"web3agent/internal/agent"
	"web3agent/internal/tools"

	"github.com/gin-gonic/gin"
)

// QueryRequest 对话请求
type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
}

// AgentResponse 对话响应
type AgentResponse struct {
	Response  string `json:"response"`
	Success   bool   `json:"success"`
	Agent     string `json:"agent"`
	SessionID string `json:"session_id,omitempty"`
}

// ExecuteRequest 直接执行工具请求
type ExecuteRequest struct {
	ToolName   string         `json:"tool_name" binding:"required"`
	Parameters map[string]any `json:"parameters"`
	Timeout    int            `json:"timeout"` // 秒，0 表示使用默认超时
}

// ChatHandler 对话与直接执行 Handler
type ChatHandler struct {
	service  *agent.Service
	executor *tools.Executor
}

// NewChatHandler 创建 ChatHandler
func NewChatHandler(service *agent.Service, executor *tools.Executor) *ChatHandler {
	return &ChatHandler{service: service, executor: executor}
}

// Chat 统一对话入口
// 以 /spoonos 开头的输入直接走工具执行，其余交给对话代理
// @Summary 统一对话入口
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body QueryRequest true "用户输入"
// @Success 200 {object} AgentResponse
// @Router /api/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(req.Query)), "/spoonos") {
		h.directExecute(c, req)
		return
	}
	h.query(c, req)
}

// Query 对话代理入口
// @Summary 对话代理入口
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body QueryRequest true "用户输入"
// @Success 200 {object} AgentResponse
// @Router /api/user-agent/query [post]
func (h *ChatHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}
	h.query(c, req)
}

func (h *ChatHandler) query(c *gin.Context, req QueryRequest) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("session-%d", time.Now().Unix()%10000)
	}

	reply := h.service.ProcessQuery(c.Request.Context(), req.Query, sessionID)
	c.JSON(http.StatusOK, AgentResponse{
		Response:  reply,
		Success:   true,
		Agent:     "userAgent",
		SessionID: sessionID,
	})
}

// Execute 直接执行指定工具
// @Summary 直接执行指定工具
// @Tags Chat
// @Accept json
// @Produce json
// @Param request body ExecuteRequest true "工具名与参数"
// @Success 200 {object} response.APIResponse{data=tools.ExecutionResult}
// @Router /api/spoonos/execute [post]
func (h *ChatHandler) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	result := h.executor.Execute(c.Request.Context(), req.ToolName, req.Parameters,
		time.Duration(req.Timeout)*time.Second)
	c.JSON(http.StatusOK, response.APIResponse{
		Success: result.Success,
		Data:    result,
	})
}

// directExecute 解析 "/spoonos <tool> [key=value ...]" 形式的直接命令
func (h *ChatHandler) directExecute(c *gin.Context, req QueryRequest) {
	fields := strings.Fields(strings.TrimSpace(req.Query))
	if len(fields) < 2 {
		c.JSON(http.StatusOK, AgentResponse{
			Response:  "用法：/spoonos <工具名> [key=value ...]",
			Success:   false,
			Agent:     "spoonOS",
			SessionID: req.SessionID,
		})
		return
	}

	params := map[string]any{}
	for _, field := range fields[2:] {
		if key, value, ok := strings.Cut(field, "="); ok {
			params[key] = value
		}
	}

	result := h.executor.Execute(c.Request.Context(), fields[1], params, 0)
	reply := result.Error
	if result.Success {
		reply = fmt.Sprintf("%v", result.Data)
	}
	c.JSON(http.StatusOK, AgentResponse{
		Response:  reply,
		Success:   result.Success,
		Agent:     "spoonOS",
		SessionID: req.SessionID,
	})
}
