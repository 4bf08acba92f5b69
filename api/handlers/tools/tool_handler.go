package tools

import (
	"net/http"
	"strconv"
	"time"

	response "web3agent/api/handlers/common"
	"web3agent/internal/tools"

	"github.com/gin-gonic/gin"
)

// ExecuteToolRequest 执行工具请求
type ExecuteToolRequest struct {
	Parameters map[string]any `json:"parameters"`
	Timeout    int            `json:"timeout"` // 秒，0 表示使用默认超时
}

// ToolHandler 工具查询与执行 Handler
type ToolHandler struct {
	executor *tools.Executor
	recorder *tools.GormRecorder // 未配置数据库时为 nil
}

// NewToolHandler 创建 ToolHandler
func NewToolHandler(executor *tools.Executor, recorder *tools.GormRecorder) *ToolHandler {
	return &ToolHandler{executor: executor, recorder: recorder}
}

// ListTools 按类别列出可用工具
// @Summary 查询工具列表
// @Tags Tools
// @Produce json
// @Success 200 {object} response.APIResponse
// @Router /api/tools [get]
func (h *ToolHandler) ListTools(c *gin.Context) {
	available := h.executor.AvailableTools()

	total := 0
	for _, names := range available {
		total += len(names)
	}
	c.JSON(http.StatusOK, response.APIResponse{
		Success: true,
		Data: gin.H{
			"tools": available,
			"count": total,
		},
	})
}

// GetTool 查询工具详情
// @Summary 获取工具详情
// @Tags Tools
// @Produce json
// @Param name path string true "工具名称"
// @Success 200 {object} tools.ToolInfo
// @Failure 404 {object} response.ErrorResponse
// @Router /api/tools/{name} [get]
func (h *ToolHandler) GetTool(c *gin.Context) {
	name := c.Param("name")
	info, ok := h.executor.ToolInfo(name)
	if !ok {
		c.JSON(http.StatusNotFound, response.ErrorResponse{Success: false, Message: "工具不存在"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// ExecuteTool 执行工具
// @Summary 执行工具
// @Tags Tools
// @Accept json
// @Produce json
// @Param name path string true "工具名称"
// @Param request body ExecuteToolRequest true "执行参数"
// @Success 200 {object} response.APIResponse{data=tools.ExecutionResult}
// @Router /api/tools/{name}/execute [post]
func (h *ToolHandler) ExecuteTool(c *gin.Context) {
	name := c.Param("name")

	var req ExecuteToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	result := h.executor.Execute(c.Request.Context(), name, req.Parameters,
		time.Duration(req.Timeout)*time.Second)
	c.JSON(http.StatusOK, response.APIResponse{
		Success: result.Success,
		Data:    result,
	})
}

// ListExecutions 查询工具执行历史
// @Summary 查询工具执行历史
// @Tags Tools
// @Produce json
// @Param name path string true "工具名称"
// @Param status query string false "success / failed"
// @Param page query int false "页码"
// @Param page_size query int false "每页条数"
// @Success 200 {object} response.APIResponse{data=response.ListResponse}
// @Failure 503 {object} response.ErrorResponse
// @Router /api/tools/{name}/executions [get]
func (h *ToolHandler) ListExecutions(c *gin.Context) {
	if h.recorder == nil {
		c.JSON(http.StatusServiceUnavailable, response.ErrorResponse{
			Success: false,
			Message: "执行历史未启用（未配置数据库）",
		})
		return
	}

	name := c.Param("name")
	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	executions, total, err := h.recorder.ListExecutions(c.Request.Context(), name, status, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.ErrorResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, response.APIResponse{
		Success: true,
		Data: response.ListResponse{
			Items:      executions,
			Pagination: response.NewPagination(page, pageSize, total),
		},
	})
}
