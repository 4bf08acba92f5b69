package tools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"web3agent/internal/logger"
)

// Execution 工具执行记录（可观测侧信道，正确性不依赖它）
type Execution struct {
	ID           string         `json:"id" gorm:"primaryKey;size:36"`
	ToolName     string         `json:"toolName" gorm:"size:100;not null;index"`
	Category     string         `json:"category" gorm:"size:50"`
	Input        map[string]any `json:"input" gorm:"serializer:json"`
	Output       any            `json:"output" gorm:"serializer:json"`
	ErrorMessage string         `json:"errorMessage,omitempty" gorm:"type:text"`
	ErrorKind    string         `json:"errorKind,omitempty" gorm:"size:50"`
	Status       string         `json:"status" gorm:"size:20;not null"` // success, failed
	StartedAt    time.Time      `json:"startedAt" gorm:"not null"`
	Duration     int64          `json:"duration"` // 毫秒
	CreatedAt    time.Time      `json:"createdAt" gorm:"not null;autoCreateTime"`
}

// ExecutionRecorder 执行历史记录器
type ExecutionRecorder interface {
	// Record 落库一条执行记录，失败只记日志
	Record(ctx context.Context, execution *Execution)
}

func newExecution(result *ExecutionResult, params map[string]any, startedAt time.Time, duration time.Duration) *Execution {
	execution := &Execution{
		ID:        uuid.New().String(),
		ToolName:  result.ToolName,
		Category:  result.Category,
		Input:     params,
		Output:    result.Data,
		StartedAt: startedAt,
		Duration:  duration.Milliseconds(),
		Status:    "success",
	}
	if !result.Success {
		execution.Status = "failed"
		execution.ErrorMessage = result.Error
		execution.ErrorKind = string(result.ErrorKind)
	}
	return execution
}

// GormRecorder 基于 gorm 的执行记录器
type GormRecorder struct {
	db *gorm.DB
}

// NewGormRecorder 创建执行记录器
func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

// Record 写入执行记录
func (r *GormRecorder) Record(ctx context.Context, execution *Execution) {
	if r.db == nil {
		return
	}
	if err := r.db.WithContext(ctx).Create(execution).Error; err != nil {
		logger.Warn("写入执行记录失败",
			zap.String("tool", execution.ToolName),
			zap.Error(err),
		)
	}
}

// ListExecutions 分页查询某工具的执行历史（按时间倒序）
func (r *GormRecorder) ListExecutions(ctx context.Context, toolName, status string, page, pageSize int) ([]Execution, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&Execution{}).Where("tool_name = ?", toolName)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var executions []Execution
	err := query.Offset((page - 1) * pageSize).
		Limit(pageSize).
		Order("created_at DESC").
		Find(&executions).Error
	return executions, total, err
}
