package tools

import (
	"context"
	"time"
)

// Category 工具类别
type Category string

// 固定类别枚举，一个工具只属于一个类别
const (
	CategoryMarketData   Category = "market_data"   // 行情数据
	CategoryDEXAnalytics Category = "dex_analytics" // CEX/DEX 深度行情分析
	CategoryEVM          Category = "evm"           // EVM 链操作
	CategoryNeo          Category = "neo"           // Neo 链操作
	CategoryGitHub       Category = "github"        // 仓库分析
)

// AllCategories 返回全部类别（注册顺序即此顺序）
func AllCategories() []Category {
	return []Category{
		CategoryMarketData,
		CategoryDEXAnalytics,
		CategoryEVM,
		CategoryNeo,
		CategoryGitHub,
	}
}

// Definition 工具定义
type Definition struct {
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
	Description string         `json:"description"`
	Category    Category       `json:"category"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
	Timeout     int            `json:"timeout"`    // 秒，0 使用执行器默认值
}

// Tool 单一能力单元，注册后归注册表独占持有
type Tool interface {
	// Definition 返回工具静态定义
	Definition() *Definition

	// Execute 执行工具，返回值可以是任意裸值，也可以是 *Result 结构化结果
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// Result 结构化工具返回：Output 为产出，Err 非空表示工具层面失败
// 执行器在边界处统一归一化，下游不再做形状判断
type Result struct {
	Output any    `json:"output"`
	Err    string `json:"error,omitempty"`
}

// ErrorKind 执行失败分类
type ErrorKind string

const (
	KindNotInitialized             ErrorKind = "not_initialized"
	KindToolNotFound               ErrorKind = "tool_not_found"
	KindTimeout                    ErrorKind = "timeout"
	KindToolRaised                 ErrorKind = "tool_raised"
	KindCategoryRegistrationFailed ErrorKind = "category_registration_failed"
	KindProviderUnavailable        ErrorKind = "provider_unavailable"
)

// ExecutionResult 单次调用的统一结果，构造后不再修改
type ExecutionResult struct {
	Success   bool           `json:"success"`
	ToolName  string         `json:"tool_name"`
	Category  string         `json:"category"` // 未注册时为 "unknown"
	Data      any            `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	ErrorKind ErrorKind      `json:"error_kind,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Command 批量执行中的单条指令
type Command struct {
	ToolName   string         `json:"tool_name"`
	Parameters map[string]any `json:"parameters"`
	Timeout    time.Duration  `json:"-"` // 0 使用执行器默认超时
}

// ToolInfo 工具详情（对外查询用）
type ToolInfo struct {
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Health 执行器健康状态
type Health struct {
	Initialized     bool             `json:"initialized"`
	TotalTools      int              `json:"total_tools"`
	ToolsByCategory map[Category]int `json:"tools_by_category"`
	Status          string           `json:"status"` // healthy / not_initialized
}

// CategoryProvider 类别能力提供方
// 一个类别的工具集可能整体不可用（如依赖配置缺失），Tools 返回错误即表示该类别无工具，
// 属于一等可测试结果而非需要吞掉的导入失败
type CategoryProvider interface {
	// Category 返回该提供方负责的类别
	Category() Category

	// Tools 构造该类别的全部工具实例
	Tools(ctx context.Context) ([]Tool, error)
}
