package tools

import (
	"sync"

	"go.uber.org/zap"

	"web3agent/internal/logger"
)

// Registry 工具注册表
// 名称到实例的映射加各类别的插入序名单；初始化阶段写入完成后仅并发读
type Registry struct {
	mu         sync.RWMutex
	tools      map[string]Tool       // name -> instance
	categories map[Category][]string // category -> 插入序工具名
	order      []string              // 全局注册顺序
}

// NewRegistry 创建工具注册表
func NewRegistry() *Registry {
	return &Registry{
		tools:      make(map[string]Tool),
		categories: make(map[Category][]string),
	}
}

// Register 注册工具
// 名称冲突时覆盖旧实例并告警（非致命）；类别名单对重复注册幂等
func (r *Registry) Register(name string, tool Tool, category Category) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		logger.Warn("工具已注册，覆盖旧实例", zap.String("tool", name))
	} else {
		r.order = append(r.order, name)
	}

	r.tools[name] = tool

	if !contains(r.categories[category], name) {
		r.categories[category] = append(r.categories[category], name)
	}

	logger.Info("注册工具",
		zap.String("tool", name),
		zap.String("category", string(category)),
	)
}

// Lookup 按名称查找工具实例
func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List 列出全部工具名（全局注册顺序）
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ListByCategory 列出某类别的工具名（插入顺序）
func (r *Registry) ListByCategory(category Category) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := r.categories[category]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// CategoryOf 查询工具所属类别
func (r *Registry) CategoryOf(name string) (Category, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, category := range AllCategories() {
		if contains(r.categories[category], name) {
			return category, true
		}
	}
	return "", false
}

// Count 统计工具数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// CategoryCounts 各类别工具数（跳过空类别）
func (r *Registry) CategoryCounts() map[Category]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[Category]int)
	for category, names := range r.categories {
		if len(names) > 0 {
			counts[category] = len(names)
		}
	}
	return counts
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
