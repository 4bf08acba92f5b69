package tools

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 工具调用统计
type Metrics struct {
	mu       sync.RWMutex
	tools    map[string]*ToolStats
	recorder MetricsRecorder
}

// ToolStats 单个工具的统计数据
type ToolStats struct {
	Name          string
	TotalCalls    atomic.Int64
	SuccessCalls  atomic.Int64
	FailedCalls   atomic.Int64
	TotalDuration atomic.Int64 // 纳秒
	MinDuration   atomic.Int64
	MaxDuration   atomic.Int64
	LastCalled    atomic.Int64 // Unix 时间戳
	LastError     atomic.Value // string
}

// MetricsRecorder 外部指标记录接口（对接 Prometheus）
type MetricsRecorder interface {
	RecordToolCall(tool string, success bool, duration time.Duration)
}

// NewMetrics 创建指标收集器，recorder 可为 nil
func NewMetrics(recorder MetricsRecorder) *Metrics {
	return &Metrics{
		tools:    make(map[string]*ToolStats),
		recorder: recorder,
	}
}

func (m *Metrics) getOrCreateStats(name string) *ToolStats {
	m.mu.RLock()
	stats, ok := m.tools[name]
	m.mu.RUnlock()
	if ok {
		return stats
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// 双重检查
	if stats, ok = m.tools[name]; ok {
		return stats
	}

	stats = &ToolStats{Name: name}
	stats.MinDuration.Store(int64(^uint64(0) >> 1)) // Max int64
	m.tools[name] = stats
	return stats
}

// RecordCall 记录一次工具调用
func (m *Metrics) RecordCall(name string, success bool, duration time.Duration, errText string) {
	stats := m.getOrCreateStats(name)

	stats.TotalCalls.Add(1)
	if success {
		stats.SuccessCalls.Add(1)
	} else {
		stats.FailedCalls.Add(1)
		if errText != "" {
			stats.LastError.Store(errText)
		}
	}

	durationNs := duration.Nanoseconds()
	stats.TotalDuration.Add(durationNs)
	stats.LastCalled.Store(time.Now().Unix())

	for {
		old := stats.MinDuration.Load()
		if durationNs >= old || stats.MinDuration.CompareAndSwap(old, durationNs) {
			break
		}
	}
	for {
		old := stats.MaxDuration.Load()
		if durationNs <= old || stats.MaxDuration.CompareAndSwap(old, durationNs) {
			break
		}
	}

	if m.recorder != nil {
		m.recorder.RecordToolCall(name, success, duration)
	}
}

// StatsSnapshot 单个工具统计快照
type StatsSnapshot struct {
	Name         string  `json:"name"`
	TotalCalls   int64   `json:"total_calls"`
	SuccessCalls int64   `json:"success_calls"`
	FailedCalls  int64   `json:"failed_calls"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	MinLatencyMs float64 `json:"min_latency_ms"`
	MaxLatencyMs float64 `json:"max_latency_ms"`
	LastCalled   int64   `json:"last_called"`
	LastError    string  `json:"last_error,omitempty"`
}

// Snapshot 导出全部工具统计
func (m *Metrics) Snapshot() []StatsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]StatsSnapshot, 0, len(m.tools))
	for _, stats := range m.tools {
		total := stats.TotalCalls.Load()
		snap := StatsSnapshot{
			Name:         stats.Name,
			TotalCalls:   total,
			SuccessCalls: stats.SuccessCalls.Load(),
			FailedCalls:  stats.FailedCalls.Load(),
			MaxLatencyMs: float64(stats.MaxDuration.Load()) / 1e6,
			LastCalled:   stats.LastCalled.Load(),
		}
		if total > 0 {
			snap.AvgLatencyMs = float64(stats.TotalDuration.Load()) / float64(total) / 1e6
			snap.MinLatencyMs = float64(stats.MinDuration.Load()) / 1e6
		}
		if v, ok := stats.LastError.Load().(string); ok {
			snap.LastError = v
		}
		out = append(out, snap)
	}
	return out
}
