package metrics

import "time"

// ToolCallRecorder 把工具调用指标写入 Prometheus
// 实现 tools.MetricsRecorder
type ToolCallRecorder struct{}

// NewToolCallRecorder 创建工具调用指标记录器
func NewToolCallRecorder() *ToolCallRecorder {
	return &ToolCallRecorder{}
}

// RecordToolCall 记录一次工具调用
func (r *ToolCallRecorder) RecordToolCall(tool string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failed"
	}
	ToolCallsTotal.WithLabelValues(tool, status).Inc()
	ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
