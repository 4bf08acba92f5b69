package agent

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"web3agent/internal/logger"
)

// DemoLog 按行追加 JSON 的演示日志，记录每轮问答
type DemoLog struct {
	mu   sync.Mutex
	file *os.File
}

// DemoEntry 一轮问答的记录，Tool 与 Error 仅在走了工具执行路径时出现
type DemoEntry struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
	Response  string `json:"response"`
	Tool      string `json:"tool,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OpenDemoLog 打开（或创建）演示日志文件
func OpenDemoLog(path string) (*DemoLog, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DemoLog{file: file}, nil
}

// Record 追加一条问答记录，失败只打日志
func (d *DemoLog) Record(entry DemoEntry) {
	entry.Timestamp = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, err := d.file.Write(append(data, '\n')); err != nil {
		logger.Warn("演示日志写入失败", zap.Error(err))
	}
}

// Close 关闭日志文件
func (d *DemoLog) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}
