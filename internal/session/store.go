package session

import (
	"context"
	"sync"
	"time"
)

// Exchange 一轮对话（用户输入 + 代理输出）
type Exchange struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Timestamp time.Time `json:"timestamp"`
}

// Store 会话历史存储，按会话 ID 追加对话轮次
type Store interface {
	// Append 追加一轮对话
	Append(ctx context.Context, sessionID string, exchange Exchange) error
	// History 返回最近 limit 轮对话，limit<=0 表示全部，顺序为时间先后
	History(ctx context.Context, sessionID string, limit int) ([]Exchange, error)
}

// MemoryStore 进程内会话存储，Redis 不可用时的降级实现
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Exchange
	maxSize  int
}

// NewMemoryStore 创建内存会话存储
// maxSize 为单会话保留的最大轮数，<=0 表示不限制
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]Exchange),
		maxSize:  maxSize,
	}
}

// Append 实现 Store
func (s *MemoryStore) Append(ctx context.Context, sessionID string, exchange Exchange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.sessions[sessionID], exchange)
	if s.maxSize > 0 && len(history) > s.maxSize {
		history = history[len(history)-s.maxSize:]
	}
	s.sessions[sessionID] = history
	return nil
}

// History 实现 Store
func (s *MemoryStore) History(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.sessions[sessionID]
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]Exchange, len(history))
	copy(out, history)
	return out, nil
}
