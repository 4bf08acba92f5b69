package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis List 的会话存储，跨进程共享会话历史
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore 创建 Redis 会话存储
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: "web3agent:session:",
		ttl:    24 * time.Hour,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

// Append 实现 Store
func (s *RedisStore) Append(ctx context.Context, sessionID string, exchange Exchange) error {
	data, err := json.Marshal(exchange)
	if err != nil {
		return fmt.Errorf("序列化会话记录失败: %w", err)
	}

	key := s.key(sessionID)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入会话记录失败: %w", err)
	}
	return nil
}

// History 实现 Store
func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) ([]Exchange, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	rows, err := s.rdb.LRange(ctx, s.key(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取会话记录失败: %w", err)
	}

	history := make([]Exchange, 0, len(rows))
	for _, row := range rows {
		var exchange Exchange
		if err := json.Unmarshal([]byte(row), &exchange); err != nil {
			continue
		}
		history = append(history, exchange)
	}
	return history, nil
}
