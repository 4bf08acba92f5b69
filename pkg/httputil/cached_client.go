package httputil

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// CachedClient 带内存缓存的 HTTP 客户端
// 行情类接口读多写少，短 TTL 缓存能避免同一轮对话里重复打上游
type CachedClient struct {
	client   *Client
	memCache sync.Map
	cacheTTL time.Duration
}

// CachedClientOption 缓存客户端配置选项
type CachedClientOption func(*CachedClient)

// WithCacheTTL 设置缓存过期时间
func WithCacheTTL(ttl time.Duration) CachedClientOption {
	return func(c *CachedClient) {
		c.cacheTTL = ttl
	}
}

// NewCachedClient 创建带缓存的 HTTP 客户端
func NewCachedClient(client *Client, opts ...CachedClientOption) *CachedClient {
	cc := &CachedClient{
		client:   client,
		cacheTTL: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cc)
	}
	return cc
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

func cacheKey(method, url string) string {
	hash := md5.Sum([]byte(method + " " + url))
	return "http:" + hex.EncodeToString(hash[:])
}

func (cc *CachedClient) load(key string) ([]byte, bool) {
	value, ok := cc.memCache.Load(key)
	if !ok {
		return nil, false
	}
	entry := value.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		cc.memCache.Delete(key)
		return nil, false
	}
	return entry.data, true
}

func (cc *CachedClient) store(key string, data []byte) {
	cc.memCache.Store(key, cacheEntry{data: data, expiresAt: time.Now().Add(cc.cacheTTL)})
}

// GetJSON 发送 GET 请求并解析 JSON 响应，200 响应按 TTL 缓存
func (cc *CachedClient) GetJSON(ctx context.Context, url string, result interface{}) error {
	key := cacheKey(http.MethodGet, url)
	if data, ok := cc.load(key); ok {
		return json.Unmarshal(data, result)
	}

	resp, err := cc.client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("GET请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP请求返回错误状态: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}

	cc.store(key, body)
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("解析JSON响应失败: %w", err)
	}
	return nil
}

// ClearCache 清空内存缓存
func (cc *CachedClient) ClearCache() {
	cc.memCache.Range(func(key, _ any) bool {
		cc.memCache.Delete(key)
		return true
	})
}
