package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"web3agent/internal/config"
)

// ErrUnavailable 模型不可用（未配置或持续失败），调用方按降级路径处理
var ErrUnavailable = errors.New("模型服务不可用")

// Message 对话消息
type Message struct {
	Role    string `json:"role"` // system / user / assistant
	Content string `json:"content"`
}

// ModelClient 语言模型客户端
// 意图分类、查询提取和结果格式化都通过该接口，模型故障时对话层降级
type ModelClient interface {
	// Complete 执行一次对话补全，返回首个 choice 的文本
	Complete(ctx context.Context, messages []Message) (string, error)
}

// OpenAIClient 基于 OpenAI 兼容 API 的模型客户端
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxRetries  int
}

// NewOpenAIClient 创建模型客户端
// api_key 为空时返回 ErrUnavailable，调用方应使用降级路径
func NewOpenAIClient(cfg *config.AIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: 未配置 api_key", ErrUnavailable)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: cfg.Temperature,
		maxRetries:  maxRetries,
	}, nil
}

// Complete 实现 ModelClient，可重试错误按指数退避
func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: c.temperature,
	}

	var resp openai.ChatCompletionResponse
	var err error
	for i := 0; i <= c.maxRetries; i++ {
		resp, err = c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			break
		}
		if !isRetryableError(err) {
			break
		}
		if i < c.maxRetries {
			backoff := time.Duration(1<<uint(i)) * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, err.Error())
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: API 返回空响应", ErrUnavailable)
	}
	return resp.Choices[0].Message.Content, nil
}

// isRetryableError 限流与服务端错误可重试，鉴权和参数错误不重试
func isRetryableError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	// 网络类错误
	return strings.Contains(err.Error(), "connection") ||
		strings.Contains(err.Error(), "timeout")
}
