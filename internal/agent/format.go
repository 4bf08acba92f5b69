package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"web3agent/internal/ai"
	"web3agent/internal/logger"
	"web3agent/internal/tools"
)

// formatResult 把工具原始输出整理成面向用户的文本
// 模型不可用或失败时使用确定性的基础清理
func (s *Service) formatResult(ctx context.Context, query string, result *tools.ExecutionResult) string {
	raw := rawResultText(result)
	if s.model == nil {
		return basicFormatCleanup(raw)
	}

	prompt := fmt.Sprintf(
		"把下面的 Web3 工具原始输出整理成简洁友好的回答。\n\n"+
			"用户问题：%q\n原始输出：%s\n\n"+
			"要求：简明扼要，保留关键数字，适当使用表情符号，如果是错误就用通俗语言解释。只返回整理后的回答。",
		query, raw)

	formatted, err := s.model.Complete(ctx, []ai.Message{{Role: "user", Content: prompt}})
	if err != nil {
		logger.Warn("结果格式化失败，使用基础清理", zap.Error(err))
		return basicFormatCleanup(raw)
	}
	formatted = strings.TrimSpace(formatted)
	if formatted == "" {
		return basicFormatCleanup(raw)
	}
	return formatted
}

func rawResultText(result *tools.ExecutionResult) string {
	if result.Data == nil {
		return result.Error
	}
	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Sprintf("%v", result.Data)
	}
	return string(data)
}

// basicFormatCleanup 按内容加上前缀表情，作为模型格式化的兜底
func basicFormatCleanup(raw string) string {
	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "error") || strings.Contains(lower, "失败"):
		return "❌ " + raw
	case strings.Contains(lower, "price") || strings.Contains(lower, "价格"):
		return "💲 " + raw
	case strings.Contains(lower, "balance") || strings.Contains(lower, "ether") ||
		strings.Contains(lower, "余额"):
		return "💰 " + raw
	default:
		return "✅ " + raw
	}
}
