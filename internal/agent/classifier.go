package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"web3agent/internal/ai"
	"web3agent/internal/intent"
	"web3agent/internal/logger"
)

const classifyPrompt = `你是 Web3 意图分类器。把用户问题分类成一个 JSON 对象，字段如下：
- action: 取值之一 [check_balance, get_transactions, get_token_price, get_kline_data, estimate_gas, swap_tokens, execute_contract, get_nft_info, general_info, market_data]
- parameters: 从问题中提取的参数（如 token, symbol, wallet_address, amount, from_token, to_token, interval）
- confidence: 0 到 1 的置信度
- reasoning: 一句话说明

只返回 JSON，不要其他内容。

用户问题：%q`

// classifyIntent 意图分类，模型不可用时退化为关键词匹配
func (s *Service) classifyIntent(ctx context.Context, query string) *intent.Intent {
	if s.model == nil {
		return keywordClassify(query)
	}

	reply, err := s.model.Complete(ctx, []ai.Message{
		{Role: "user", Content: fmt.Sprintf(classifyPrompt, query)},
	})
	if err != nil {
		logger.Warn("意图分类模型调用失败，退化为关键词匹配", zap.Error(err))
		return keywordClassify(query)
	}

	it, err := parseIntentJSON(reply)
	if err != nil {
		logger.Warn("意图分类结果解析失败，退化为关键词匹配",
			zap.Error(err), zap.String("reply", reply))
		return keywordClassify(query)
	}
	return it
}

// parseIntentJSON 解析模型输出，容忍 markdown 代码块包裹
func parseIntentJSON(reply string) (*intent.Intent, error) {
	text := strings.TrimSpace(reply)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}

	var it intent.Intent
	if err := json.Unmarshal([]byte(text), &it); err != nil {
		return nil, fmt.Errorf("解析意图 JSON 失败: %w", err)
	}
	if it.Action == "" {
		return nil, fmt.Errorf("意图缺少 action 字段")
	}
	if it.Parameters == nil {
		it.Parameters = map[string]any{}
	}
	return &it, nil
}

var (
	evmAddressPattern = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	amountPattern     = regexp.MustCompile(`\d+(\.\d+)?`)
)

// knownTokens 关键词分类时能识别的代币符号
var knownTokens = []string{"ETH", "BTC", "SOL", "USDC", "USDT", "BNB", "DOGE", "NEO"}

// keywordClassify 纯关键词意图分类，模型故障时的降级路径
func keywordClassify(query string) *intent.Intent {
	lower := strings.ToLower(query)
	params := map[string]any{}

	if addr := evmAddressPattern.FindString(query); addr != "" {
		params["wallet_address"] = addr
	}
	if token := findToken(query); token != "" {
		params["token"] = token
	}

	var action intent.Action
	switch {
	case strings.Contains(lower, "balance") || strings.Contains(lower, "余额"):
		action = intent.ActionCheckBalance
	case strings.Contains(lower, "swap") || strings.Contains(lower, "兑换"):
		action = intent.ActionSwapTokens
		if amount := amountPattern.FindString(lower); amount != "" {
			params["amount"] = amount
		}
	case strings.Contains(lower, "gas"):
		action = intent.ActionEstimateGas
	case strings.Contains(lower, "kline") || strings.Contains(lower, "ohlcv") ||
		strings.Contains(lower, "candle") || strings.Contains(lower, "chart") ||
		strings.Contains(lower, "k 线") || strings.Contains(lower, "k线"):
		action = intent.ActionGetKlineData
	case strings.Contains(lower, "transaction") || strings.Contains(lower, "交易记录"):
		action = intent.ActionGetTransactions
	case strings.Contains(lower, "nft"):
		action = intent.ActionGetNFTInfo
	case strings.Contains(lower, "price") || strings.Contains(lower, "价格") ||
		strings.Contains(lower, "多少钱"):
		action = intent.ActionGetTokenPrice
	default:
		action = intent.ActionGeneralInfo
		params["query"] = query
	}

	return &intent.Intent{
		Action:     action,
		Parameters: params,
		Confidence: 0.5,
		Reasoning:  "关键词匹配（模型不可用）",
	}
}

func findToken(query string) string {
	upper := strings.ToUpper(query)
	for _, token := range knownTokens {
		if strings.Contains(upper, token) {
			return token
		}
	}
	return ""
}
