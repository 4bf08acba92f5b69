package web3

import (
	"fmt"
	"strings"
)

// 参数提取辅助：工具入参来自 JSON 解码，数值一律是 float64

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", fmt.Errorf("缺少参数 %s", key)
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("参数 %s 必须为非空字符串", key)
	}
	return strings.TrimSpace(s), nil
}

func stringParamOr(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func floatParam(params map[string]any, key string) (float64, error) {
	switch v := params[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("参数 %s 必须为数值", key)
	}
}

func floatParamOr(params map[string]any, key string, fallback float64) float64 {
	if v, err := floatParam(params, key); err == nil {
		return v
	}
	return fallback
}

func intParamOr(params map[string]any, key string, fallback int) int {
	if v, err := floatParam(params, key); err == nil && v > 0 {
		return int(v)
	}
	return fallback
}

// exchangeSymbol 把交易对 "ETH-USDC" 转成交易所格式 "ETHUSDC"
func exchangeSymbol(pair string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "/", "").Replace(pair))
}
