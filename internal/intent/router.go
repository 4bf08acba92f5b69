package intent

import (
	"strings"

	"go.uber.org/zap"

	"web3agent/internal/logger"
)

// toolMappings 意图动作到工具名的静态路由表
var toolMappings = map[Action]string{
	// 余额与交易查询
	ActionCheckBalance:    "evm_balance",
	ActionGetBalance:      "evm_balance",
	ActionGetTransactions: "get_24h_stats",

	// 价格与行情
	ActionGetTokenPrice: "get_token_price",
	ActionGetPrice:      "get_token_price",
	ActionPriceInfo:     "get_token_price",

	// K 线按数据源路由，交易所深度数据与普通 K 线分开
	ActionGetOHLCV:     "crypto_powerdata_cex",
	ActionGetKline:     "get_kline_data",
	ActionGetCandles:   "crypto_powerdata_cex",
	ActionGetKlineData: "get_kline_data",

	// gas 估算复用兑换报价
	ActionEstimateGas: "evm_swap_quote",
	ActionGasEstimate: "evm_swap_quote",

	// 代币兑换
	ActionSwapTokens:  "evm_swap",
	ActionTokenSwap:   "evm_swap",
	ActionExecuteSwap: "evm_swap",

	// 合约交互走通用转账
	ActionExecuteContract: "evm_transfer",
	ActionContractCall:    "evm_transfer",

	// 暂无 NFT 专用工具，用 24h 统计代替
	ActionGetNFTInfo: "get_24h_stats",
	ActionNFTInfo:    "get_24h_stats",

	// 兜底
	ActionGeneralInfo: "get_token_price",
	ActionMarketData:  "get_kline_data",
}

// Router 把分类出的意图翻译成工具调用
type Router struct{}

// NewRouter 创建意图路由器
func NewRouter() *Router {
	return &Router{}
}

// Resolve 根据意图动作选择工具名
// 未知动作按关键词退化，最终兜底到价格查询
func (r *Router) Resolve(action Action) string {
	if toolName, ok := toolMappings[action]; ok {
		return toolName
	}

	toolName := "get_token_price"
	switch {
	case strings.Contains(string(action), "balance"):
		toolName = "evm_balance"
	case strings.Contains(string(action), "price"):
		toolName = "get_token_price"
	}
	logger.Debug("意图动作未命中路由表，使用退化映射",
		zap.String("action", string(action)),
		zap.String("tool", toolName))
	return toolName
}

// AdaptParameters 按目标工具调整参数名与取值
// 只做基础的改名和交易对归一化，参数校验交给工具本身
func (r *Router) AdaptParameters(toolName string, parameters map[string]any) map[string]any {
	params := make(map[string]any, len(parameters))
	for k, v := range parameters {
		params[k] = v
	}

	switch toolName {
	case "evm_balance":
		if addr, ok := params["wallet_address"]; ok {
			params["address"] = addr
			delete(params, "wallet_address")
		}
		delete(params, "token")
		delete(params, "symbol")

	case "get_token_price":
		if token, ok := params["token"].(string); ok {
			if _, has := params["symbol"]; !has {
				params["symbol"] = tradingPair(token)
			}
			delete(params, "token")
		} else if symbol, ok := params["symbol"].(string); ok && !strings.Contains(symbol, "-") {
			params["symbol"] = tradingPair(symbol)
		}
		delete(params, "address")
		delete(params, "vs_currency")
		delete(params, "wallet_address")

	case "get_kline_data":
		if symbol, ok := params["symbol"].(string); ok {
			params["symbol"] = strings.ReplaceAll(symbol, "/", "-")
		}
		if interval, ok := params["interval"]; ok {
			params["timeframe"] = interval
			delete(params, "interval")
		} else if _, has := params["timeframe"]; !has {
			params["timeframe"] = "1h"
		}
		delete(params, "exchange")
		delete(params, "address")
	}
	return params
}

// tradingPair 把单币符号归一化成交易对
func tradingPair(token string) string {
	switch strings.ToUpper(token) {
	case "ETH", "ETHEREUM":
		return "ETH-USDC"
	case "BTC", "BITCOIN":
		return "BTC-USDT"
	default:
		return strings.ToUpper(token) + "-USDC"
	}
}
