package intent

import "fmt"

// fallbackDisclaimer 降级响应的固定声明，必须随每条降级输出返回
const fallbackDisclaimer = "⚠️ 注意：这是降级的模拟响应，实际工具服务当前不可用。"

// Fallback 工具执行器不可用时的降级应答器，返回带声明的模拟数据
type Fallback struct{}

// NewFallback 创建降级应答器
func NewFallback() *Fallback {
	return &Fallback{}
}

// Respond 按意图动作生成模拟响应
// 降级响应始终 success=true，由声明文案区分真实结果与模拟结果
func (f *Fallback) Respond(it *Intent) *Response {
	output := f.mockOutput(it)
	return &Response{
		Success:   true,
		Output:    output + "\n\n" + fallbackDisclaimer,
		FollowUps: []string{"要不要试试其他 Web3 操作？"},
	}
}

func (f *Fallback) mockOutput(it *Intent) string {
	params := it.Parameters
	switch it.Action {
	case ActionCheckBalance, ActionGetBalance:
		address := "你的钱包"
		if addr, ok := params["address"].(string); ok && addr != "" {
			address = addr
		} else if addr, ok := params["wallet_address"].(string); ok && addr != "" {
			address = addr
		}
		return fmt.Sprintf("💰 模拟余额：2.5 ETH（约 $6,250），地址 %s", address)
	case ActionGetTokenPrice, ActionGetPrice, ActionPriceInfo:
		return "💲 模拟价格：ETH/USDC = $2,500.00（24h +2.5%）"
	case ActionEstimateGas, ActionGasEstimate:
		return "⛽ 模拟 Gas：约 21,000 单位（$3.50）"
	case ActionSwapTokens, ActionTokenSwap, ActionExecuteSwap:
		amount := params["amount"]
		if amount == nil {
			amount = 1
		}
		from := stringOr(params, "from_token", "ETH")
		to := stringOr(params, "to_token", "USDC")
		return fmt.Sprintf("🔄 模拟兑换：将兑换 %v %s → %s", amount, from, to)
	case ActionGetTransactions:
		return "📋 模拟交易记录：这里会展示最近 5 笔交易"
	case ActionExecuteContract, ActionContractCall:
		return "📄 模拟合约调用：合约交互会在这里执行"
	case ActionGetNFTInfo, ActionNFTInfo:
		return "🖼️ 模拟 NFT：这里会展示 NFT 合集信息"
	default:
		return fmt.Sprintf("🤖 模拟响应：%s", it.Action)
	}
}

func stringOr(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
