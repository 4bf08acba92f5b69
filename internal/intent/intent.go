package intent

// Action 用户意图动作标识
type Action string

// 已知意图动作，与意图分类器的输出约定一致
const (
	ActionCheckBalance    Action = "check_balance"
	ActionGetBalance      Action = "get_balance"
	ActionGetTransactions Action = "get_transactions"
	ActionGetTokenPrice   Action = "get_token_price"
	ActionGetPrice        Action = "get_price"
	ActionPriceInfo       Action = "price_info"
	ActionGetOHLCV        Action = "get_ohlcv"
	ActionGetKline        Action = "get_kline"
	ActionGetCandles      Action = "get_candles"
	ActionGetKlineData    Action = "get_kline_data"
	ActionEstimateGas     Action = "estimate_gas"
	ActionGasEstimate     Action = "gas_estimate"
	ActionSwapTokens      Action = "swap_tokens"
	ActionTokenSwap       Action = "token_swap"
	ActionExecuteSwap     Action = "execute_swap"
	ActionExecuteContract Action = "execute_contract"
	ActionContractCall    Action = "contract_call"
	ActionGetNFTInfo      Action = "get_nft_info"
	ActionNFTInfo         Action = "nft_info"
	ActionGeneralInfo     Action = "general_info"
	ActionMarketData      Action = "market_data"
)

// Intent 从用户输入分类出的结构化意图
type Intent struct {
	Action     Action         `json:"action"`
	Parameters map[string]any `json:"parameters"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// Response 意图执行后返回给对话层的结果
type Response struct {
	Success   bool     `json:"success"`
	Output    string   `json:"output"`
	Data      any      `json:"data,omitempty"`
	ToolName  string   `json:"tool_name,omitempty"`
	FollowUps []string `json:"follow_up_questions,omitempty"`
}
