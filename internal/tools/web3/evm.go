package web3

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync/atomic"

	"web3agent/internal/config"
	"web3agent/internal/tools"
	"web3agent/pkg/httputil"
)

// EVMProvider EVM 链上操作类别提供方
// 未配置签名密钥时转账与兑换仅返回未签名交易草案
type EVMProvider struct {
	cfg config.EVMConfig
}

// NewEVMProvider 创建 EVM 提供方
func NewEVMProvider(cfg config.EVMConfig) *EVMProvider {
	return &EVMProvider{cfg: cfg}
}

// Category 实现 CategoryProvider
func (p *EVMProvider) Category() tools.Category {
	return tools.CategoryEVM
}

// Tools 构造 EVM 类别的工具
func (p *EVMProvider) Tools(ctx context.Context) ([]tools.Tool, error) {
	if strings.TrimSpace(p.cfg.RPCURL) == "" {
		return nil, fmt.Errorf("EVM 未配置 rpc_url")
	}
	client := &evmClient{
		rpcURL:  p.cfg.RPCURL,
		chainID: p.cfg.ChainID,
		http:    httputil.NewClient(httputil.WithRetries(2)),
	}
	return []tools.Tool{
		&evmBalanceTool{client: client},
		&evmSwapQuoteTool{client: client},
		&evmTransferTool{client: client},
		&evmERC20TransferTool{client: client},
		&evmSwapTool{client: client},
		&evmBridgeTool{client: client},
	}, nil
}

// evmClient 极简 JSON-RPC 客户端
type evmClient struct {
	rpcURL  string
	chainID int64
	http    *httputil.Client
	nextID  atomic.Int64
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type rpcResponse struct {
	Result any `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *evmClient) call(ctx context.Context, method string, params ...any) (any, error) {
	if params == nil {
		params = []any{}
	}
	req := rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)}
	var resp rpcResponse
	if err := c.http.PostJSON(ctx, c.rpcURL, req, &resp); err != nil {
		return nil, fmt.Errorf("RPC 请求失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("RPC 错误 %d: %s", resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// callHexQuantity 调用返回十六进制数量的 RPC 方法
func (c *evmClient) callHexQuantity(ctx context.Context, method string, params ...any) (*big.Int, error) {
	result, err := c.call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	hex, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("RPC 方法 %s 返回了非字符串结果", method)
	}
	return parseHexQuantity(hex)
}

func parseHexQuantity(hex string) (*big.Int, error) {
	s := strings.TrimPrefix(strings.TrimSpace(hex), "0x")
	if s == "" {
		return nil, fmt.Errorf("空的十六进制数量")
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("非法的十六进制数量: %s", hex)
	}
	return n, nil
}

// weiToEther 以字符串返回，避免大数精度丢失
func weiToEther(wei *big.Int) string {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e18))
	return f.Text('f', 6)
}

func gweiFromWei(wei *big.Int) string {
	f := new(big.Float).SetInt(wei)
	f.Quo(f, big.NewFloat(1e9))
	return f.Text('f', 2)
}

func isHexAddress(addr string) bool {
	if !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		return false
	}
	for _, r := range addr[2:] {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// erc20TransferData 构造 transfer(address,uint256) 的 calldata
func erc20TransferData(to string, amount *big.Int) string {
	recipient := strings.TrimPrefix(strings.ToLower(to), "0x")
	return "0xa9059cbb" +
		fmt.Sprintf("%064s", recipient) +
		fmt.Sprintf("%064s", amount.Text(16))
}

const unsignedDraftNote = "未配置签名密钥，仅返回交易草案"

// evmBalanceTool 查询地址原生币余额
type evmBalanceTool struct {
	client *evmClient
}

func (t *evmBalanceTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "evm_balance",
		DisplayName: "EVM余额查询",
		Description: "查询 EVM 地址的原生代币余额",
		Category:    tools.CategoryEVM,
		Parameters: objectSchema(map[string]any{
			"address": map[string]any{"type": "string", "description": "0x 开头的 EVM 地址"},
		}, "address"),
	}
}

func (t *evmBalanceTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	address, err := stringParam(params, "address")
	if err != nil {
		return nil, err
	}
	if !isHexAddress(address) {
		return nil, fmt.Errorf("非法的 EVM 地址: %s", address)
	}

	wei, err := t.client.callHexQuantity(ctx, "eth_getBalance", address, "latest")
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: map[string]any{
		"address":  address,
		"chain_id": t.client.chainID,
		"wei":      wei.String(),
		"ether":    weiToEther(wei),
	}}, nil
}

// evmSwapQuoteTool gas 报价
type evmSwapQuoteTool struct {
	client *evmClient
}

func (t *evmSwapQuoteTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "evm_swap_quote",
		DisplayName: "Gas报价",
		Description: "查询当前 gas 价格并估算交易费用",
		Category:    tools.CategoryEVM,
		Parameters: objectSchema(map[string]any{
			"gas_limit": map[string]any{"type": "number", "description": "预估 gas 上限，默认 21000"},
		}),
	}
}

func (t *evmSwapQuoteTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	gasLimit := intParamOr(params, "gas_limit", 21000)
	if gasLimit <= 0 {
		return nil, fmt.Errorf("gas_limit 必须为正数")
	}

	gasPrice, err := t.client.callHexQuantity(ctx, "eth_gasPrice")
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	fee := new(big.Int).Mul(gasPrice, big.NewInt(int64(gasLimit)))
	return &tools.Result{Output: map[string]any{
		"chain_id":       t.client.chainID,
		"gas_price_wei":  gasPrice.String(),
		"gas_price_gwei": gweiFromWei(gasPrice),
		"gas_limit":      gasLimit,
		"fee_ether":      weiToEther(fee),
	}}, nil
}

// evmTransferTool 原生币转账草案
type evmTransferTool struct {
	client *evmClient
}

func (t *evmTransferTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "evm_transfer",
		DisplayName: "EVM转账",
		Description: "构造原生代币转账的未签名交易草案",
		Category:    tools.CategoryEVM,
		Parameters: objectSchema(map[string]any{
			"from":   map[string]any{"type": "string", "description": "发送地址"},
			"to":     map[string]any{"type": "string", "description": "接收地址"},
			"amount": map[string]any{"type": "number", "description": "转账数量（单位 ETH）"},
		}, "from", "to", "amount"),
	}
}

func (t *evmTransferTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	from, err := stringParam(params, "from")
	if err != nil {
		return nil, err
	}
	to, err := stringParam(params, "to")
	if err != nil {
		return nil, err
	}
	amount, err := floatParam(params, "amount")
	if err != nil {
		return nil, err
	}
	if !isHexAddress(from) || !isHexAddress(to) {
		return nil, fmt.Errorf("非法的 EVM 地址")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount 必须为正数")
	}

	wei, _ := new(big.Float).Mul(big.NewFloat(amount), big.NewFloat(1e18)).Int(nil)
	valueHex := "0x" + wei.Text(16)

	gas, err := t.client.callHexQuantity(ctx, "eth_estimateGas", map[string]any{
		"from":  from,
		"to":    to,
		"value": valueHex,
	})
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: map[string]any{
		"chain_id":  t.client.chainID,
		"from":      from,
		"to":        to,
		"value_wei": wei.String(),
		"gas":       gas.String(),
		"signed":    false,
		"note":      unsignedDraftNote,
	}}, nil
}

// evmERC20TransferTool ERC-20 转账草案
type evmERC20TransferTool struct {
	client *evmClient
}

func (t *evmERC20TransferTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "evm_erc20_transfer",
		DisplayName: "ERC20转账",
		Description: "构造 ERC-20 代币转账的未签名交易草案",
		Category:    tools.CategoryEVM,
		Parameters: objectSchema(map[string]any{
			"from":     map[string]any{"type": "string", "description": "发送地址"},
			"to":       map[string]any{"type": "string", "description": "接收地址"},
			"token":    map[string]any{"type": "string", "description": "代币合约地址"},
			"amount":   map[string]any{"type": "number", "description": "转账数量（按代币精度换算前）"},
			"decimals": map[string]any{"type": "number", "description": "代币精度，默认 18"},
		}, "from", "to", "token", "amount"),
	}
}

func (t *evmERC20TransferTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	from, err := stringParam(params, "from")
	if err != nil {
		return nil, err
	}
	to, err := stringParam(params, "to")
	if err != nil {
		return nil, err
	}
	token, err := stringParam(params, "token")
	if err != nil {
		return nil, err
	}
	amount, err := floatParam(params, "amount")
	if err != nil {
		return nil, err
	}
	if !isHexAddress(from) || !isHexAddress(to) || !isHexAddress(token) {
		return nil, fmt.Errorf("非法的 EVM 地址")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount 必须为正数")
	}
	decimals := intParamOr(params, "decimals", 18)

	scale := new(big.Float).SetFloat64(math.Pow10(decimals))
	raw, _ := new(big.Float).Mul(big.NewFloat(amount), scale).Int(nil)
	data := erc20TransferData(to, raw)

	gas, err := t.client.callHexQuantity(ctx, "eth_estimateGas", map[string]any{
		"from": from,
		"to":   token,
		"data": data,
	})
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: map[string]any{
		"chain_id": t.client.chainID,
		"from":     from,
		"to":       token,
		"data":     data,
		"amount":   raw.String(),
		"gas":      gas.String(),
		"signed":   false,
		"note":     unsignedDraftNote,
	}}, nil
}

// evmSwapTool 代币兑换草案
type evmSwapTool struct {
	client *evmClient
}

func (t *evmSwapTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "evm_swap",
		DisplayName: "代币兑换",
		Description: "构造代币兑换的未签名交易草案并附带当前 gas 报价",
		Category:    tools.CategoryEVM,
		Parameters: objectSchema(map[string]any{
			"from_token": map[string]any{"type": "string", "description": "卖出代币符号"},
			"to_token":   map[string]any{"type": "string", "description": "买入代币符号"},
			"amount":     map[string]any{"type": "number", "description": "卖出数量"},
			"wallet":     map[string]any{"type": "string", "description": "钱包地址"},
		}, "from_token", "to_token", "amount"),
	}
}

func (t *evmSwapTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	fromToken, err := stringParam(params, "from_token")
	if err != nil {
		return nil, err
	}
	toToken, err := stringParam(params, "to_token")
	if err != nil {
		return nil, err
	}
	amount, err := floatParam(params, "amount")
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount 必须为正数")
	}
	wallet := stringParamOr(params, "wallet", "")
	if wallet != "" && !isHexAddress(wallet) {
		return nil, fmt.Errorf("非法的 EVM 地址: %s", wallet)
	}

	gasPrice, err := t.client.callHexQuantity(ctx, "eth_gasPrice")
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: map[string]any{
		"chain_id":       t.client.chainID,
		"from_token":     strings.ToUpper(fromToken),
		"to_token":       strings.ToUpper(toToken),
		"amount":         amount,
		"wallet":         wallet,
		"gas_price_gwei": gweiFromWei(gasPrice),
		"signed":         false,
		"note":           unsignedDraftNote,
	}}, nil
}

// evmBridgeTool 跨链桥报价草案
type evmBridgeTool struct {
	client *evmClient
}

func (t *evmBridgeTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "evm_bridge",
		DisplayName: "跨链桥报价",
		Description: "估算跨链转移的源链费用并返回未签名草案",
		Category:    tools.CategoryEVM,
		Parameters: objectSchema(map[string]any{
			"token":        map[string]any{"type": "string", "description": "代币符号"},
			"amount":       map[string]any{"type": "number", "description": "转移数量"},
			"target_chain": map[string]any{"type": "string", "description": "目标链名称"},
		}, "token", "amount", "target_chain"),
	}
}

func (t *evmBridgeTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	token, err := stringParam(params, "token")
	if err != nil {
		return nil, err
	}
	amount, err := floatParam(params, "amount")
	if err != nil {
		return nil, err
	}
	targetChain, err := stringParam(params, "target_chain")
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount 必须为正数")
	}

	gasPrice, err := t.client.callHexQuantity(ctx, "eth_gasPrice")
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	// 跨链调用的 gas 消耗远高于普通转账，按经验值估算
	fee := new(big.Int).Mul(gasPrice, big.NewInt(150000))
	return &tools.Result{Output: map[string]any{
		"source_chain_id":  t.client.chainID,
		"target_chain":     targetChain,
		"token":            strings.ToUpper(token),
		"amount":           amount,
		"source_fee_ether": weiToEther(fee),
		"signed":           false,
		"note":             unsignedDraftNote,
	}}, nil
}
