package web3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"web3agent/internal/config"
	"web3agent/internal/tools"
	"web3agent/pkg/httputil"
)

// neoAddressVersion Neo N3 地址版本字节，对应 N 前缀
const neoAddressVersion = 0x35

// NeoProvider Neo 链类别提供方
type NeoProvider struct {
	cfg config.NeoConfig
}

// NewNeoProvider 创建 Neo 提供方
func NewNeoProvider(cfg config.NeoConfig) *NeoProvider {
	return &NeoProvider{cfg: cfg}
}

// Category 实现 CategoryProvider
func (p *NeoProvider) Category() tools.Category {
	return tools.CategoryNeo
}

// Tools 构造 Neo 类别的工具
// 地址校验是纯本地计算，即使未配置 API 也可用
func (p *NeoProvider) Tools(ctx context.Context) ([]tools.Tool, error) {
	toolSet := []tools.Tool{&neoValidateAddressTool{}}
	if strings.TrimSpace(p.cfg.APIURL) != "" {
		toolSet = append(toolSet, &neoAddressInfoTool{
			apiURL: strings.TrimRight(p.cfg.APIURL, "/"),
			http:   httputil.NewClient(httputil.WithRetries(2)),
		})
	}
	return toolSet, nil
}

// neoValidateAddressTool 本地校验 Neo N3 地址
type neoValidateAddressTool struct{}

func (t *neoValidateAddressTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "neo_validate_address",
		DisplayName: "Neo地址校验",
		Description: "校验 Neo N3 地址的 Base58Check 编码与版本字节",
		Category:    tools.CategoryNeo,
		Parameters: objectSchema(map[string]any{
			"address": map[string]any{"type": "string", "description": "Neo N3 地址"},
		}, "address"),
	}
}

func (t *neoValidateAddressTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	address, err := stringParam(params, "address")
	if err != nil {
		return nil, err
	}

	scriptHash, vErr := decodeNeoAddress(address)
	if vErr != nil {
		return &tools.Result{Output: map[string]any{
			"address": address,
			"valid":   false,
			"reason":  vErr.Error(),
		}}, nil
	}
	return &tools.Result{Output: map[string]any{
		"address":     address,
		"valid":       true,
		"script_hash": hex.EncodeToString(scriptHash),
	}}, nil
}

// neoAddressInfoTool 查询地址资产信息
type neoAddressInfoTool struct {
	apiURL string
	http   *httputil.Client
}

func (t *neoAddressInfoTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "neo_address_info",
		DisplayName: "Neo地址信息",
		Description: "查询 Neo N3 地址的资产余额信息",
		Category:    tools.CategoryNeo,
		Parameters: objectSchema(map[string]any{
			"address": map[string]any{"type": "string", "description": "Neo N3 地址"},
		}, "address"),
	}
}

func (t *neoAddressInfoTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	address, err := stringParam(params, "address")
	if err != nil {
		return nil, err
	}
	if _, vErr := decodeNeoAddress(address); vErr != nil {
		return nil, fmt.Errorf("非法的 Neo 地址: %s", vErr.Error())
	}

	var payload map[string]any
	endpoint := fmt.Sprintf("%s/v1/addresses/%s/balances", t.apiURL, url.PathEscape(address))
	if err := t.http.GetJSON(ctx, endpoint, &payload); err != nil {
		return &tools.Result{Err: fmt.Sprintf("查询 Neo 地址信息失败: %s", err.Error())}, nil
	}
	return &tools.Result{Output: map[string]any{
		"address":  address,
		"balances": payload,
	}}, nil
}

// decodeNeoAddress 解码并校验地址，返回 20 字节脚本哈希
func decodeNeoAddress(address string) ([]byte, error) {
	raw, err := base58Decode(address)
	if err != nil {
		return nil, err
	}
	if len(raw) != 25 {
		return nil, fmt.Errorf("地址长度非法，解码后 %d 字节", len(raw))
	}
	if raw[0] != neoAddressVersion {
		return nil, fmt.Errorf("版本字节非法: 0x%02x", raw[0])
	}
	payload, checksum := raw[:21], raw[21:]
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	if !bytes.Equal(checksum, second[:4]) {
		return nil, fmt.Errorf("校验和不匹配")
	}
	return payload[1:], nil
}

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func base58Decode(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("空地址")
	}
	n := new(big.Int)
	radix := big.NewInt(58)
	for _, r := range s {
		idx := strings.IndexRune(base58Alphabet, r)
		if idx < 0 {
			return nil, fmt.Errorf("含非 Base58 字符: %q", r)
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(idx)))
	}

	decoded := n.Bytes()
	// 前导 '1' 对应前导零字节
	leading := 0
	for _, r := range s {
		if r != '1' {
			break
		}
		leading++
	}
	result := make([]byte, leading+len(decoded))
	copy(result[leading:], decoded)
	return result, nil
}
