package web3

import (
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3agent/internal/config"
	"web3agent/internal/tools"
)

// validNeoAddress 版本字节 0x35、脚本哈希 0x0102...14 的合法 N3 地址
const validNeoAddress = "NL1JGjDe22U44R57ZXVSeRa4T7Jo1HDLF4"

func TestDecodeNeoAddress(t *testing.T) {
	t.Run("合法地址返回脚本哈希", func(t *testing.T) {
		scriptHash, err := decodeNeoAddress(validNeoAddress)
		require.NoError(t, err)
		assert.Equal(t, "0102030405060708090a0b0c0d0e0f1011121314", hex.EncodeToString(scriptHash))
	})

	t.Run("校验和不匹配", func(t *testing.T) {
		_, err := decodeNeoAddress("NL1JGjDe22U44R57ZXVSeRa4T7Jo1HDLF1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "校验和")
	})

	t.Run("含非Base58字符", func(t *testing.T) {
		_, err := decodeNeoAddress("NL1JGjDe22U44R57ZXVSeRa4T7Jo1HDl0I")
		require.Error(t, err)
	})

	t.Run("空地址", func(t *testing.T) {
		_, err := decodeNeoAddress("")
		require.Error(t, err)
	})

	t.Run("版本字节非法", func(t *testing.T) {
		// 比特币地址版本字节为 0x00
		_, err := decodeNeoAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
		require.Error(t, err)
	})
}

func TestNeoValidateAddressTool(t *testing.T) {
	tool := &neoValidateAddressTool{}

	t.Run("合法地址", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"address": validNeoAddress})
		require.NoError(t, err)

		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, true, data["valid"])
		assert.Equal(t, "0102030405060708090a0b0c0d0e0f1011121314", data["script_hash"])
	})

	t.Run("非法地址标记原因", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"address": "not-an-address"})
		require.NoError(t, err)

		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, false, data["valid"])
		assert.NotEmpty(t, data["reason"])
	})

	t.Run("缺少参数返回错误", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), map[string]any{})
		require.Error(t, err)
	})
}

func TestNeoProvider(t *testing.T) {
	t.Run("未配置API时仅提供地址校验", func(t *testing.T) {
		provider := NewNeoProvider(config.NeoConfig{})
		toolSet, err := provider.Tools(context.Background())
		require.NoError(t, err)
		require.Len(t, toolSet, 1)
		assert.Equal(t, "neo_validate_address", toolSet[0].Definition().Name)
	})

	t.Run("配置API后提供地址信息查询", func(t *testing.T) {
		provider := NewNeoProvider(config.NeoConfig{APIURL: "http://127.0.0.1:1"})
		toolSet, err := provider.Tools(context.Background())
		require.NoError(t, err)
		assert.Len(t, toolSet, 2)
	})
}

func TestNeoAddressInfoTool(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, validNeoAddress)
		w.Write([]byte(`{"balances":[{"asset":"NEO","amount":"10"},{"asset":"GAS","amount":"3.5"}]}`))
	}))
	defer server.Close()

	provider := NewNeoProvider(config.NeoConfig{APIURL: server.URL})
	toolSet, err := provider.Tools(context.Background())
	require.NoError(t, err)

	var infoTool tools.Tool
	for _, tool := range toolSet {
		if tool.Definition().Name == "neo_address_info" {
			infoTool = tool
		}
	}
	require.NotNil(t, infoTool)

	t.Run("正常查询", func(t *testing.T) {
		output, err := infoTool.Execute(context.Background(),
			map[string]any{"address": validNeoAddress})
		require.NoError(t, err)

		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, validNeoAddress, data["address"])
		assert.NotNil(t, data["balances"])
	})

	t.Run("非法地址不打上游", func(t *testing.T) {
		_, err := infoTool.Execute(context.Background(),
			map[string]any{"address": "bogus"})
		require.Error(t, err)
	})
}
