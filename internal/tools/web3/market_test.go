package web3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"web3agent/internal/config"
	"web3agent/internal/tools"
)

// newFakeExchange 模拟交易所行情 API
func newFakeExchange(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/ticker/price", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "ETHUSDC":
			w.Write([]byte(`{"symbol":"ETHUSDC","price":"2500.50"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	})
	mux.HandleFunc("/api/v3/ticker/24hr", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"ETHUSDC","priceChange":"120.5","priceChangePercent":"7.2",` +
			`"highPrice":"2600","lowPrice":"2300","lastPrice":"2500.50","volume":"1000","quoteVolume":"2500000"}`))
	})
	mux.HandleFunc("/api/v3/klines", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000,"2400","2450","2390","2420","100"],` +
			`[1700003600000,"2420","2520","2410","2500","150"]]`))
	})
	mux.HandleFunc("/lending/rates", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"asset":"USDC","supply_apy":4.2,"borrow_apy":6.8,"update_time":1700000000}]`))
	})
	return httptest.NewServer(mux)
}

func marketToolSet(t *testing.T, baseURL string) map[string]tools.Tool {
	t.Helper()
	provider := NewMarketDataProvider(config.MarketDataConfig{BaseURL: baseURL, CacheTTL: "1s"})
	toolSet, err := provider.Tools(context.Background())
	require.NoError(t, err)

	byName := make(map[string]tools.Tool, len(toolSet))
	for _, tool := range toolSet {
		byName[tool.Definition().Name] = tool
	}
	return byName
}

func TestMarketDataProvider(t *testing.T) {
	t.Run("未配置base_url时类别不可用", func(t *testing.T) {
		provider := NewMarketDataProvider(config.MarketDataConfig{})
		_, err := provider.Tools(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "base_url")
	})

	t.Run("提供全部七个行情工具", func(t *testing.T) {
		byName := marketToolSet(t, "http://127.0.0.1:1")
		assert.Len(t, byName, 7)
		for _, name := range []string{
			"get_token_price", "get_24h_stats", "get_kline_data",
			"price_threshold_alert", "lp_range_check", "sudden_price_increase", "lending_rate_monitor",
		} {
			assert.Contains(t, byName, name)
		}
	})
}

func TestTokenPriceTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)

	t.Run("正常查询价格", func(t *testing.T) {
		output, err := byName["get_token_price"].Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC"})
		require.NoError(t, err)

		result := output.(*tools.Result)
		assert.Empty(t, result.Err)
		data := result.Output.(map[string]any)
		assert.Equal(t, "ETH-USDC", data["symbol"])
		assert.Equal(t, 2500.50, data["price"])
	})

	t.Run("缺少symbol参数返回错误", func(t *testing.T) {
		_, err := byName["get_token_price"].Execute(context.Background(), map[string]any{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "symbol")
	})

	t.Run("上游错误作为结果返回而非抛出", func(t *testing.T) {
		output, err := byName["get_token_price"].Execute(context.Background(),
			map[string]any{"symbol": "NOPE-USDC"})
		require.NoError(t, err)
		result := output.(*tools.Result)
		assert.NotEmpty(t, result.Err)
	})
}

func TestStats24hTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)

	output, err := byName["get_24h_stats"].Execute(context.Background(),
		map[string]any{"symbol": "ETH-USDC"})
	require.NoError(t, err)

	result := output.(*tools.Result)
	stats := result.Output.(*stats24h)
	assert.Equal(t, "7.2", stats.PriceChangePercent)
	assert.Equal(t, "2500.50", stats.LastPrice)
}

func TestKlineDataTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)

	output, err := byName["get_kline_data"].Execute(context.Background(),
		map[string]any{"symbol": "ETH-USDC", "timeframe": "1h", "limit": 2})
	require.NoError(t, err)

	result := output.(*tools.Result)
	data := result.Output.(map[string]any)
	assert.Equal(t, 2, data["count"])

	candles := data["candles"].([]candle)
	require.Len(t, candles, 2)
	assert.Equal(t, 2400.0, candles[0].Open)
	assert.Equal(t, 2500.0, candles[1].Close)
	assert.Equal(t, int64(1700000000000), candles[0].OpenTime)
}

func TestPriceThresholdAlertTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)
	tool := byName["price_threshold_alert"]

	t.Run("条件满足时触发", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "condition": "price > 2000"})
		require.NoError(t, err)
		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, true, data["triggered"])
	})

	t.Run("条件不满足时不触发", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "condition": "price > 99999"})
		require.NoError(t, err)
		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, false, data["triggered"])
	})

	t.Run("非法表达式返回错误", func(t *testing.T) {
		_, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "condition": "price >>"})
		require.Error(t, err)
	})

	t.Run("非布尔表达式返回错误", func(t *testing.T) {
		_, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "condition": "price + 1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "布尔")
	})
}

func TestLPRangeCheckTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)
	tool := byName["lp_range_check"]

	t.Run("价格在区间内", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "lower": 2000.0, "upper": 3000.0})
		require.NoError(t, err)
		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, true, data["in_range"])
	})

	t.Run("价格在区间外", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "lower": 3000.0, "upper": 4000.0})
		require.NoError(t, err)
		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, false, data["in_range"])
	})

	t.Run("下界不小于上界返回错误", func(t *testing.T) {
		_, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "lower": 3000.0, "upper": 2000.0})
		require.Error(t, err)
	})
}

func TestSuddenPriceIncreaseTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)
	tool := byName["sudden_price_increase"]

	t.Run("涨幅超过阈值", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "threshold": 5.0})
		require.NoError(t, err)
		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, true, data["sudden_increase"])
		assert.Equal(t, 7.2, data["change_percent"])
	})

	t.Run("涨幅未超过阈值", func(t *testing.T) {
		output, err := tool.Execute(context.Background(),
			map[string]any{"symbol": "ETH-USDC", "threshold": 10.0})
		require.NoError(t, err)
		data := output.(*tools.Result).Output.(map[string]any)
		assert.Equal(t, false, data["sudden_increase"])
	})
}

func TestLendingRateMonitorTool(t *testing.T) {
	server := newFakeExchange(t)
	defer server.Close()
	byName := marketToolSet(t, server.URL)

	output, err := byName["lending_rate_monitor"].Execute(context.Background(),
		map[string]any{"asset": "usdc"})
	require.NoError(t, err)

	data := output.(*tools.Result).Output.(map[string]any)
	assert.Equal(t, "USDC", data["asset"])
	rates := data["rates"].([]lendingRate)
	require.Len(t, rates, 1)
	assert.Equal(t, 4.2, rates[0].SupplyAPY)
}

func TestExchangeSymbol(t *testing.T) {
	assert.Equal(t, "ETHUSDC", exchangeSymbol("ETH-USDC"))
	assert.Equal(t, "ETHUSDC", exchangeSymbol("eth/usdc"))
	assert.Equal(t, "BTCUSDT", exchangeSymbol("BTCUSDT"))
}
