package web3

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"web3agent/internal/config"
	"web3agent/internal/tools"
	"web3agent/pkg/httputil"
)

// DEXAnalyticsProvider 深度行情分析类别提供方
// CEX 侧复用行情数据源，DEX 侧走独立端点；两者都未配置时类别不可用
type DEXAnalyticsProvider struct {
	market config.MarketDataConfig
	dex    config.DEXConfig
}

// NewDEXAnalyticsProvider 创建深度行情分析提供方
func NewDEXAnalyticsProvider(market config.MarketDataConfig, dex config.DEXConfig) *DEXAnalyticsProvider {
	return &DEXAnalyticsProvider{market: market, dex: dex}
}

// Category 实现 CategoryProvider
func (p *DEXAnalyticsProvider) Category() tools.Category {
	return tools.CategoryDEXAnalytics
}

// Tools 构造深度行情类别的工具
func (p *DEXAnalyticsProvider) Tools(ctx context.Context) ([]tools.Tool, error) {
	hasMarket := strings.TrimSpace(p.market.BaseURL) != ""
	hasDEX := strings.TrimSpace(p.dex.BaseURL) != ""
	if !hasMarket && !hasDEX {
		return nil, fmt.Errorf("深度行情未配置任何数据源（market_data.base_url / dex.base_url）")
	}

	var toolSet []tools.Tool
	if hasMarket {
		client := newMarketClient(p.market)
		toolSet = append(toolSet,
			&powerdataCEXTool{client: client},
			&indicatorsTool{client: client},
		)
	}
	if hasDEX {
		toolSet = append(toolSet, &powerdataDEXTool{
			baseURL: strings.TrimRight(p.dex.BaseURL, "/"),
			http:    httputil.NewClient(httputil.WithRetries(2)),
		})
	}
	return toolSet, nil
}

// powerdataCEXTool CEX K 线及衍生指标
type powerdataCEXTool struct {
	client *marketClient
}

func (t *powerdataCEXTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "crypto_powerdata_cex",
		DisplayName: "CEX深度行情",
		Description: "查询中心化交易所 OHLCV 数据并附带基础统计",
		Category:    tools.CategoryDEXAnalytics,
		Parameters: objectSchema(map[string]any{
			"symbol":    map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
			"timeframe": map[string]any{"type": "string", "description": "K 线周期，默认 1h"},
			"limit":     map[string]any{"type": "number", "description": "返回根数，默认 100"},
		}, "symbol"),
	}
}

func (t *powerdataCEXTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	timeframe := stringParamOr(params, "timeframe", "1h")
	limit := intParamOr(params, "limit", 100)

	candles, err := t.client.klines(ctx, symbol, timeframe, limit)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	if len(candles) == 0 {
		return &tools.Result{Err: fmt.Sprintf("交易对 %s 无 K 线数据", symbol)}, nil
	}

	closes := closePrices(candles)
	high, low := rangeOf(candles)
	return &tools.Result{Output: map[string]any{
		"symbol":     strings.ToUpper(symbol),
		"timeframe":  timeframe,
		"count":      len(candles),
		"last_close": closes[len(closes)-1],
		"high":       high,
		"low":        low,
		"candles":    candles,
	}}, nil
}

// powerdataDEXTool DEX 池子行情
type powerdataDEXTool struct {
	baseURL string
	http    *httputil.Client
}

func (t *powerdataDEXTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "crypto_powerdata_dex",
		DisplayName: "DEX池子行情",
		Description: "查询 DEX 流动性池的链上行情数据",
		Category:    tools.CategoryDEXAnalytics,
		Parameters: objectSchema(map[string]any{
			"network": map[string]any{"type": "string", "description": "链网络，默认 eth"},
			"pool":    map[string]any{"type": "string", "description": "池子地址或交易对标识"},
		}, "pool"),
	}
}

func (t *powerdataDEXTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	pool, err := stringParam(params, "pool")
	if err != nil {
		return nil, err
	}
	network := stringParamOr(params, "network", "eth")

	var payload map[string]any
	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s", t.baseURL, url.PathEscape(network), url.PathEscape(pool))
	if err := t.http.GetJSON(ctx, endpoint, &payload); err != nil {
		return &tools.Result{Err: fmt.Sprintf("查询 DEX 池子失败: %s", err.Error())}, nil
	}
	return &tools.Result{Output: payload}, nil
}

// indicatorsTool 技术指标计算（SMA / EMA / RSI）
type indicatorsTool struct {
	client *marketClient
}

func (t *indicatorsTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "crypto_powerdata_indicators",
		DisplayName: "技术指标计算",
		Description: "基于 K 线收盘价计算 SMA、EMA、RSI 指标",
		Category:    tools.CategoryDEXAnalytics,
		Parameters: objectSchema(map[string]any{
			"symbol":    map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
			"timeframe": map[string]any{"type": "string", "description": "K 线周期，默认 1h"},
			"period":    map[string]any{"type": "number", "description": "指标周期，默认 14"},
		}, "symbol"),
	}
}

func (t *indicatorsTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	timeframe := stringParamOr(params, "timeframe", "1h")
	period := intParamOr(params, "period", 14)

	candles, err := t.client.klines(ctx, symbol, timeframe, period*10)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	closes := closePrices(candles)
	if len(closes) <= period {
		return &tools.Result{Err: fmt.Sprintf("K 线数据不足，至少需要 %d 根", period+1)}, nil
	}

	return &tools.Result{Output: map[string]any{
		"symbol":    strings.ToUpper(symbol),
		"timeframe": timeframe,
		"period":    period,
		"sma":       sma(closes, period),
		"ema":       ema(closes, period),
		"rsi":       rsi(closes, period),
		"last":      closes[len(closes)-1],
	}}, nil
}

func closePrices(candles []candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

func rangeOf(candles []candle) (high, low float64) {
	low = math.MaxFloat64
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	return high, low
}

// sma 末端简单移动平均
func sma(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// ema 末端指数移动平均，种子为最早 period 根的 SMA
func ema(values []float64, period int) float64 {
	if len(values) < period || period <= 0 {
		return 0
	}
	k := 2.0 / float64(period+1)
	current := sma(values[:period], period)
	for _, v := range values[period:] {
		current = v*k + current*(1-k)
	}
	return current
}

// rsi Wilder 相对强弱指标
func rsi(values []float64, period int) float64 {
	if len(values) <= period || period <= 0 {
		return 0
	}

	var gain, loss float64
	for i := 1; i <= period; i++ {
		delta := values[i] - values[i-1]
		if delta > 0 {
			gain += delta
		} else {
			loss -= delta
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	for i := period + 1; i < len(values); i++ {
		delta := values[i] - values[i-1]
		g, l := 0.0, 0.0
		if delta > 0 {
			g = delta
		} else {
			l = -delta
		}
		avgGain = (avgGain*float64(period-1) + g) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + l) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}
