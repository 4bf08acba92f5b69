package web3

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"web3agent/internal/config"
	"web3agent/internal/tools"
	"web3agent/pkg/httputil"
)

// MarketDataProvider 行情数据类别提供方
// base_url 未配置时整个类别不可用，由执行器按类别注册失败处理
type MarketDataProvider struct {
	cfg config.MarketDataConfig
}

// NewMarketDataProvider 创建行情数据提供方
func NewMarketDataProvider(cfg config.MarketDataConfig) *MarketDataProvider {
	return &MarketDataProvider{cfg: cfg}
}

// Category 实现 CategoryProvider
func (p *MarketDataProvider) Category() tools.Category {
	return tools.CategoryMarketData
}

// Tools 构造行情类别的全部工具
func (p *MarketDataProvider) Tools(ctx context.Context) ([]tools.Tool, error) {
	if strings.TrimSpace(p.cfg.BaseURL) == "" {
		return nil, fmt.Errorf("行情数据源未配置 base_url")
	}

	client := newMarketClient(p.cfg)
	return []tools.Tool{
		&tokenPriceTool{client: client},
		&stats24hTool{client: client},
		&klineDataTool{client: client},
		&priceThresholdAlertTool{client: client},
		&lpRangeCheckTool{client: client},
		&suddenPriceIncreaseTool{client: client},
		&lendingRateMonitorTool{client: client},
	}, nil
}

// marketClient 交易所行情 REST 客户端
// 行情接口读多写少且容许短暂陈旧，GET 结果做短 TTL 内存缓存
type marketClient struct {
	baseURL string
	http    *httputil.CachedClient
}

func newMarketClient(cfg config.MarketDataConfig) *marketClient {
	return &marketClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: httputil.NewCachedClient(
			httputil.NewClient(httputil.WithRetries(2)),
			httputil.WithCacheTTL(cfg.ParseCacheTTL()),
		),
	}
}

func (c *marketClient) tickerPrice(ctx context.Context, pair string) (float64, error) {
	var resp struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	endpoint := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(exchangeSymbol(pair)))
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return 0, fmt.Errorf("查询价格失败: %w", err)
	}
	price, err := strconv.ParseFloat(resp.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("价格字段解析失败: %w", err)
	}
	return price, nil
}

// stats24h 24 小时行情统计
type stats24h struct {
	Symbol             string `json:"symbol"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
}

func (c *marketClient) stats24h(ctx context.Context, pair string) (*stats24h, error) {
	var resp stats24h
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", c.baseURL, url.QueryEscape(exchangeSymbol(pair)))
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("查询 24h 统计失败: %w", err)
	}
	return &resp, nil
}

// candle 单根 K 线
type candle struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

func (c *marketClient) klines(ctx context.Context, pair, timeframe string, limit int) ([]candle, error) {
	// 交易所返回的是混合类型数组: [openTime, "open", "high", "low", "close", "volume", ...]
	var rows [][]any
	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		c.baseURL, url.QueryEscape(exchangeSymbol(pair)), url.QueryEscape(timeframe), limit)
	if err := c.http.GetJSON(ctx, endpoint, &rows); err != nil {
		return nil, fmt.Errorf("查询 K 线失败: %w", err)
	}

	candles := make([]candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		k := candle{}
		if t, ok := row[0].(float64); ok {
			k.OpenTime = int64(t)
		}
		k.Open = parseKlineField(row[1])
		k.High = parseKlineField(row[2])
		k.Low = parseKlineField(row[3])
		k.Close = parseKlineField(row[4])
		k.Volume = parseKlineField(row[5])
		candles = append(candles, k)
	}
	return candles, nil
}

func parseKlineField(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case float64:
		return t
	default:
		return 0
	}
}

// lendingRate 借贷利率条目
type lendingRate struct {
	Asset      string  `json:"asset"`
	SupplyAPY  float64 `json:"supply_apy"`
	BorrowAPY  float64 `json:"borrow_apy"`
	UpdateTime int64   `json:"update_time"`
}

func (c *marketClient) lendingRates(ctx context.Context, asset string) ([]lendingRate, error) {
	var resp []lendingRate
	endpoint := fmt.Sprintf("%s/lending/rates?asset=%s", c.baseURL, url.QueryEscape(strings.ToUpper(asset)))
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("查询借贷利率失败: %w", err)
	}
	return resp, nil
}

// ---- 工具实现 ----

// tokenPriceTool 查询交易对最新价格
type tokenPriceTool struct {
	client *marketClient
}

func (t *tokenPriceTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "get_token_price",
		DisplayName: "代币价格查询",
		Description: "查询交易对（如 ETH-USDC）的最新成交价",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"symbol": map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
		}, "symbol"),
	}
}

func (t *tokenPriceTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	price, err := t.client.tickerPrice(ctx, symbol)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: map[string]any{
		"symbol":    strings.ToUpper(symbol),
		"price":     price,
		"timestamp": time.Now().Unix(),
	}}, nil
}

// stats24hTool 24 小时行情统计
type stats24hTool struct {
	client *marketClient
}

func (t *stats24hTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "get_24h_stats",
		DisplayName: "24小时行情统计",
		Description: "查询交易对最近 24 小时的涨跌幅、最高最低价和成交量",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"symbol": map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
		}, "symbol"),
	}
}

func (t *stats24hTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	stats, err := t.client.stats24h(ctx, symbol)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: stats}, nil
}

// klineDataTool K 线数据
type klineDataTool struct {
	client *marketClient
}

func (t *klineDataTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "get_kline_data",
		DisplayName: "K线数据查询",
		Description: "查询交易对的 OHLCV K 线数据",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"symbol":    map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
			"timeframe": map[string]any{"type": "string", "description": "K 线周期，默认 1h"},
			"limit":     map[string]any{"type": "number", "description": "返回根数，默认 100"},
		}, "symbol"),
	}
}

func (t *klineDataTool) Execute(ctx context.Context, params map[string]any) (any, error) {
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
	return &tools.Result{Output: map[string]any{
		"symbol":    strings.ToUpper(symbol),
		"timeframe": timeframe,
		"count":     len(candles),
		"candles":   candles,
	}}, nil
}

// priceThresholdAlertTool 价格阈值判断
// condition 是针对变量 price 的布尔表达式，如 "price > 3000"
type priceThresholdAlertTool struct {
	client *marketClient
}

func (t *priceThresholdAlertTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "price_threshold_alert",
		DisplayName: "价格阈值告警",
		Description: "查询最新价格并判断是否满足给定阈值条件",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"symbol":    map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
			"condition": map[string]any{"type": "string", "description": "阈值条件表达式，变量为 price，如 price > 3000"},
		}, "symbol", "condition"),
	}
}

func (t *priceThresholdAlertTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	condition, err := stringParam(params, "condition")
	if err != nil {
		return nil, err
	}

	expr, err := govaluate.NewEvaluableExpression(condition)
	if err != nil {
		return nil, fmt.Errorf("阈值条件表达式非法: %w", err)
	}

	price, err := t.client.tickerPrice(ctx, symbol)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}

	value, err := expr.Evaluate(map[string]any{"price": price})
	if err != nil {
		return nil, fmt.Errorf("阈值条件求值失败: %w", err)
	}
	triggered, ok := value.(bool)
	if !ok {
		return nil, fmt.Errorf("阈值条件必须是布尔表达式: %s", condition)
	}

	return &tools.Result{Output: map[string]any{
		"symbol":    strings.ToUpper(symbol),
		"price":     price,
		"condition": condition,
		"triggered": triggered,
	}}, nil
}

// lpRangeCheckTool 检查当前价格是否落在 LP 做市区间内
type lpRangeCheckTool struct {
	client *marketClient
}

func (t *lpRangeCheckTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "lp_range_check",
		DisplayName: "LP区间检查",
		Description: "检查交易对当前价格是否仍在流动性头寸的价格区间内",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"symbol": map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
			"lower":  map[string]any{"type": "number", "description": "区间下界"},
			"upper":  map[string]any{"type": "number", "description": "区间上界"},
		}, "symbol", "lower", "upper"),
	}
}

func (t *lpRangeCheckTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	lower, err := floatParam(params, "lower")
	if err != nil {
		return nil, err
	}
	upper, err := floatParam(params, "upper")
	if err != nil {
		return nil, err
	}
	if lower >= upper {
		return nil, fmt.Errorf("区间下界必须小于上界")
	}

	price, err := t.client.tickerPrice(ctx, symbol)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}

	return &tools.Result{Output: map[string]any{
		"symbol":   strings.ToUpper(symbol),
		"price":    price,
		"lower":    lower,
		"upper":    upper,
		"in_range": price >= lower && price <= upper,
	}}, nil
}

// suddenPriceIncreaseTool 判断是否出现短时急涨
type suddenPriceIncreaseTool struct {
	client *marketClient
}

func (t *suddenPriceIncreaseTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "sudden_price_increase",
		DisplayName: "急涨检测",
		Description: "基于 24 小时涨跌幅判断交易对是否出现超过阈值的上涨",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"symbol":    map[string]any{"type": "string", "description": "交易对，如 ETH-USDC"},
			"threshold": map[string]any{"type": "number", "description": "涨幅阈值（百分比），默认 5"},
		}, "symbol"),
	}
}

func (t *suddenPriceIncreaseTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	symbol, err := stringParam(params, "symbol")
	if err != nil {
		return nil, err
	}
	threshold := floatParamOr(params, "threshold", 5)

	stats, err := t.client.stats24h(ctx, symbol)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	changePercent, _ := strconv.ParseFloat(stats.PriceChangePercent, 64)

	return &tools.Result{Output: map[string]any{
		"symbol":          strings.ToUpper(symbol),
		"change_percent":  changePercent,
		"threshold":       threshold,
		"sudden_increase": changePercent >= threshold,
		"last_price":      stats.LastPrice,
	}}, nil
}

// lendingRateMonitorTool 借贷利率查询
type lendingRateMonitorTool struct {
	client *marketClient
}

func (t *lendingRateMonitorTool) Definition() *tools.Definition {
	return &tools.Definition{
		Name:        "lending_rate_monitor",
		DisplayName: "借贷利率监控",
		Description: "查询资产在借贷市场的存借利率",
		Category:    tools.CategoryMarketData,
		Parameters: objectSchema(map[string]any{
			"asset": map[string]any{"type": "string", "description": "资产符号，如 USDC"},
		}, "asset"),
	}
}

func (t *lendingRateMonitorTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	asset, err := stringParam(params, "asset")
	if err != nil {
		return nil, err
	}
	rates, err := t.client.lendingRates(ctx, asset)
	if err != nil {
		return &tools.Result{Err: err.Error()}, nil
	}
	return &tools.Result{Output: map[string]any{
		"asset": strings.ToUpper(asset),
		"rates": rates,
	}}, nil
}

// objectSchema 组装 JSON Schema 参数定义
func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
