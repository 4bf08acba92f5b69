package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AI       AIConfig       `mapstructure:"ai"`
	Web3     Web3Config     `mapstructure:"web3"`
	Agent    AgentConfig    `mapstructure:"agent"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, /path/to/log
}

// DatabaseConfig 执行历史数据库配置（SQLite，可选）
type DatabaseConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // SQLite 文件路径
}

// RedisConfig Redis 配置（会话存储，可选）
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// AIConfig 模型配置（意图分类 / 查询提取 / 结果格式化）
type AIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// Web3Config Web3 工具层配置
// 每个类别独立配置，配置缺失的类别注册时按"类别不可用"处理，不影响其他类别
type Web3Config struct {
	MarketData MarketDataConfig `mapstructure:"market_data"`
	DEX        DEXConfig        `mapstructure:"dex"`
	EVM        EVMConfig        `mapstructure:"evm"`
	Neo        NeoConfig        `mapstructure:"neo"`
	GitHub     GitHubConfig     `mapstructure:"github"`
}

// MarketDataConfig 行情数据源配置
type MarketDataConfig struct {
	BaseURL  string `mapstructure:"base_url"` // 交易所行情 REST API
	CacheTTL string `mapstructure:"cache_ttl"`
}

// DEXConfig DEX 行情数据源配置
type DEXConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// EVMConfig EVM 链 JSON-RPC 配置
type EVMConfig struct {
	RPCURL  string `mapstructure:"rpc_url"`
	ChainID int64  `mapstructure:"chain_id"`
}

// NeoConfig Neo 链 API 配置
type NeoConfig struct {
	APIURL string `mapstructure:"api_url"`
}

// GitHubConfig GitHub 分析工具配置
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
}

// AgentConfig 对话代理配置
type AgentConfig struct {
	ToolTimeout    int    `mapstructure:"tool_timeout"`    // 单次工具调用超时（秒），默认 30
	ContextWindow  int    `mapstructure:"context_window"`  // 提取查询时引用的历史轮数，默认 2
	DemoLogPath    string `mapstructure:"demo_log_path"`   // JSONL 演示日志路径，留空则关闭
	DefaultSession string `mapstructure:"default_session"` // 未指定会话时使用的会话 ID
}

var globalConfig *Config

// Load 加载配置
// env: 环境名称（dev, prod, test）
// configPath: 配置文件路径（可选）
func Load(env string, configPath string) (*Config, error) {
	v := viper.New()

	if configPath == "" {
		v.SetConfigName(env) // dev.yaml, prod.yaml
		v.AddConfigPath("./config")
		v.AddConfigPath("../config")
		v.AddConfigPath("../../config")
	} else {
		v.SetConfigFile(configPath)
	}

	v.SetConfigType("yaml")

	// 环境变量优先级高于配置文件，支持嵌套键：APP_WEB3_EVM_RPC_URL
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "stdout")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.temperature", 0.1)
	v.SetDefault("ai.max_retries", 3)
	v.SetDefault("web3.market_data.cache_ttl", "10s")
	v.SetDefault("web3.github.api_url", "https://api.github.com")
	v.SetDefault("agent.tool_timeout", 30)
	v.SetDefault("agent.context_window", 2)
	v.SetDefault("agent.default_session", "default")
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("配置未初始化，请先调用 Load()")
	}
	return globalConfig
}

// ParseCacheTTL 解析行情缓存时长，非法值回退为 10 秒
func (c *MarketDataConfig) ParseCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.CacheTTL)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}
