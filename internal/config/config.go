package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

// ErrConfiguration 配置无效，程序不能启动
var ErrConfiguration = errors.New("配置错误")

// Config 应用配置结构
type Config struct {
	App      AppConfig      `mapstructure:"app" yaml:"app"`
	Exchange ExchangeConfig `mapstructure:"exchange" yaml:"exchange"`
	Baseline BaselineConfig `mapstructure:"baseline" yaml:"baseline"`
	Refresh  RefreshConfig  `mapstructure:"refresh" yaml:"refresh"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	System   SystemConfig   `mapstructure:"system" yaml:"system"`
}

// AppConfig 展示信息
type AppConfig struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Title string `mapstructure:"title" yaml:"title"`
}

// ExchangeConfig 交易所配置
type ExchangeConfig struct {
	Name         string `mapstructure:"name" yaml:"name"`
	APIKey       string `mapstructure:"api_key" yaml:"api_key"`       // 建议通过环境变量设置
	APISecret    string `mapstructure:"api_secret" yaml:"api_secret"` // 建议通过环境变量设置
	UseTestnet   bool   `mapstructure:"use_testnet" yaml:"use_testnet"`
	RecvWindowMs int64  `mapstructure:"recv_window_ms" yaml:"recv_window_ms"`
}

// BaselineConfig 收益基准
type BaselineConfig struct {
	AssetValue float64 `mapstructure:"asset_value" yaml:"asset_value"` // 基准资产，必须大于0
	Currency   string  `mapstructure:"currency" yaml:"currency"`
	Date       string  `mapstructure:"date" yaml:"date"` // RFC3339，需加引号
}

// RefreshConfig 刷新配置
type RefreshConfig struct {
	IntervalSeconds     int      `mapstructure:"interval_seconds" yaml:"interval_seconds"`
	TickSeconds         int      `mapstructure:"tick_seconds" yaml:"tick_seconds"`
	FetchTimeoutSeconds int      `mapstructure:"fetch_timeout_seconds" yaml:"fetch_timeout_seconds"`
	TradeLimit          int      `mapstructure:"trade_limit" yaml:"trade_limit"`
	ExcludedSymbols     []string `mapstructure:"excluded_symbols" yaml:"excluded_symbols"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled            bool   `mapstructure:"enabled" yaml:"enabled"`
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	Password           string `mapstructure:"password" yaml:"password"`
	DB                 int    `mapstructure:"db" yaml:"db"`
	KeyPrefix          string `mapstructure:"key_prefix" yaml:"key_prefix"`
	SnapshotTTLSeconds int    `mapstructure:"snapshot_ttl_seconds" yaml:"snapshot_ttl_seconds"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`
}

// HasCredentials 是否配置了API密钥
func (c *Config) HasCredentials() bool {
	return c.Exchange.APIKey != "" && c.Exchange.APISecret != ""
}

// BaselineSpec 转换为计算器使用的基准配置
func (c *Config) BaselineSpec() (model.BaselineConfig, error) {
	baseline, err := model.NewBaselineConfig(
		strconv.FormatFloat(c.Baseline.AssetValue, 'f', -1, 64),
		c.Baseline.Currency,
		c.Baseline.Date,
	)
	if err != nil {
		return model.BaselineConfig{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return baseline, nil
}

// 刷新结束后关闭HTTP服务和Redis连接的时间
const shutdownMargin = 10 * time.Second

// RefreshInterval 自动刷新间隔
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Refresh.IntervalSeconds) * time.Second
}

// TickInterval 倒计时步长
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Refresh.TickSeconds) * time.Second
}

// FetchTimeout 单次刷新的等待上限
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Refresh.FetchTimeoutSeconds) * time.Second
}

// ShutdownTimeout 关闭服务的等待上限，需要覆盖进行中的刷新
func (c *Config) ShutdownTimeout() time.Duration {
	return c.FetchTimeout() + shutdownMargin
}

// SnapshotTTL Redis快照过期时间
func (c *Config) SnapshotTTL() time.Duration {
	return time.Duration(c.Redis.SnapshotTTLSeconds) * time.Second
}

// LoadConfig 从文件加载配置，未设置的键使用默认值
func LoadConfig(filePath string) (*Config, error) {
	// 使用Viper读取配置
	v := viper.New()
	v.SetConfigFile(filePath)
	setDefaults(v, GetDefaultConfig())

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: 读取配置文件失败: %w", ErrConfiguration, err)
	}

	// 环境变量覆盖，如 PNLWATCH_REFRESH_INTERVAL_SECONDS
	v.SetEnvPrefix("PNLWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	applyEnvOverrides(v)

	// 解析配置到结构体
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("%w: 解析配置失败: %w", ErrConfiguration, err)
	}

	// 验证配置有效性
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadConfigFromYAML 直接用yaml解析，不支持环境变量覆盖
func LoadConfigFromYAML(filePath string) (*Config, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取配置文件失败: %w", ErrConfiguration, err)
	}

	config := GetDefaultConfig()
	if err := yaml.Unmarshal(yamlFile, config); err != nil {
		return nil, fmt.Errorf("%w: 解析配置文件失败: %w", ErrConfiguration, err)
	}

	// 验证配置有效性
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides 特定环境变量映射，存在时优先使用
func applyEnvOverrides(v *viper.Viper) {
	if apiKey := os.Getenv("BINANCE_API_KEY"); apiKey != "" {
		v.Set("exchange.api_key", apiKey)
	}
	if apiSecret := os.Getenv("BINANCE_SECRET_KEY"); apiSecret != "" {
		v.Set("exchange.api_secret", apiSecret)
	} else if apiSecret := os.Getenv("BINANCE_API_SECRET"); apiSecret != "" {
		v.Set("exchange.api_secret", apiSecret)
	}
	if testnet := os.Getenv("USE_TESTNET"); testnet != "" {
		v.Set("exchange.use_testnet", strings.EqualFold(testnet, "true"))
	}
	if port := os.Getenv("PORT"); port != "" {
		v.Set("server.addr", ":"+port)
	}
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	if _, err := config.BaselineSpec(); err != nil {
		return err
	}

	if config.Refresh.IntervalSeconds <= 0 {
		return fmt.Errorf("%w: 刷新间隔必须大于0", ErrConfiguration)
	}
	if config.Refresh.TickSeconds <= 0 || config.Refresh.TickSeconds > config.Refresh.IntervalSeconds {
		return fmt.Errorf("%w: 倒计时步长必须在1到刷新间隔之间", ErrConfiguration)
	}
	if config.Refresh.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("%w: 请求超时必须大于0", ErrConfiguration)
	}
	if config.Refresh.TradeLimit <= 0 || config.Refresh.TradeLimit > 1000 {
		return fmt.Errorf("%w: 成交条数必须在1到1000之间", ErrConfiguration)
	}

	if config.Server.Enabled && config.Server.Addr == "" {
		return fmt.Errorf("%w: HTTP服务已启用，但监听地址为空", ErrConfiguration)
	}

	// 验证Redis配置
	if config.Redis.Enabled {
		if config.Redis.Host == "" {
			return fmt.Errorf("%w: Redis主机不能为空", ErrConfiguration)
		}
		if config.Redis.Port <= 0 || config.Redis.Port > 65535 {
			return fmt.Errorf("%w: 无效的Redis端口", ErrConfiguration)
		}
	}

	return nil
}

// GetDefaultConfig 获取默认配置（用于生成示例配置）
func GetDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:  "pnlwatch",
			Title: "合约账户收益看板",
		},
		Exchange: ExchangeConfig{
			Name:         "binance",
			UseTestnet:   false,
			RecvWindowMs: 10000,
		},
		Baseline: BaselineConfig{
			AssetValue: 140,
			Currency:   "USDT",
			Date:       "2025-10-25T00:00:00+08:00",
		},
		Refresh: RefreshConfig{
			IntervalSeconds:     60,
			TickSeconds:         1,
			FetchTimeoutSeconds: 15,
			TradeLimit:          25,
			ExcludedSymbols:     []string{"PUMPUSDT"},
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    ":3000",
		},
		Redis: RedisConfig{
			Enabled:            false,
			Host:               "localhost",
			Port:               6379,
			DB:                 0,
			KeyPrefix:          "pnlwatch:",
			SnapshotTTLSeconds: 600,
		},
		System: SystemConfig{
			LogLevel: "info",
			LogDir:   "./logs",
		},
	}
}

// toMap 配置转换为map，不包含API密钥
func toMap(config *Config) map[string]interface{} {
	return map[string]interface{}{
		"app": map[string]interface{}{
			"name":  config.App.Name,
			"title": config.App.Title,
		},
		"exchange": map[string]interface{}{
			"name":           config.Exchange.Name,
			"use_testnet":    config.Exchange.UseTestnet,
			"recv_window_ms": config.Exchange.RecvWindowMs,
		},
		"baseline": map[string]interface{}{
			"asset_value": config.Baseline.AssetValue,
			"currency":    config.Baseline.Currency,
			"date":        config.Baseline.Date,
		},
		"refresh": map[string]interface{}{
			"interval_seconds":      config.Refresh.IntervalSeconds,
			"tick_seconds":          config.Refresh.TickSeconds,
			"fetch_timeout_seconds": config.Refresh.FetchTimeoutSeconds,
			"trade_limit":           config.Refresh.TradeLimit,
			"excluded_symbols":      config.Refresh.ExcludedSymbols,
		},
		"server": map[string]interface{}{
			"enabled": config.Server.Enabled,
			"addr":    config.Server.Addr,
		},
		"redis": map[string]interface{}{
			"enabled":              config.Redis.Enabled,
			"host":                 config.Redis.Host,
			"port":                 config.Redis.Port,
			"password":             config.Redis.Password,
			"db":                   config.Redis.DB,
			"key_prefix":           config.Redis.KeyPrefix,
			"snapshot_ttl_seconds": config.Redis.SnapshotTTLSeconds,
		},
		"system": map[string]interface{}{
			"log_level": config.System.LogLevel,
			"log_dir":   config.System.LogDir,
		},
	}
}

func setDefaults(v *viper.Viper, config *Config) {
	for k, val := range toMap(config) {
		v.SetDefault(k, val)
	}
}

// SaveConfigToFile 将配置保存到文件
// 注意：这里不包含敏感信息
func SaveConfigToFile(config *Config, filePath string) error {
	v := viper.New()
	v.SetConfigFile(filePath)

	for k, val := range toMap(config) {
		v.Set(k, val)
	}

	// 写入文件
	return v.WriteConfigAs(filePath)
}
