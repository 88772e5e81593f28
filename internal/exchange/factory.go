package exchange

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// GatewayConfig 网关配置
type GatewayConfig struct {
	Name         string
	APIKey       string
	APISecret    string
	UseTestnet   bool
	RecvWindowMs int64
}

// NewGateway 根据配置创建交易所网关，目前只支持 Binance
func NewGateway(cfg GatewayConfig, logger *zap.Logger) (Gateway, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	if name == "" {
		name = "binance"
	}

	switch name {
	case "binance":
		gateway := NewBinanceGateway(cfg.APIKey, cfg.APISecret, cfg.UseTestnet, cfg.RecvWindowMs, logger)
		logger.Info("Binance交易所已注册", zap.Bool("testnet", cfg.UseTestnet))
		return gateway, nil
	default:
		return nil, fmt.Errorf("不支持的交易所: %s", cfg.Name)
	}
}
