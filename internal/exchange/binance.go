package exchange

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

const defaultRecvWindow = 10000 // 毫秒

// BinanceGateway 币安U本位合约只读客户端
type BinanceGateway struct {
	client     *futures.Client
	logger     *zap.Logger
	recvWindow int64
}

// NewBinanceGateway 创建币安合约网关
func NewBinanceGateway(apiKey, apiSecret string, useTestnet bool, recvWindow int64, logger *zap.Logger) *BinanceGateway {
	// futures 包通过全局变量切换测试网，必须在创建客户端之前设置
	futures.UseTestnet = useTestnet

	if recvWindow <= 0 {
		recvWindow = defaultRecvWindow
	}

	client := futures.NewClient(apiKey, apiSecret)
	client.HTTPClient = newHTTPClient()

	return &BinanceGateway{
		client:     client,
		logger:     logger,
		recvWindow: recvWindow,
	}
}

// GetExchangeName 获取交易所名称
func (b *BinanceGateway) GetExchangeName() string {
	return "Binance"
}

// FetchAccount 获取合约账户信息
func (b *BinanceGateway) FetchAccount(ctx context.Context) (model.AccountSnapshot, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		b.logger.Error("获取币安账户信息失败", zap.Error(err))
		return model.AccountSnapshot{}, wrapError("account", err)
	}

	return convertAccount(account, time.Now()), nil
}

// FetchPositions 获取当前仓位信息
func (b *BinanceGateway) FetchPositions(ctx context.Context) ([]model.PositionRecord, error) {
	risks, err := b.client.NewGetPositionRiskService().Do(ctx, futures.WithRecvWindow(b.recvWindow))
	if err != nil {
		b.logger.Error("获取币安仓位信息失败", zap.Error(err))
		return nil, wrapError("positions", err)
	}

	positions := make([]model.PositionRecord, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		positions = append(positions, convertPosition(r))
	}

	return positions, nil
}

// FetchTrades 获取账户最近成交，不限制交易对
// SDK 的成交服务总会带上 symbol 参数，这里直接发送签名请求
func (b *BinanceGateway) FetchTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var trades []*futures.AccountTrade
	if err := b.signedGet(ctx, userTradesEndpoint, params, &trades); err != nil {
		b.logger.Error("获取币安成交记录失败", zap.Error(err), zap.Int("limit", limit))
		return nil, wrapError("trades", err)
	}

	result := make([]model.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if t == nil {
			continue
		}
		result = append(result, convertTrade(t))
	}

	return result, nil
}

func convertAccount(a *futures.Account, now time.Time) model.AccountSnapshot {
	return model.AccountSnapshot{
		WalletBalance:      parseDecimal(a.TotalWalletBalance),
		UnrealizedProfit:   parseDecimal(a.TotalUnrealizedProfit),
		MarginBalance:      parseDecimal(a.TotalMarginBalance),
		AvailableBalance:   parseDecimal(a.AvailableBalance),
		TotalInitialMargin: parseDecimal(a.TotalInitialMargin),
		UpdateTime:         now,
	}
}

func convertPosition(r *futures.PositionRisk) model.PositionRecord {
	return model.PositionRecord{
		Symbol:           r.Symbol,
		PositionSide:     r.PositionSide,
		PositionAmt:      parseDecimal(r.PositionAmt),
		EntryPrice:       parseDecimal(r.EntryPrice),
		MarkPrice:        parseDecimal(r.MarkPrice),
		UnrealizedProfit: parseDecimal(r.UnRealizedProfit),
		MarginMode:       model.ParseMarginMode(r.MarginType),
		Notional:         parseDecimal(r.Notional),
		Leverage:         parseDecimal(r.Leverage),
		IsolatedMargin:   parseDecimal(r.IsolatedMargin),
		LiquidationPrice: parseDecimal(r.LiquidationPrice),
	}
}

func convertTrade(t *futures.AccountTrade) model.TradeRecord {
	return model.TradeRecord{
		ID:              t.ID,
		OrderID:         t.OrderID,
		Symbol:          t.Symbol,
		Side:            model.Side(t.Side),
		Price:           parseDecimal(t.Price),
		Quantity:        parseDecimal(t.Quantity),
		Commission:      parseDecimal(t.Commission),
		CommissionAsset: t.CommissionAsset,
		RealizedPnl:     parseOptionalDecimal(t.RealizedPnl),
		Time:            time.UnixMilli(t.Time),
	}
}

// parseDecimal 解析失败或为空时返回0
func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return v
}

// parseOptionalDecimal 为空或无法解析时返回 nil
func parseOptionalDecimal(s string) *decimal.Decimal {
	if s == "" {
		return nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &v
}
