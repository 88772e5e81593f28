package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

func TestConvertAccount(t *testing.T) {
	now := time.Now()
	account := convertAccount(&futures.Account{
		TotalWalletBalance:    "1200.50000000",
		TotalUnrealizedProfit: "-12.3",
		TotalMarginBalance:    "1188.2",
		AvailableBalance:      "900",
		TotalInitialMargin:    "",
	}, now)

	assert.Equal(t, "1200.5", account.WalletBalance.String())
	assert.Equal(t, "-12.3", account.UnrealizedProfit.String())
	assert.Equal(t, "1188.2", account.MarginBalance.String())
	assert.Equal(t, "900", account.AvailableBalance.String())
	assert.True(t, account.TotalInitialMargin.IsZero())
	assert.Equal(t, now, account.UpdateTime)
	assert.True(t, account.TotalProfit.IsZero(), "派生字段由计算器填写")
}

func TestConvertPosition(t *testing.T) {
	position := convertPosition(&futures.PositionRisk{
		Symbol:           "BTCUSDT",
		PositionAmt:      "0.1",
		EntryPrice:       "49500",
		MarkPrice:        "50000",
		UnRealizedProfit: "50",
		MarginType:       "cross",
		Notional:         "5000",
		Leverage:         "10",
		IsolatedMargin:   "0.00000000",
		LiquidationPrice: "0",
		PositionSide:     "BOTH",
	})

	assert.Equal(t, "BTCUSDT", position.Symbol)
	assert.Equal(t, model.MarginModeCross, position.MarginMode)
	assert.Equal(t, "0.1", position.PositionAmt.String())
	assert.Equal(t, "5000", position.Notional.String())
	assert.Equal(t, "10", position.Leverage.String())
	assert.True(t, position.IsActive())
	assert.Equal(t, "LONG", position.Direction())

	isolated := convertPosition(&futures.PositionRisk{Symbol: "ETHUSDT", PositionAmt: "-1", MarginType: "isolated", IsolatedMargin: "33.5"})
	assert.Equal(t, model.MarginModeIsolated, isolated.MarginMode)
	assert.Equal(t, "33.5", isolated.IsolatedMargin.String())
	assert.Equal(t, "SHORT", isolated.Direction())
}

func TestConvertTrade(t *testing.T) {
	ms := time.Date(2025, 10, 26, 8, 0, 0, 0, time.UTC).UnixMilli()

	tests := []struct {
		name        string
		realizedPnl string
		expectNil   bool
		expected    string
	}{
		{name: "平仓成交", realizedPnl: "-30.25", expected: "-30.25"},
		{name: "开仓成交为0", realizedPnl: "0", expected: "0"},
		{name: "缺少已实现盈亏", realizedPnl: "", expectNil: true},
		{name: "无法解析", realizedPnl: "n/a", expectNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := convertTrade(&futures.AccountTrade{
				ID:              7,
				OrderID:         99,
				Symbol:          "BTCUSDT",
				Side:            futures.SideTypeSell,
				Price:           "50000",
				Quantity:        "0.002",
				Commission:      "0.04",
				CommissionAsset: "USDT",
				RealizedPnl:     tt.realizedPnl,
				Time:            ms,
			})

			assert.Equal(t, model.SideSell, trade.Side)
			assert.Equal(t, "100", trade.QuoteValue().String())
			assert.Equal(t, ms, trade.Time.UnixMilli())
			if tt.expectNil {
				assert.Nil(t, trade.RealizedPnl)
				return
			}
			require.NotNil(t, trade.RealizedPnl)
			assert.Equal(t, tt.expected, trade.RealizedPnl.String())
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorKind
	}{
		{name: "API密钥被拒绝", err: &common.APIError{Code: -2015, Message: "Invalid API-key, IP, or permissions for action."}, expected: KindUnauthorized},
		{name: "签名错误", err: &common.APIError{Code: -1022, Message: "Signature for this request is not valid."}, expected: KindUnauthorized},
		{name: "请求过多", err: &common.APIError{Code: -1003, Message: "Too many requests"}, expected: KindRateLimited},
		{name: "包装后的限流错误", err: fmt.Errorf("call: %w", &common.APIError{Code: -1015}), expected: KindRateLimited},
		{name: "其他API错误", err: &common.APIError{Code: -1021, Message: "Timestamp outside recvWindow"}, expected: KindUnknown},
		{name: "参数错误", err: &common.APIError{Code: -1105, Message: "Parameter 'symbol' was empty."}, expected: KindUnknown},
		{name: "429无错误码", err: &HTTPStatusError{StatusCode: 429, Body: "Too Many Requests"}, expected: KindRateLimited},
		{name: "418封禁经url.Error包装", err: &url.Error{Op: "Get", URL: "https://fapi.binance.com", Err: &HTTPStatusError{StatusCode: 418}}, expected: KindRateLimited},
		{name: "401无错误码", err: &HTTPStatusError{StatusCode: 401, Body: "<html>"}, expected: KindUnauthorized},
		{name: "503", err: &HTTPStatusError{StatusCode: 503}, expected: KindUnknown},
		{name: "超时", err: context.DeadlineExceeded, expected: KindNetwork},
		{name: "网络错误", err: fmt.Errorf("dial: %w", timeoutErr{}), expected: KindNetwork},
		{name: "未知错误", err: errors.New("unexpected"), expected: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := wrapError("trades", tt.err)
			require.Error(t, err)

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, "trades", te.Op)
			assert.Equal(t, tt.expected, te.Kind)
			assert.Equal(t, tt.expected, KindOf(err))
			assert.True(t, errors.Is(err, tt.err))
		})
	}

	assert.NoError(t, wrapError("account", nil))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestNewGateway(t *testing.T) {
	logger := zaptest.NewLogger(t)

	gateway, err := NewGateway(GatewayConfig{Name: "Binance", APIKey: "k", APISecret: "s"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "Binance", gateway.GetExchangeName())

	_, err = NewGateway(GatewayConfig{Name: "okx"}, logger)
	assert.Error(t, err)
}
