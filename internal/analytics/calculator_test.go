package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life2you_mini/pnlwatch/internal/model"
	"github.com/life2you_mini/pnlwatch/internal/risk"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pnl(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var testBaseline = model.BaselineConfig{
	AssetValue: d("140"),
	Currency:   "USDT",
	Timestamp:  time.Date(2025, 10, 25, 0, 0, 0, 0, time.FixedZone("CST", 8*3600)),
}

func assertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(expected).Equal(actual), "期望 %s, 实际 %s", expected, actual.String())
}

func TestComputeProfitMetrics(t *testing.T) {
	t.Run("场景A-余额1200基准140", func(t *testing.T) {
		account := model.AccountSnapshot{WalletBalance: d("1200"), UnrealizedProfit: d("0")}

		result := ComputeProfitMetrics(account, testBaseline)

		assertDecimal(t, "1060", result.TotalProfit)
		assertDecimal(t, "757.14", result.TotalProfitRate.Round(2))
	})

	t.Run("总盈利率与公式逐位一致", func(t *testing.T) {
		balances := []string{"0", "-25.5", "140", "139.99", "1e6", "0.00000001"}
		for _, b := range balances {
			account := model.AccountSnapshot{WalletBalance: d(b)}
			result := ComputeProfitMetrics(account, testBaseline)

			expected := d(b).Sub(testBaseline.AssetValue).Div(testBaseline.AssetValue).Mul(decimal.NewFromInt(100))
			assert.True(t, expected.Equal(result.TotalProfitRate), "balance=%s", b)
		}
	})

	t.Run("不修改入参", func(t *testing.T) {
		account := model.AccountSnapshot{WalletBalance: d("200"), UnrealizedProfit: d("10")}

		_ = ComputeProfitMetrics(account, testBaseline)

		assert.True(t, account.TotalProfit.IsZero())
		assert.True(t, account.UnrealizedPnlRate.IsZero())
	})
}

func TestUnrealizedPnlRate(t *testing.T) {
	tests := []struct {
		name       string
		wallet     string
		unrealized string
		expected   string
	}{
		{name: "正常盈利", wallet: "110", unrealized: "10", expected: "10"},
		{name: "正常亏损", wallet: "90", unrealized: "-10", expected: "-10"},
		{name: "余额为0", wallet: "0", unrealized: "50", expected: "0"},
		{name: "余额为负", wallet: "-5", unrealized: "-100", expected: "0"},
		{name: "分母为0", wallet: "30", unrealized: "30", expected: "0"},
		{name: "分母为负保留负值", wallet: "10", unrealized: "20", expected: "-200"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := model.AccountSnapshot{WalletBalance: d(tt.wallet), UnrealizedProfit: d(tt.unrealized)}
			result := ComputeProfitMetrics(account, testBaseline)
			assertDecimal(t, tt.expected, result.UnrealizedPnlRate)
		})
	}
}

func TestComputeMargin(t *testing.T) {
	tests := []struct {
		name     string
		position model.PositionRecord
		expected string
		wantErr  bool
	}{
		{
			name: "全仓-名义价值除以杠杆",
			position: model.PositionRecord{
				Symbol: "BTCUSDT", MarginMode: model.MarginModeCross,
				Notional: d("5000"), Leverage: d("10"),
			},
			expected: "500",
		},
		{
			name: "全仓空头取绝对值",
			position: model.PositionRecord{
				Symbol: "ETHUSDT", MarginMode: model.MarginModeCross,
				Notional: d("-3000"), Leverage: d("20"),
			},
			expected: "150",
		},
		{
			name: "逐仓直接使用isolatedMargin",
			position: model.PositionRecord{
				Symbol: "SOLUSDT", MarginMode: model.MarginModeIsolated,
				Notional: d("1000"), Leverage: d("5"), IsolatedMargin: d("201.5"),
			},
			expected: "201.5",
		},
		{
			name: "全仓杠杆为0",
			position: model.PositionRecord{
				Symbol: "BTCUSDT", MarginMode: model.MarginModeCross,
				Notional: d("5000"), Leverage: d("0"),
			},
			wantErr: true,
		},
		{
			name: "未知保证金模式",
			position: model.PositionRecord{
				Symbol: "BTCUSDT", MarginMode: model.MarginMode("portfolio"),
				Notional: d("5000"), Leverage: d("10"),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			margin, err := ComputeMargin(tt.position)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidPosition))
				return
			}
			require.NoError(t, err)
			assertDecimal(t, tt.expected, margin)
		})
	}
}

func TestComputePositionPnlRate(t *testing.T) {
	t.Run("场景B-BTCUSDT全仓", func(t *testing.T) {
		position := model.PositionRecord{
			Symbol:           "BTCUSDT",
			PositionAmt:      d("0.1"),
			MarginMode:       model.ParseMarginMode("cross"),
			Notional:         d("5000"),
			Leverage:         d("10"),
			UnrealizedProfit: d("50"),
		}

		margin, err := ComputeMargin(position)
		require.NoError(t, err)
		assertDecimal(t, "500", margin)
		assertDecimal(t, "10", ComputePositionPnlRate(position, margin))
	})

	t.Run("保证金为0收益率为0", func(t *testing.T) {
		position := model.PositionRecord{UnrealizedProfit: d("123.45")}
		assertDecimal(t, "0", ComputePositionPnlRate(position, decimal.Zero))
	})

	t.Run("保证金为负收益率为0", func(t *testing.T) {
		position := model.PositionRecord{UnrealizedProfit: d("-3")}
		assertDecimal(t, "0", ComputePositionPnlRate(position, d("-1")))
	})
}

func TestComputeMaxSingleTradeOutcome(t *testing.T) {
	after := testBaseline.Timestamp.Add(time.Hour)
	before := testBaseline.Timestamp.Add(-time.Second)

	t.Run("场景C-含0和nil", func(t *testing.T) {
		trades := []model.TradeRecord{
			{Symbol: "BTCUSDT", RealizedPnl: pnl("-30"), Time: after},
			{Symbol: "BTCUSDT", RealizedPnl: pnl("45"), Time: after},
			{Symbol: "ETHUSDT", RealizedPnl: pnl("-10"), Time: after},
			{Symbol: "ETHUSDT", RealizedPnl: pnl("0"), Time: after},
			{Symbol: "ETHUSDT", RealizedPnl: nil, Time: after},
		}

		outcome := ComputeMaxSingleTradeOutcome(trades, testBaseline)

		assertDecimal(t, "45", outcome.MaxProfit)
		assertDecimal(t, "-30", outcome.MaxLoss)
		assertDecimal(t, "5", outcome.TotalRealizedPnl)
	})

	t.Run("基准日期之前的成交被忽略", func(t *testing.T) {
		trades := []model.TradeRecord{
			{RealizedPnl: pnl("1000"), Time: before},
			{RealizedPnl: pnl("-500"), Time: before},
			{RealizedPnl: pnl("7"), Time: testBaseline.Timestamp},
		}

		outcome := ComputeMaxSingleTradeOutcome(trades, testBaseline)

		assertDecimal(t, "7", outcome.MaxProfit)
		assertDecimal(t, "0", outcome.MaxLoss)
		assertDecimal(t, "7", outcome.TotalRealizedPnl)
	})

	t.Run("全部亏损时最大盈利为0", func(t *testing.T) {
		trades := []model.TradeRecord{
			{RealizedPnl: pnl("-1.5"), Time: after},
			{RealizedPnl: pnl("-2.5"), Time: after},
		}

		outcome := ComputeMaxSingleTradeOutcome(trades, testBaseline)

		assertDecimal(t, "0", outcome.MaxProfit)
		assertDecimal(t, "-2.5", outcome.MaxLoss)
		assertDecimal(t, "-4", outcome.TotalRealizedPnl)
	})

	t.Run("没有成交", func(t *testing.T) {
		outcome := ComputeMaxSingleTradeOutcome(nil, testBaseline)

		assertDecimal(t, "0", outcome.MaxProfit)
		assertDecimal(t, "0", outcome.MaxLoss)
		assertDecimal(t, "0", outcome.TotalRealizedPnl)
	})

	t.Run("重复计算结果一致且符号约束成立", func(t *testing.T) {
		trades := []model.TradeRecord{
			{RealizedPnl: pnl("3.3"), Time: after},
			{RealizedPnl: pnl("-8.1"), Time: after},
			{RealizedPnl: pnl("12"), Time: before},
		}

		first := ComputeMaxSingleTradeOutcome(trades, testBaseline)
		second := ComputeMaxSingleTradeOutcome(trades, testBaseline)

		assert.False(t, first.MaxProfit.IsNegative())
		assert.False(t, first.MaxLoss.IsPositive())
		assert.True(t, first.TotalRealizedPnl.Equal(second.TotalRealizedPnl))
		assertDecimal(t, "-4.8", first.TotalRealizedPnl)
	})
}

func TestFilterActivePositions(t *testing.T) {
	positions := []model.PositionRecord{
		{Symbol: "BTCUSDT", PositionAmt: d("0.1")},
		{Symbol: "ETHUSDT", PositionAmt: d("0")},
		{Symbol: "SOLUSDT", PositionAmt: d("-3")},
		{Symbol: "XRPUSDT", PositionAmt: d("0.000")},
	}

	once := FilterActivePositions(positions)
	twice := FilterActivePositions(once)

	require.Len(t, once, 2)
	assert.Equal(t, "BTCUSDT", once[0].Symbol)
	assert.Equal(t, "SOLUSDT", once[1].Symbol)
	assert.Equal(t, once, twice)
}

func TestBuildPositionViews(t *testing.T) {
	positions := []model.PositionRecord{
		{
			Symbol: "BTCUSDT", PositionAmt: d("0.1"), MarginMode: model.MarginModeCross,
			Notional: d("5000"), Leverage: d("10"), UnrealizedProfit: d("50"),
			MarkPrice: d("50000"), LiquidationPrice: d("46000"),
		},
		{
			Symbol: "BADUSDT", PositionAmt: d("1"), MarginMode: model.MarginModeCross,
			Notional: d("100"), Leverage: d("0"), UnrealizedProfit: d("1"),
		},
		{
			Symbol: "ETHUSDT", PositionAmt: d("-2"), MarginMode: model.MarginModeIsolated,
			IsolatedMargin: d("0"), UnrealizedProfit: d("-4"),
		},
		{Symbol: "DOGEUSDT", PositionAmt: d("0"), MarginMode: model.MarginModeCross},
	}

	views, issues := BuildPositionViews(positions)

	require.Len(t, views, 2)
	assert.Equal(t, "BTCUSDT", views[0].Symbol)
	assert.Equal(t, "LONG", views[0].Direction)
	assertDecimal(t, "500", views[0].Margin)
	assertDecimal(t, "10", views[0].PnlRate)
	require.NotNil(t, views[0].LiquidationDistance)
	assertDecimal(t, "8", *views[0].LiquidationDistance)
	assert.Equal(t, risk.RiskLevelHigh, views[0].RiskLevel)

	assert.Equal(t, "ETHUSDT", views[1].Symbol)
	assert.Equal(t, "SHORT", views[1].Direction)
	assertDecimal(t, "0", views[1].PnlRate)
	assert.Nil(t, views[1].LiquidationDistance)
	assert.Equal(t, risk.RiskLevelNone, views[1].RiskLevel)

	require.Len(t, issues, 1)
	assert.Equal(t, "BADUSDT", issues[0].Symbol)
}
