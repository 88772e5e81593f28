package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

func TestCalculator_Analyze(t *testing.T) {
	base := testBaseline.Timestamp
	calc := NewCalculator(testBaseline, []string{"PUMPUSDT"}, 2)

	account := model.AccountSnapshot{WalletBalance: d("1200"), UnrealizedProfit: d("100")}
	positions := []model.PositionRecord{
		{
			Symbol: "BTCUSDT", PositionAmt: d("0.1"), MarginMode: model.MarginModeCross,
			Notional: d("5000"), Leverage: d("10"), UnrealizedProfit: d("50"),
		},
		{Symbol: "ETHUSDT", PositionAmt: d("0"), MarginMode: model.MarginModeCross},
	}
	trades := []model.TradeRecord{
		{ID: 1, Symbol: "BTCUSDT", RealizedPnl: pnl("20"), Time: base.Add(1 * time.Hour)},
		{ID: 2, Symbol: "PUMPUSDT", RealizedPnl: pnl("9999"), Time: base.Add(2 * time.Hour)},
		{ID: 3, Symbol: "ETHUSDT", RealizedPnl: pnl("-15"), Time: base.Add(3 * time.Hour)},
		{ID: 4, Symbol: "ETHUSDT", RealizedPnl: nil, Time: base.Add(4 * time.Hour)},
	}

	snapshot := calc.Analyze(account, positions, trades)
	require.NotNil(t, snapshot)

	assertDecimal(t, "1060", snapshot.Account.TotalProfit)
	assertDecimal(t, "20", snapshot.Account.MaxProfit)
	assertDecimal(t, "-15", snapshot.Account.MaxLoss)
	assertDecimal(t, "5", snapshot.Account.TotalRealizedPnl)

	// 完整持仓列表保留已平仓记录，展示列表只含有效持仓
	assert.Len(t, snapshot.Positions, 2)
	require.Len(t, snapshot.ActivePositions, 1)
	assert.Equal(t, "BTCUSDT", snapshot.ActivePositions[0].Symbol)
	assert.Empty(t, snapshot.InvalidPositions)

	// 成交列表：排除 PUMPUSDT，倒序，截取2条
	require.Len(t, snapshot.Trades, 2)
	assert.Equal(t, int64(4), snapshot.Trades[0].ID)
	assert.Equal(t, int64(3), snapshot.Trades[1].ID)

	// 入参未被修改
	assert.True(t, account.TotalProfit.IsZero())
	assert.Equal(t, int64(1), trades[0].ID)
	assert.Equal(t, "PUMPUSDT", trades[1].Symbol)
}

func TestPrepareTradeList(t *testing.T) {
	base := testBaseline.Timestamp
	trades := []model.TradeRecord{
		{ID: 1, Symbol: "A", Time: base},
		{ID: 2, Symbol: "B", Time: base.Add(time.Minute)},
		{ID: 3, Symbol: "C", Time: base.Add(-time.Minute)},
	}

	t.Run("不截取", func(t *testing.T) {
		list := PrepareTradeList(trades, nil, 0)
		require.Len(t, list, 3)
		assert.Equal(t, []int64{2, 1, 3}, []int64{list[0].ID, list[1].ID, list[2].ID})
	})

	t.Run("排除并截取", func(t *testing.T) {
		list := PrepareTradeList(trades, map[string]struct{}{"B": {}}, 1)
		require.Len(t, list, 1)
		assert.Equal(t, int64(1), list[0].ID)
	})

	t.Run("按基准日期过滤展示列表", func(t *testing.T) {
		list := FilterTradesSince(trades, base)
		assert.Len(t, list, 2)
	})
}
