package analytics

import (
	"github.com/life2you_mini/pnlwatch/internal/model"
)

// Calculator 每个刷新周期调用一次，无内部可变状态
type Calculator struct {
	baseline        model.BaselineConfig
	excludedSymbols map[string]struct{}
	tradeLimit      int
}

// NewCalculator 创建计算器
// excludedSymbols 中的交易对在所有指标和列表中都被忽略，tradeLimit 为成交列表展示条数
func NewCalculator(baseline model.BaselineConfig, excludedSymbols []string, tradeLimit int) *Calculator {
	excluded := make(map[string]struct{}, len(excludedSymbols))
	for _, s := range excludedSymbols {
		excluded[s] = struct{}{}
	}

	return &Calculator{
		baseline:        baseline,
		excludedSymbols: excluded,
		tradeLimit:      tradeLimit,
	}
}

// Baseline 返回基准配置
func (c *Calculator) Baseline() model.BaselineConfig {
	return c.baseline
}

// Analyze 由账户、持仓、成交计算出完整快照
// CycleID 和 FetchedAt 由调用方填写
func (c *Calculator) Analyze(
	account model.AccountSnapshot,
	positions []model.PositionRecord,
	trades []model.TradeRecord,
) *model.Snapshot {
	trades = ExcludeSymbols(trades, c.excludedSymbols)

	derived := ComputeProfitMetrics(account, c.baseline)
	outcome := ComputeMaxSingleTradeOutcome(trades, c.baseline)
	derived.MaxProfit = outcome.MaxProfit
	derived.MaxLoss = outcome.MaxLoss
	derived.TotalRealizedPnl = outcome.TotalRealizedPnl

	views, issues := BuildPositionViews(positions)

	fullPositions := make([]model.PositionRecord, len(positions))
	copy(fullPositions, positions)

	return &model.Snapshot{
		Account:          derived,
		Positions:        fullPositions,
		ActivePositions:  views,
		InvalidPositions: issues,
		Trades:           PrepareTradeList(trades, nil, c.tradeLimit),
	}
}
