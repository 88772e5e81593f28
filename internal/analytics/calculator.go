package analytics

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/life2you_mini/pnlwatch/internal/model"
	"github.com/life2you_mini/pnlwatch/internal/risk"
)

// ErrInvalidPosition 持仓数据无法计算保证金（如全仓杠杆为0）
var ErrInvalidPosition = errors.New("无效持仓")

var hundred = decimal.NewFromInt(100)

// TradeOutcome 基准日期之后的单笔成交盈亏统计
type TradeOutcome struct {
	MaxProfit        decimal.Decimal `json:"max_profit"`
	MaxLoss          decimal.Decimal `json:"max_loss"`
	TotalRealizedPnl decimal.Decimal `json:"total_realized_pnl"`
}

// ComputeProfitMetrics 计算相对基准的总盈利、总盈利率和未实现盈亏率
// 返回新的账户快照，不修改入参
func ComputeProfitMetrics(account model.AccountSnapshot, baseline model.BaselineConfig) model.AccountSnapshot {
	result := account

	// 总盈利 = 钱包余额 - 基准资产
	result.TotalProfit = account.WalletBalance.Sub(baseline.AssetValue)
	// 基准资产在配置加载时已保证大于0
	result.TotalProfitRate = result.TotalProfit.Div(baseline.AssetValue).Mul(hundred)
	result.UnrealizedPnlRate = unrealizedPnlRate(account.WalletBalance, account.UnrealizedProfit)

	return result
}

// unrealizedPnlRate 未实现盈亏 / (钱包余额 - 未实现盈亏) * 100
// 钱包余额非正时返回0；分母为负时保留负的收益率
func unrealizedPnlRate(walletBalance, unrealizedProfit decimal.Decimal) decimal.Decimal {
	if !walletBalance.IsPositive() {
		return decimal.Zero
	}

	denominator := walletBalance.Sub(unrealizedProfit)
	if denominator.IsZero() {
		return decimal.Zero
	}

	return unrealizedProfit.Div(denominator).Mul(hundred)
}

// ComputeMargin 计算持仓保证金
// 全仓: |名义价值| / 杠杆；逐仓: 直接使用 isolatedMargin
func ComputeMargin(position model.PositionRecord) (decimal.Decimal, error) {
	switch position.MarginMode {
	case model.MarginModeCross:
		if !position.Leverage.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: %s 全仓杠杆为 %s", ErrInvalidPosition, position.Symbol, position.Leverage.String())
		}
		return position.Notional.Abs().Div(position.Leverage), nil
	case model.MarginModeIsolated:
		return position.IsolatedMargin, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %s 未知保证金模式 %q", ErrInvalidPosition, position.Symbol, position.MarginMode)
	}
}

// ComputePositionPnlRate 持仓收益率 = 未实现盈亏 / 保证金 * 100，保证金非正时为0
func ComputePositionPnlRate(position model.PositionRecord, margin decimal.Decimal) decimal.Decimal {
	if !margin.IsPositive() {
		return decimal.Zero
	}
	return position.UnrealizedProfit.Div(margin).Mul(hundred)
}

// ComputeMaxSingleTradeOutcome 统计基准日期之后的单笔最大盈利、最大亏损和已实现盈亏合计
// 没有已实现盈亏的成交（开仓成交）不参与统计
func ComputeMaxSingleTradeOutcome(trades []model.TradeRecord, baseline model.BaselineConfig) TradeOutcome {
	outcome := TradeOutcome{
		MaxProfit:        decimal.Zero,
		MaxLoss:          decimal.Zero,
		TotalRealizedPnl: decimal.Zero,
	}

	for _, trade := range trades {
		if trade.Time.Before(baseline.Timestamp) || trade.RealizedPnl == nil {
			continue
		}

		pnl := *trade.RealizedPnl
		outcome.TotalRealizedPnl = outcome.TotalRealizedPnl.Add(pnl)

		if pnl.GreaterThan(outcome.MaxProfit) {
			outcome.MaxProfit = pnl
		}
		if pnl.LessThan(outcome.MaxLoss) {
			outcome.MaxLoss = pnl
		}
	}

	return outcome
}

// FilterActivePositions 过滤掉持仓数量为0的记录，保持原有顺序
func FilterActivePositions(positions []model.PositionRecord) []model.PositionRecord {
	active := make([]model.PositionRecord, 0, len(positions))
	for _, p := range positions {
		if p.IsActive() {
			active = append(active, p)
		}
	}
	return active
}

// BuildPositionViews 为有效持仓计算保证金和收益率
// 保证金无法计算的持仓不进入展示列表，单独返回
func BuildPositionViews(positions []model.PositionRecord) ([]model.PositionView, []model.PositionIssue) {
	active := FilterActivePositions(positions)

	views := make([]model.PositionView, 0, len(active))
	var issues []model.PositionIssue

	for _, p := range active {
		margin, err := ComputeMargin(p)
		if err != nil {
			issues = append(issues, model.PositionIssue{
				Symbol: p.Symbol,
				Reason: err.Error(),
			})
			continue
		}

		direction := p.Direction()
		distance, level := risk.Assess(p.MarkPrice, p.LiquidationPrice, direction, risk.DefaultThresholds)

		views = append(views, model.PositionView{
			PositionRecord:      p,
			Direction:           direction,
			Margin:              margin,
			PnlRate:             ComputePositionPnlRate(p, margin),
			LiquidationDistance: distance,
			RiskLevel:           level,
		})
	}

	return views, issues
}
