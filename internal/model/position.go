package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MarginMode 保证金模式
type MarginMode string

const (
	MarginModeCross    MarginMode = "cross"    // 全仓
	MarginModeIsolated MarginMode = "isolated" // 逐仓
)

// ParseMarginMode 解析交易所返回的保证金模式，未知值原样保留
func ParseMarginMode(s string) MarginMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cross", "crossed":
		return MarginModeCross
	case "isolated":
		return MarginModeIsolated
	default:
		return MarginMode(s)
	}
}

// PositionRecord 合约持仓记录
type PositionRecord struct {
	Symbol           string          `json:"symbol"`
	PositionSide     string          `json:"position_side"` // BOTH / LONG / SHORT
	PositionAmt      decimal.Decimal `json:"position_amt"`  // 带符号，负数为空头
	EntryPrice       decimal.Decimal `json:"entry_price"`
	MarkPrice        decimal.Decimal `json:"mark_price"`
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"`
	MarginMode       MarginMode      `json:"margin_mode"`
	Notional         decimal.Decimal `json:"notional"`
	Leverage         decimal.Decimal `json:"leverage"`
	IsolatedMargin   decimal.Decimal `json:"isolated_margin"` // 仅逐仓有意义
	LiquidationPrice decimal.Decimal `json:"liquidation_price"`
}

// IsActive 持仓数量不为0即为有效持仓
func (p PositionRecord) IsActive() bool {
	return !p.PositionAmt.IsZero()
}

// Direction 根据持仓数量符号返回 LONG 或 SHORT
func (p PositionRecord) Direction() string {
	if p.PositionAmt.IsNegative() {
		return "SHORT"
	}
	return "LONG"
}

// PositionView 带保证金和收益率的持仓展示数据
type PositionView struct {
	PositionRecord
	Direction string          `json:"direction"`
	Margin    decimal.Decimal `json:"margin"`
	PnlRate   decimal.Decimal `json:"pnl_rate"` // 百分比

	LiquidationDistance *decimal.Decimal `json:"liquidation_distance,omitempty"` // 距强平价百分比
	RiskLevel           string           `json:"risk_level"`
}

// PositionIssue 无法计算保证金的持仓
type PositionIssue struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}
