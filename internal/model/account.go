package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountSnapshot 合约账户快照
// 前半部分为交易所原始字段，后半部分为计算器附加的派生指标
type AccountSnapshot struct {
	WalletBalance      decimal.Decimal `json:"wallet_balance"`       // 钱包余额
	UnrealizedProfit   decimal.Decimal `json:"unrealized_profit"`    // 未实现盈亏
	MarginBalance      decimal.Decimal `json:"margin_balance"`       // 保证金余额
	AvailableBalance   decimal.Decimal `json:"available_balance"`    // 可用余额
	TotalInitialMargin decimal.Decimal `json:"total_initial_margin"` // 持仓起始保证金
	UpdateTime         time.Time       `json:"update_time"`

	// 派生指标，只由 analytics 写入
	TotalProfit       decimal.Decimal `json:"total_profit"`
	TotalProfitRate   decimal.Decimal `json:"total_profit_rate"`   // 百分比
	UnrealizedPnlRate decimal.Decimal `json:"unrealized_pnl_rate"` // 百分比
	MaxProfit         decimal.Decimal `json:"max_profit"`
	MaxLoss           decimal.Decimal `json:"max_loss"`
	TotalRealizedPnl  decimal.Decimal `json:"total_realized_pnl"`
}
