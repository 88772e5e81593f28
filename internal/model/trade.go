package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 成交方向
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeRecord 成交记录，获取后不再修改
type TradeRecord struct {
	ID              int64            `json:"id"`
	OrderID         int64            `json:"order_id"`
	Symbol          string           `json:"symbol"`
	Side            Side             `json:"side"`
	Price           decimal.Decimal  `json:"price"`
	Quantity        decimal.Decimal  `json:"qty"`
	Commission      decimal.Decimal  `json:"commission"`
	CommissionAsset string           `json:"commission_asset"`
	RealizedPnl     *decimal.Decimal `json:"realized_pnl"` // 非平仓成交为 nil
	Time            time.Time        `json:"time"`
}

// QuoteValue 成交额 = 价格 * 数量
func (t TradeRecord) QuoteValue() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}
