package exchange

import (
	"context"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

// Gateway 交易所只读数据接口
// 三个方法互不共享可变状态，可以并发调用
type Gateway interface {
	// GetExchangeName 获取交易所名称
	GetExchangeName() string

	// FetchAccount 获取合约账户余额
	FetchAccount(ctx context.Context) (model.AccountSnapshot, error)

	// FetchPositions 获取全部持仓（含数量为0的记录）
	FetchPositions(ctx context.Context) ([]model.PositionRecord, error)

	// FetchTrades 获取最近 limit 条成交
	FetchTrades(ctx context.Context, limit int) ([]model.TradeRecord, error)
}
