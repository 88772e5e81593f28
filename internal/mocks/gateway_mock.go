package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

// MockGateway 交易所网关的模拟实现
type MockGateway struct {
	mock.Mock
}

// GetExchangeName 获取交易所名称的模拟实现
func (m *MockGateway) GetExchangeName() string {
	return "Mock"
}

// FetchAccount 获取账户的模拟实现
func (m *MockGateway) FetchAccount(ctx context.Context) (model.AccountSnapshot, error) {
	args := m.Called(ctx)
	account, _ := args.Get(0).(model.AccountSnapshot)
	return account, args.Error(1)
}

// FetchPositions 获取持仓的模拟实现
func (m *MockGateway) FetchPositions(ctx context.Context) ([]model.PositionRecord, error) {
	args := m.Called(ctx)
	positions, _ := args.Get(0).([]model.PositionRecord)
	return positions, args.Error(1)
}

// FetchTrades 获取成交的模拟实现
func (m *MockGateway) FetchTrades(ctx context.Context, limit int) ([]model.TradeRecord, error) {
	args := m.Called(ctx, limit)
	trades, _ := args.Get(0).([]model.TradeRecord)
	return trades, args.Error(1)
}
