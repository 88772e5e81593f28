package model

import "time"

// Snapshot 一次刷新周期的完整结果
// 交给订阅者后不可修改，下一次成功刷新时整体替换
type Snapshot struct {
	CycleID          string           `json:"cycle_id"`
	Account          AccountSnapshot  `json:"account"`
	Positions        []PositionRecord `json:"positions"`
	ActivePositions  []PositionView   `json:"active_positions"`
	InvalidPositions []PositionIssue  `json:"invalid_positions,omitempty"`
	Trades           []TradeRecord    `json:"trades"`
	FetchedAt        time.Time        `json:"fetched_at"`
}
