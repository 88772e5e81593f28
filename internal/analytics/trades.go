package analytics

import (
	"sort"
	"time"

	"github.com/life2you_mini/pnlwatch/internal/model"
)

// ExcludeSymbols 去掉指定交易对的成交记录
func ExcludeSymbols(trades []model.TradeRecord, symbols map[string]struct{}) []model.TradeRecord {
	result := make([]model.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if _, excluded := symbols[t.Symbol]; excluded {
			continue
		}
		result = append(result, t)
	}
	return result
}

// FilterTradesSince 保留 since 之后（含）的成交，用于展示列表
func FilterTradesSince(trades []model.TradeRecord, since time.Time) []model.TradeRecord {
	result := make([]model.TradeRecord, 0, len(trades))
	for _, t := range trades {
		if !t.Time.Before(since) {
			result = append(result, t)
		}
	}
	return result
}

// SortTradesByTimeDesc 按时间倒序返回副本，最新的在前
func SortTradesByTimeDesc(trades []model.TradeRecord) []model.TradeRecord {
	sorted := make([]model.TradeRecord, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.After(sorted[j].Time)
	})
	return sorted
}

// PrepareTradeList 排除交易对、按时间倒序并截取前 limit 条；limit<=0 表示不截取
func PrepareTradeList(trades []model.TradeRecord, excluded map[string]struct{}, limit int) []model.TradeRecord {
	list := SortTradesByTimeDesc(ExcludeSymbols(trades, excluded))
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list
}
