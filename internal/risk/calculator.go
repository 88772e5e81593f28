package risk

import (
	"github.com/shopspring/decimal"
)

// 风险等级
const (
	RiskLevelNone   = "NONE" // 没有强平价（如对冲或保证金充足）
	RiskLevelLow    = "LOW"
	RiskLevelMedium = "MEDIUM"
	RiskLevelHigh   = "HIGH"
)

// Thresholds 强平距离阈值，单位为百分比
type Thresholds struct {
	LowRiskLiqThreshold decimal.Decimal // 距离大于该值为低风险
	MedRiskLiqThreshold decimal.Decimal // 距离大于该值为中风险，否则为高风险
}

// DefaultThresholds 默认阈值：大于20%低风险，大于10%中风险
var DefaultThresholds = Thresholds{
	LowRiskLiqThreshold: decimal.NewFromInt(20),
	MedRiskLiqThreshold: decimal.NewFromInt(10),
}

var hundred = decimal.NewFromInt(100)

// CalculateLiquidationDistance 计算标记价格距离强平价格的百分比
// 多仓: (标记价 - 强平价) / 标记价 * 100；空仓: (强平价 - 标记价) / 标记价 * 100
// 强平价或标记价非正时没有意义，ok 返回 false
func CalculateLiquidationDistance(markPrice, liquidationPrice decimal.Decimal, direction string) (distance decimal.Decimal, ok bool) {
	if !markPrice.IsPositive() || !liquidationPrice.IsPositive() {
		return decimal.Zero, false
	}

	if direction == "SHORT" {
		return liquidationPrice.Sub(markPrice).Div(markPrice).Mul(hundred), true
	}
	return markPrice.Sub(liquidationPrice).Div(markPrice).Mul(hundred), true
}

// EvaluateRiskLevel 根据强平距离评估风险等级
func EvaluateRiskLevel(distance decimal.Decimal, thresholds Thresholds) string {
	switch {
	case distance.GreaterThan(thresholds.LowRiskLiqThreshold):
		return RiskLevelLow
	case distance.GreaterThan(thresholds.MedRiskLiqThreshold):
		return RiskLevelMedium
	default:
		return RiskLevelHigh
	}
}

// Assess 计算持仓的强平距离和风险等级
// 没有强平价时返回 nil 和 NONE
func Assess(markPrice, liquidationPrice decimal.Decimal, direction string, thresholds Thresholds) (*decimal.Decimal, string) {
	distance, ok := CalculateLiquidationDistance(markPrice, liquidationPrice, direction)
	if !ok {
		return nil, RiskLevelNone
	}
	return &distance, EvaluateRiskLevel(distance, thresholds)
}
