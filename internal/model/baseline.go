package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidBaseline 基准资产必须大于0
var ErrInvalidBaseline = errors.New("基准资产价值必须大于0")

// BaselineConfig 盈亏计算的基准点，进程启动时读取，运行期间不变
type BaselineConfig struct {
	AssetValue decimal.Decimal `json:"asset_value"`
	Currency   string          `json:"currency"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewBaselineConfig 解析并校验基准配置
func NewBaselineConfig(assetValue, currency, date string) (BaselineConfig, error) {
	value, err := decimal.NewFromString(assetValue)
	if err != nil {
		return BaselineConfig{}, fmt.Errorf("解析基准资产价值失败: %w", err)
	}

	ts, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return BaselineConfig{}, fmt.Errorf("解析基准日期失败: %w", err)
	}

	baseline := BaselineConfig{
		AssetValue: value,
		Currency:   currency,
		Timestamp:  ts,
	}
	if err := baseline.Validate(); err != nil {
		return BaselineConfig{}, err
	}

	return baseline, nil
}

// Validate 校验基准资产价值
func (b BaselineConfig) Validate() error {
	if !b.AssetValue.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidBaseline, b.AssetValue.String())
	}
	return nil
}
