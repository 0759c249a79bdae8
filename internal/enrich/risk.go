package enrich

import (
	"mip/qsync/internal/sample"
)

// 红黄绿分级结果
const (
	RiskRed     = "red"
	RiskYellow  = "yellow"
	RiskGreen   = "green"
	RiskUnknown = "unknown"
)

// Threshold 单个指标的分级阈值
type Threshold struct {
	Low  float64
	High float64
}

// Thresholds 三项成分指标的阈值集合
type Thresholds struct {
	Fat Threshold
	SNF Threshold
	TS  Threshold
}

// DefaultThresholds 默认阈值
func DefaultThresholds() Thresholds {
	return Thresholds{
		Fat: Threshold{Low: 3.5, High: 4.5},
		SNF: Threshold{Low: 8.0, High: 9.0},
		TS:  Threshold{Low: 11.5, High: 13.5},
	}
}

// Classify 红黄绿分级（纯函数）
// value < low → red；value >= high → green；否则 yellow；缺失 → unknown
func Classify(value *float64, low, high float64) string {
	if value == nil {
		return RiskUnknown
	}
	v := *value
	if v < low {
		return RiskRed
	}
	if v >= high {
		return RiskGreen
	}
	return RiskYellow
}

// RiskClassifier 指标风险分级器
type RiskClassifier struct {
	thresholds Thresholds
}

// NewRiskClassifier 创建风险分级器实例
func NewRiskClassifier(thresholds Thresholds) *RiskClassifier {
	return &RiskClassifier{thresholds: thresholds}
}

// TrafficCards 计算 fat/snf/ts 三项指标的红黄绿卡
func (c *RiskClassifier) TrafficCards(fat, snf, ts *float64) map[string]sample.TrafficCard {
	return map[string]sample.TrafficCard{
		"fat": {Value: fat, Risk: Classify(fat, c.thresholds.Fat.Low, c.thresholds.Fat.High)},
		"snf": {Value: snf, Risk: Classify(snf, c.thresholds.SNF.Low, c.thresholds.SNF.High)},
		"ts":  {Value: ts, Risk: Classify(ts, c.thresholds.TS.Low, c.thresholds.TS.High)},
	}
}
