package enrich

import (
	"math"

	"mip/qsync/internal/sample"
)

// DefaultBasePrice 默认基础价（每升）
const DefaultBasePrice = 33.0

// QualityScorer 质量评分器
// 基于 fat/snf/ts 的加权得分换算收购价
type QualityScorer struct {
	basePrice float64
}

// NewQualityScorer 创建质量评分器实例
// basePrice <= 0 时使用默认基础价
func NewQualityScorer(basePrice float64) *QualityScorer {
	if basePrice <= 0 {
		basePrice = DefaultBasePrice
	}
	return &QualityScorer{basePrice: basePrice}
}

// Score 计算综合质量得分
// 任一输入缺失时返回 0.0（低分兜底，不报错）
func (s *QualityScorer) Score(fat, snf, ts *float64) float64 {
	if fat == nil || snf == nil || ts == nil {
		return 0.0
	}
	return *fat*0.4 + *snf*0.35 + *ts*0.25
}

// Quote 计算得分与定价
// 得分大致落在 8~20 区间，换算为 0.5~1.5 的价格乘数
func (s *QualityScorer) Quote(fat, snf, ts *float64) sample.PriceQuote {
	score := s.Score(fat, snf, ts)

	multiplier := math.Max(0.5, math.Min(1.5, score/10.0))

	return sample.PriceQuote{
		BasePrice:    s.basePrice,
		QualityScore: round3(score),
		FinalPrice:   round2(s.basePrice * multiplier),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
