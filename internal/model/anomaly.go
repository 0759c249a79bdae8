package model

import (
	"errors"
	"fmt"

	"mip/qsync/internal/sample"
)

// ErrModelUnavailable 异常检测模型不可用
var ErrModelUnavailable = errors.New("anomaly model not available")

// AnomalyScorer 掺假风险评分适配器
// 封装外部异常检测模型：组装特征向量 → 调用模型 → 线性映射为 0-100 风险百分比
type AnomalyScorer struct {
	model      AnomalyModel
	normalizer Normalizer
	bundle     Bundle
}

// NewAnomalyScorer 创建掺假风险评分器
// model 为 nil 表示模型未加载，Score 会返回显式错误而非崩溃
func NewAnomalyScorer(m AnomalyModel, n Normalizer, bundle Bundle) *AnomalyScorer {
	return &AnomalyScorer{
		model:      m,
		normalizer: n,
		bundle:     bundle,
	}
}

// Bundle 返回模型包元信息
func (s *AnomalyScorer) Bundle() Bundle {
	return s.bundle
}

// FeatureVector 组装模型特征向量：归一化光谱 + 按优先级取到的辅助标量
// 掺假检测与归因共用同一向量（模型包中的归因权重与该向量等长）
func (s *AnomalyScorer) FeatureVector(spectral []float64, raw map[string]any) ([]float64, error) {
	processed := spectral
	if s.normalizer != nil {
		var err error
		processed, err = s.normalizer.Normalize(spectral)
		if err != nil {
			return nil, fmt.Errorf("normalize spectral vector failed: %w", err)
		}
	}

	vec := make([]float64, 0, len(processed)+len(s.bundle.ImportantCols))
	vec = append(vec, processed...)
	for _, col := range s.bundle.ImportantCols {
		v, _ := sample.Lookup(raw, col)
		vec = append(vec, v)
	}

	return vec, nil
}

// Score 计算掺假风险
// spectral 为按模型列序提取的光谱向量，raw 用于按优先级取辅助标量（缺失填 0）
func (s *AnomalyScorer) Score(spectral []float64, raw map[string]any) (sample.AdulterationResult, error) {
	vec, err := s.FeatureVector(spectral, raw)
	if err != nil {
		return sample.AdulterationResult{}, err
	}
	return s.ScoreVector(vec)
}

// ScoreVector 对已组装的特征向量计算掺假风险
func (s *AnomalyScorer) ScoreVector(vec []float64) (sample.AdulterationResult, error) {
	if s.model == nil {
		return sample.AdulterationResult{}, ErrModelUnavailable
	}

	rawScore, err := s.model.DecisionFunction(vec)
	if err != nil {
		return sample.AdulterationResult{}, fmt.Errorf("anomaly model scoring failed: %w", err)
	}

	risk := RemapRisk(rawScore)

	return sample.AdulterationResult{
		Risk:          risk,
		IsAdulterated: risk > 50.0,
	}, nil
}

// RemapRisk 将模型原始得分线性映射为 0-100 风险百分比
func RemapRisk(rawScore float64) float64 {
	risk := (1.0-rawScore)*50.0 + 50.0
	if risk < 0 {
		return 0
	}
	if risk > 100 {
		return 100
	}
	return risk
}
