package model

import "fmt"

// StandardScaler 标准化预处理（实现 Normalizer 接口）
// 参数由训练侧导出：(x - mean) / scale
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler 创建标准化器
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 || len(mean) != len(scale) {
		return nil, fmt.Errorf("scaler params length mismatch: mean=%d scale=%d", len(mean), len(scale))
	}
	return &StandardScaler{mean: mean, scale: scale}, nil
}

// Normalize 标准化输入向量
func (s *StandardScaler) Normalize(vec []float64) ([]float64, error) {
	if len(vec) != len(s.mean) {
		return nil, fmt.Errorf("vector length %d does not match scaler dimension %d", len(vec), len(s.mean))
	}

	out := make([]float64, len(vec))
	for i, v := range vec {
		sc := s.scale[i]
		if sc == 0 {
			sc = 1
		}
		out[i] = (v - s.mean[i]) / sc
	}
	return out, nil
}
