package enrich

// FeatureExtractor 特征提取器
// 将样本的波长元数据映射为与模型期望列顺序一致的数值向量
type FeatureExtractor struct{}

// NewFeatureExtractor 创建特征提取器实例
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract 按期望列顺序提取特征向量
// 缺失的列以 0.0 填充，调用方需将 0 理解为"未测量"而非真实读数。
// 永不失败。
func (e *FeatureExtractor) Extract(metadata map[string]float64, expectedCols []string) []float64 {
	vec := make([]float64, len(expectedCols))
	if metadata == nil {
		return vec
	}

	for i, col := range expectedCols {
		if v, ok := metadata[col]; ok {
			vec[i] = v
		}
	}

	return vec
}
