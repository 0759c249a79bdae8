package model

// 本包定义外部评分模型的边界接口
// 模型本体（质量回归、异常检测、归因引擎）作为不透明协作方消费，
// 训练与光谱预处理算法均不在本系统范围内。

// Normalizer 光谱归一化（黑盒预处理）
// 输入输出均为等长向量，具体算法由模型包提供方决定
type Normalizer interface {
	Normalize(vec []float64) ([]float64, error)
}

// AnomalyModel 异常检测模型
// 给定特征向量返回实数异常得分（越小越异常）
type AnomalyModel interface {
	DecisionFunction(vec []float64) (float64, error)
}

// Explainer 归因引擎：对当前特征向量计算逐特征归因值
type Explainer interface {
	Attributions(vec []float64) ([]float64, error)
}

// ExplainerFactory 按评分目标构造归因引擎
// 构造开销较大，由调用方按 target 记忆化
type ExplainerFactory interface {
	NewExplainer(target string) (Explainer, error)
}

// Bundle 模型包元信息：期望的光谱列与辅助标量列
type Bundle struct {
	SpectralCols  []string
	ImportantCols []string
}

// FeatureNames 归因结果对应的完整特征名序列（光谱列在前，辅助列在后）
func (b Bundle) FeatureNames() []string {
	names := make([]string, 0, len(b.SpectralCols)+len(b.ImportantCols))
	names = append(names, b.SpectralCols...)
	names = append(names, b.ImportantCols...)
	return names
}
