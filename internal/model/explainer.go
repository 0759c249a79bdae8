package model

import "fmt"

// linearExplainer 线性归因引擎（实现 Explainer 接口）
// 训练侧为每个评分目标导出一组与特征向量等长的权重，
// 单特征归因值 = 权重 × 特征值
type linearExplainer struct {
	weights []float64
}

// Attributions 计算逐特征归因值
func (e *linearExplainer) Attributions(vec []float64) ([]float64, error) {
	if len(vec) != len(e.weights) {
		return nil, fmt.Errorf("vector length %d does not match weights %d", len(vec), len(e.weights))
	}

	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = e.weights[i] * v
	}
	return out, nil
}

// linearFactory 按目标分发归因权重（实现 ExplainerFactory 接口）
type linearFactory struct {
	targets map[string][]float64
}

func newLinearFactory(params map[string]explainerParams) (*linearFactory, error) {
	targets := make(map[string][]float64, len(params))
	for target, p := range params {
		if len(p.Weights) == 0 {
			return nil, fmt.Errorf("explainer %s has no weights", target)
		}
		targets[target] = p.Weights
	}
	return &linearFactory{targets: targets}, nil
}

// NewExplainer 构造指定目标的归因引擎
func (f *linearFactory) NewExplainer(target string) (Explainer, error) {
	weights, ok := f.targets[target]
	if !ok {
		return nil, fmt.Errorf("no explainer weights for target %s", target)
	}
	return &linearExplainer{weights: weights}, nil
}
