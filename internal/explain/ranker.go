package explain

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"mip/qsync/internal/model"
	"mip/qsync/internal/sample"
)

// TopK 每个目标保留的归因特征数
const TopK = 10

// Ranker 归因排名器
// 按目标惰性构造并记忆化归因引擎：首次调用承担构造成本，后续复用
type Ranker struct {
	factory model.ExplainerFactory
	bundle  model.Bundle

	mu         sync.Mutex
	explainers map[string]model.Explainer
}

// NewRanker 创建归因排名器
func NewRanker(factory model.ExplainerFactory, bundle model.Bundle) *Ranker {
	return &Ranker{
		factory:    factory,
		bundle:     bundle,
		explainers: make(map[string]model.Explainer),
	}
}

// Rank 计算指定目标对当前特征向量的归因排名
// 返回按 |归因值| 降序的前 TopK 项及全部归因值的绝对值之和
func (r *Ranker) Rank(target string, vec []float64) (*sample.AttributionRanking, error) {
	explainer, err := r.explainerFor(target)
	if err != nil {
		return nil, err
	}

	values, err := explainer.Attributions(vec)
	if err != nil {
		return nil, fmt.Errorf("compute attributions for %s failed: %w", target, err)
	}

	names := r.bundle.FeatureNames()

	entries := make([]sample.AttributionEntry, 0, len(values))
	total := 0.0
	for i, v := range values {
		name := fmt.Sprintf("f%d", i)
		if i < len(names) {
			name = names[i]
		}
		mag := math.Abs(v)
		total += mag
		entries = append(entries, sample.AttributionEntry{
			Feature:   name,
			Value:     v,
			Magnitude: mag,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Magnitude > entries[j].Magnitude
	})

	if len(entries) > TopK {
		entries = entries[:TopK]
	}

	return &sample.AttributionRanking{
		Target:         target,
		Top:            entries,
		TotalMagnitude: total,
	}, nil
}

// explainerFor 获取或构造目标对应的归因引擎（记忆化）
func (r *Ranker) explainerFor(target string) (model.Explainer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.explainers[target]; ok {
		return e, nil
	}

	if r.factory == nil {
		return nil, fmt.Errorf("explainer factory not available")
	}

	e, err := r.factory.NewExplainer(target)
	if err != nil {
		return nil, fmt.Errorf("build explainer for %s failed: %w", target, err)
	}

	r.explainers[target] = e
	return e, nil
}
