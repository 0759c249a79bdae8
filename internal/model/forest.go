package model

import (
	"fmt"
	"math"
)

// forestParams 隔离森林 JSON 导出结构
type forestParams struct {
	// 训练时每棵树的采样数（路径长度归一化用）
	SampleSize int `json:"sample_size"`

	Trees []forestTree `json:"trees"`
}

// forestTree 单棵隔离树（节点平铺存储，根节点下标 0）
type forestTree struct {
	Nodes []forestNode `json:"nodes"`
}

// forestNode 隔离树节点
// Left < 0 表示叶子节点，Size 为落入叶子的训练样本数
type forestNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Size      int     `json:"size"`
}

// IsolationForest 隔离森林推理（实现 AnomalyModel 接口）
// 得分语义与训练侧一致：正常样本得分大于 0，异常样本小于 0
type IsolationForest struct {
	trees      []forestTree
	sampleSize int
}

// NewIsolationForest 从导出参数构建隔离森林
func NewIsolationForest(params *forestParams) (*IsolationForest, error) {
	if len(params.Trees) == 0 {
		return nil, fmt.Errorf("forest has no trees")
	}
	if params.SampleSize < 2 {
		return nil, fmt.Errorf("invalid forest sample_size: %d", params.SampleSize)
	}

	for i, tree := range params.Trees {
		if len(tree.Nodes) == 0 {
			return nil, fmt.Errorf("tree %d has no nodes", i)
		}
	}

	return &IsolationForest{
		trees:      params.Trees,
		sampleSize: params.SampleSize,
	}, nil
}

// DecisionFunction 计算异常得分
// 平均路径长度越短越异常；0.5 - 2^(-E[h]/c(n)) 使阈值落在 0
func (f *IsolationForest) DecisionFunction(vec []float64) (float64, error) {
	var total float64
	for i := range f.trees {
		depth, err := pathLength(&f.trees[i], vec)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		total += depth
	}

	avgPath := total / float64(len(f.trees))
	anomalyScore := math.Pow(2, -avgPath/avgPathLength(f.sampleSize))

	return 0.5 - anomalyScore, nil
}

// pathLength 从根走到叶子的路径长度（叶子样本数的期望深度作补偿）
func pathLength(tree *forestTree, vec []float64) (float64, error) {
	idx := 0
	depth := 0.0

	for {
		node := tree.Nodes[idx]

		// 叶子节点
		if node.Left < 0 {
			return depth + avgPathLength(node.Size), nil
		}

		if node.Feature < 0 || node.Feature >= len(vec) {
			return 0, fmt.Errorf("feature index %d out of range %d", node.Feature, len(vec))
		}
		if node.Left >= len(tree.Nodes) || node.Right >= len(tree.Nodes) {
			return 0, fmt.Errorf("child index out of range at node %d", idx)
		}

		if vec[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
		depth++
	}
}

// avgPathLength BST 失败查找的期望路径长度 c(n)
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	// 2H(n-1) - 2(n-1)/n，H 用欧拉常数近似
	return 2.0*(math.Log(fn-1)+0.5772156649) - 2.0*(fn-1)/fn
}
