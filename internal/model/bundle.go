package model

import (
	"encoding/json"
	"fmt"
	"os"
)

// bundleFile 模型包 JSON 文件结构（训练侧导出）
type bundleFile struct {
	SpectralCols  []string `json:"spectral_cols"`
	ImportantCols []string `json:"important_cols"`

	Scaler *scalerParams `json:"scaler"`
	Forest *forestParams `json:"forest"`

	// 各评分目标的归因权重（与特征向量等长）
	Explainers map[string]explainerParams `json:"explainers"`
}

type scalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type explainerParams struct {
	Weights []float64 `json:"weights"`
}

// Suite 加载完成的模型套件
type Suite struct {
	Bundle     Bundle
	Normalizer Normalizer
	Anomaly    AnomalyModel
	Explainers ExplainerFactory
}

// LoadSuite 从导出的 JSON 模型包加载模型套件
// 文件缺失或损坏返回错误，调用方可选择降级运行（掺假检测与归因不可用）
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model bundle failed: %w", err)
	}

	var bf bundleFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse model bundle failed: %w", err)
	}

	if len(bf.SpectralCols) == 0 {
		return nil, fmt.Errorf("model bundle missing spectral_cols")
	}

	suite := &Suite{
		Bundle: Bundle{
			SpectralCols:  bf.SpectralCols,
			ImportantCols: bf.ImportantCols,
		},
	}

	if bf.Scaler != nil {
		scaler, err := NewStandardScaler(bf.Scaler.Mean, bf.Scaler.Scale)
		if err != nil {
			return nil, fmt.Errorf("load scaler failed: %w", err)
		}
		suite.Normalizer = scaler
	}

	if bf.Forest != nil {
		forest, err := NewIsolationForest(bf.Forest)
		if err != nil {
			return nil, fmt.Errorf("load isolation forest failed: %w", err)
		}
		suite.Anomaly = forest
	}

	if len(bf.Explainers) > 0 {
		factory, err := newLinearFactory(bf.Explainers)
		if err != nil {
			return nil, fmt.Errorf("load explainers failed: %w", err)
		}
		suite.Explainers = factory
	}

	return suite, nil
}
