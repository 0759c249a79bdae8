package model

import (
	"errors"
	"testing"
)

func TestRemapRisk(t *testing.T) {
	tests := []struct {
		name string
		raw  float64
		want float64
	}{
		{"neutral-score", 0.0, 100.0},
		{"threshold-score", 1.0, 50.0},
		{"normal-sample", 1.5, 25.0},
		{"clamps-low", 2.5, 0.0},
		{"clamps-high", -2.0, 100.0},
		{"mildly-anomalous", 0.5, 75.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RemapRisk(tt.raw); got != tt.want {
				t.Errorf("RemapRisk(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

type stubModel struct {
	score float64
	err   error
	seen  []float64
}

func (m *stubModel) DecisionFunction(vec []float64) (float64, error) {
	m.seen = append([]float64(nil), vec...)
	return m.score, m.err
}

func TestScoreModelUnavailable(t *testing.T) {
	s := NewAnomalyScorer(nil, nil, Bundle{})

	_, err := s.Score([]float64{1, 2}, nil)
	if !errors.Is(err, ErrModelUnavailable) {
		t.Errorf("err = %v, want ErrModelUnavailable", err)
	}
}

func TestScoreAppendsImportantCols(t *testing.T) {
	m := &stubModel{score: 0.4}
	s := NewAnomalyScorer(m, nil, Bundle{
		SpectralCols:  []string{"900", "1100"},
		ImportantCols: []string{"fat_predicted", "snf"},
	})

	raw := map[string]any{
		"inference": map[string]any{"fat_predicted": 4.2},
	}

	res, err := s.Score([]float64{0.5, 0.6}, raw)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}

	// 光谱向量 + 辅助列（snf 缺失填 0）
	want := []float64{0.5, 0.6, 4.2, 0}
	if len(m.seen) != len(want) {
		t.Fatalf("model saw %d features, want %d", len(m.seen), len(want))
	}
	for i := range want {
		if m.seen[i] != want[i] {
			t.Errorf("feature[%d] = %v, want %v", i, m.seen[i], want[i])
		}
	}

	// (1 - 0.4)*50 + 50 = 80
	if res.Risk != 80.0 {
		t.Errorf("Risk = %v, want 80.0", res.Risk)
	}
	if !res.IsAdulterated {
		t.Error("risk 80 should flag adulteration")
	}
}

func TestScoreFlagBoundary(t *testing.T) {
	// raw=1.0 → risk 50，不越过 >50 的判定线
	m := &stubModel{score: 1.0}
	s := NewAnomalyScorer(m, nil, Bundle{SpectralCols: []string{"900"}})

	res, err := s.Score([]float64{0.1}, nil)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.Risk != 50.0 {
		t.Errorf("Risk = %v, want 50.0", res.Risk)
	}
	if res.IsAdulterated {
		t.Error("risk exactly 50 must not flag adulteration")
	}
}

func TestScoreNormalizerApplied(t *testing.T) {
	m := &stubModel{score: 1.0}
	scaler, err := NewStandardScaler([]float64{1.0}, []float64{2.0})
	if err != nil {
		t.Fatalf("NewStandardScaler: %v", err)
	}

	s := NewAnomalyScorer(m, scaler, Bundle{SpectralCols: []string{"900"}})
	if _, err := s.Score([]float64{5.0}, nil); err != nil {
		t.Fatalf("Score: %v", err)
	}

	// (5 - 1) / 2 = 2
	if m.seen[0] != 2.0 {
		t.Errorf("normalized feature = %v, want 2.0", m.seen[0])
	}
}

func TestScoreModelError(t *testing.T) {
	m := &stubModel{err: errors.New("broken")}
	s := NewAnomalyScorer(m, nil, Bundle{SpectralCols: []string{"900"}})

	if _, err := s.Score([]float64{0.1}, nil); err == nil {
		t.Error("model failure should surface an error")
	}
}
