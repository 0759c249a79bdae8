package analytics

import (
	"math"
	"testing"
	"time"

	"mip/qsync/internal/history"
)

func fp(v float64) *float64 { return &v }

func entry(sampleID, supplierID, routeID string, batchID int64, fat, score *float64) history.Entry {
	return history.Entry{
		EntryID:     "e-" + sampleID,
		SampleID:    sampleID,
		SupplierID:  supplierID,
		RouteID:     routeID,
		BatchID:     batchID,
		Timestamp:   time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Fat:         fat,
		SampleScore: score,
	}
}

func TestBatchID(t *testing.T) {
	a := NewAggregator()

	tests := []struct {
		historyLen int
		want       int64
	}{
		{0, 0},
		{19, 0},
		{20, 1},
		{39, 1},
		{40, 2},
	}

	for _, tt := range tests {
		if got := a.BatchID(tt.historyLen); got != tt.want {
			t.Errorf("BatchID(%d) = %d, want %d", tt.historyLen, got, tt.want)
		}
	}
}

func TestSampleScore(t *testing.T) {
	t.Run("complete-inputs", func(t *testing.T) {
		got := SampleScore(fp(4.2), fp(8.5), fp(12.6), fp(30.0))
		if got == nil {
			t.Fatal("score should be computed")
		}
		want := ((4.2/6.0)*0.40 + (8.5/10.0)*0.30 + (12.6/15.0)*0.20 + (1-30.0/100.0)*0.10) * 100
		want = math.Round(want*100) / 100
		if *got != want {
			t.Errorf("SampleScore = %v, want %v", *got, want)
		}
	})

	t.Run("any-missing-input-nils-the-score", func(t *testing.T) {
		if got := SampleScore(nil, fp(8.5), fp(12.6), fp(30.0)); got != nil {
			t.Errorf("missing fat should give nil, got %v", *got)
		}
		if got := SampleScore(fp(4.2), fp(8.5), fp(12.6), nil); got != nil {
			t.Errorf("missing risk should give nil, got %v", *got)
		}
	})
}

func TestPersistence(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"empty", nil, 1.0},
		{"single", []float64{4.0}, 1.0},
		// 4 组相邻差值中 3 组非负
		{"mixed-run", []float64{4.0, 4.2, 3.9, 4.5, 4.5}, 0.75},
		{"monotonic-up", []float64{1, 2, 3}, 1.0},
		{"monotonic-down", []float64{3, 2, 1}, 0.0},
		{"flat-counts-as-non-negative", []float64{2, 2, 2}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := persistence(tt.xs); got != tt.want {
				t.Errorf("persistence(%v) = %v, want %v", tt.xs, got, tt.want)
			}
		})
	}
}

func TestStddev(t *testing.T) {
	if got := stddev([]float64{5.0}); got != 0 {
		t.Errorf("single point stddev = %v, want 0", got)
	}
	// 样本标准差（n-1 分母）：{2,4,4,4,5,5,7,9} → ~2.138
	got := stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if math.Abs(got-2.1381) > 0.001 {
		t.Errorf("stddev = %v, want ~2.1381", got)
	}
}

func TestSupplierStats(t *testing.T) {
	a := NewAggregator()

	entries := []history.Entry{
		entry("s1", "SUP-1", "R-1", 0, fp(4.0), fp(70)),
		entry("s2", "SUP-2", "R-1", 0, fp(9.9), fp(10)),
		entry("s3", "SUP-1", "R-2", 0, fp(4.2), fp(72)),
		entry("s4", "SUP-1", "R-1", 0, fp(3.9), fp(68)),
	}

	stats := a.SupplierStats(entries, "SUP-1")

	if stats.GroupID != "SUP-1" {
		t.Errorf("GroupID = %q", stats.GroupID)
	}
	if stats.Name == "" {
		t.Error("display name should be assigned")
	}
	wantAvg := math.Round((4.0+4.2+3.9)/3*1000) / 1000
	if stats.AvgFat != wantAvg {
		t.Errorf("AvgFat = %v, want %v", stats.AvgFat, wantAvg)
	}
	// fat 序列 [4.0, 4.2, 3.9]：2 组差值中 1 组非负
	if stats.Persistence != 0.5 {
		t.Errorf("Persistence = %v, want 0.5", stats.Persistence)
	}

	t.Run("missing-fat-skipped", func(t *testing.T) {
		// 缺失读数不计入归约：否则一条 nil 就把均值腰斩、
		// 制造一组虚假的负差值拉低 persistence
		entries := []history.Entry{
			entry("s1", "SUP-9", "R-1", 0, fp(4.0), fp(70)),
			entry("s2", "SUP-9", "R-1", 0, nil, nil),
		}
		stats := a.SupplierStats(entries, "SUP-9")
		if stats.AvgFat != 4.0 {
			t.Errorf("AvgFat = %v, want 4.0", stats.AvgFat)
		}
		if stats.Stability != 0 {
			t.Errorf("Stability = %v, want 0", stats.Stability)
		}
		if stats.Persistence != 1.0 {
			t.Errorf("Persistence = %v, want 1.0", stats.Persistence)
		}
	})

	t.Run("deterministic-name", func(t *testing.T) {
		again := a.SupplierStats(entries, "SUP-1")
		if again.Name != stats.Name {
			t.Errorf("name changed between calls: %q vs %q", again.Name, stats.Name)
		}
	})

	t.Run("unseen-supplier", func(t *testing.T) {
		stats := a.SupplierStats(entries, "SUP-404")
		if stats.AvgFat != 0 || stats.Stability != 0 {
			t.Error("unseen supplier should have zero averages")
		}
		if stats.Persistence != 1.0 {
			t.Errorf("empty group persistence = %v, want 1.0", stats.Persistence)
		}
	})
}

func TestRouteStats(t *testing.T) {
	a := NewAggregator()

	entries := []history.Entry{
		entry("s1", "SUP-1", "R-1", 0, fp(4.0), fp(70)),
		entry("s2", "SUP-2", "R-1", 0, fp(4.4), fp(80)),
		entry("s3", "SUP-1", "R-2", 0, fp(4.2), fp(10)),
	}

	stats := a.RouteStats(entries, "R-1")

	if stats.RouteScore != 75.0 {
		t.Errorf("RouteScore = %v, want 75.0", stats.RouteScore)
	}
	// 路线的 persistence 基于 score 序列 [70, 80]
	if stats.Persistence != 1.0 {
		t.Errorf("Persistence = %v, want 1.0", stats.Persistence)
	}
}

func TestBatchStats(t *testing.T) {
	a := NewAggregator()

	e1 := entry("s1", "SUP-1", "R-1", 0, fp(4.0), fp(70))
	e1.IsAdulterated = true
	e2 := entry("s2", "SUP-2", "R-1", 0, fp(4.4), fp(60))
	e3 := entry("s3", "SUP-1", "R-1", 1, fp(4.2), fp(90))

	stats := a.BatchStats([]history.Entry{e1, e2, e3}, 0)

	if stats.AvgScore != 65.0 {
		t.Errorf("AvgScore = %v, want 65.0", stats.AvgScore)
	}
	if stats.AdulterationFreq != 50.0 {
		t.Errorf("AdulterationFreq = %v, want 50.0", stats.AdulterationFreq)
	}
}

func TestGlobalStats(t *testing.T) {
	a := NewAggregator()

	t.Run("empty-history", func(t *testing.T) {
		stats := a.GlobalStats(nil)
		if stats.GlobalQualityIndex != 0 || stats.TotalSamples != 0 {
			t.Errorf("empty history should give zero stats, got %+v", stats)
		}
	})

	t.Run("replay-equivalence", func(t *testing.T) {
		// 同一序列的两次归约必须产出相同结果
		entries := []history.Entry{
			entry("s1", "SUP-1", "R-1", 0, fp(4.0), fp(70)),
			entry("s2", "SUP-2", "R-1", 0, fp(4.4), fp(62.5)),
			entry("s3", "SUP-1", "R-2", 0, nil, nil),
		}
		first := a.GlobalStats(entries)
		second := a.GlobalStats(entries)
		if first != second {
			t.Errorf("replay mismatch: %+v vs %+v", first, second)
		}
		if first.TotalSamples != 3 {
			t.Errorf("TotalSamples = %d, want 3", first.TotalSamples)
		}
		// 缺失的 score 不参与均值
		want := math.Round((70+62.5)/2*100) / 100
		if first.GlobalQualityIndex != want {
			t.Errorf("GlobalQualityIndex = %v, want %v", first.GlobalQualityIndex, want)
		}
	})
}

func TestFullReport(t *testing.T) {
	a := NewAggregator()

	entries := []history.Entry{
		entry("s1", "SUP-1", "R-1", 0, fp(4.0), fp(70)),
		entry("s2", "SUP-2", "R-2", 0, fp(4.4), fp(80)),
		entry("s3", "SUP-1", "R-1", 1, fp(4.2), fp(75)),
	}

	report := a.Full(entries)

	if len(report.Suppliers) != 2 {
		t.Errorf("suppliers = %d, want 2", len(report.Suppliers))
	}
	if len(report.Routes) != 2 {
		t.Errorf("routes = %d, want 2", len(report.Routes))
	}
	if len(report.Batches) != 2 {
		t.Errorf("batches = %d, want 2", len(report.Batches))
	}
	if report.Global.TotalSamples != 3 {
		t.Errorf("TotalSamples = %d, want 3", report.Global.TotalSamples)
	}
	if _, ok := report.Batches["1"]; !ok {
		t.Error("batch key should be the decimal batch id")
	}
}
