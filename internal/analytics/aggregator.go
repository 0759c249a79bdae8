package analytics

import (
	"hash/fnv"
	"math"

	"mip/qsync/internal/history"
	"mip/qsync/internal/sample"
)

// BatchSize 批次大小：每 20 行历史构成一个批次（与供应商/路线无关）
const BatchSize = 20

// supplierNames 供应商展示名的候选池
// 按 supplier_id 哈希取模选择，保证快照仍是历史序列的纯函数
var supplierNames = []string{
	"Amul", "Nandini", "Aavin", "Mother Dairy", "Gokul", "Warana",
	"Milma", "Vijaya", "Heritage", "Saras", "Parag", "Sanchi",
	"Kwality", "Verka", "Sudha", "Gujarat Cooperative", "Hatsun",
}

// Aggregator 滚动统计聚合器
// 所有快照均为账本序列按组键过滤后归约的纯函数，不维护任何可变计数器
type Aggregator struct{}

// NewAggregator 创建聚合器实例
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// BatchID 计算新样本的批次号：floor(历史行数 / 20)
func (a *Aggregator) BatchID(historyLen int) int64 {
	return int64(historyLen / BatchSize)
}

// SampleScore 单样本综合得分（0-100）
// 任一输入缺失时返回 nil
func SampleScore(fat, snf, ts *float64, risk *float64) *float64 {
	if fat == nil || snf == nil || ts == nil || risk == nil {
		return nil
	}
	score := ((*fat/6.0)*0.40 +
		(*snf/10.0)*0.30 +
		(*ts/15.0)*0.20 +
		(1-*risk/100.0)*0.10) * 100
	score = round2(score)
	return &score
}

// Snapshot 计算四级快照
// entries 为追加当前样本之前的完整账本序列；supplierID/routeID/batchID 为新样本的组键
func (a *Aggregator) Snapshot(entries []history.Entry, supplierID, routeID string, batchID int64) *sample.AnalyticsSnapshot {
	snap := &sample.AnalyticsSnapshot{
		Supplier: a.SupplierStats(entries, supplierID),
		Route:    a.RouteStats(entries, routeID),
		Batch:    a.BatchStats(entries, batchID),
		Global:   a.GlobalStats(entries),
	}

	if len(entries) > 0 {
		latest := entries[len(entries)-1]
		snap.Sample = sample.SampleStats{
			SampleID:      latest.SampleID,
			Timestamp:     latest.Timestamp.Format("2006-01-02T15:04:05"),
			Score:         latest.SampleScore,
			Fat:           latest.Fat,
			SNF:           latest.SNF,
			TS:            latest.TS,
			Risk:          latest.AdulterationRisk,
			IsAdulterated: latest.IsAdulterated,
			Price:         latest.Price,
		}
	}

	return snap
}

// SupplierStats 供应商维度统计
func (a *Aggregator) SupplierStats(entries []history.Entry, supplierID string) sample.GroupStats {
	group := filter(entries, func(e history.Entry) bool { return e.SupplierID == supplierID })

	stats := sample.GroupStats{
		GroupID:     supplierID,
		Name:        supplierNames[hashIndex(supplierID, len(supplierNames))],
		Persistence: 1.0,
	}
	if len(group) == 0 {
		return stats
	}

	fats := floats(group, func(e history.Entry) *float64 { return e.Fat })
	stats.AvgFat = round3(mean(fats))
	stats.AvgSNF = round3(mean(floats(group, func(e history.Entry) *float64 { return e.SNF })))
	stats.AvgTS = round3(mean(floats(group, func(e history.Entry) *float64 { return e.TS })))
	stats.Stability = round4(stddev(fats))
	stats.Persistence = round4(persistence(fats))
	return stats
}

// RouteStats 路线维度统计
// 路线的 stability/persistence 基于 sample_score 序列
func (a *Aggregator) RouteStats(entries []history.Entry, routeID string) sample.GroupStats {
	group := filter(entries, func(e history.Entry) bool { return e.RouteID == routeID })

	stats := sample.GroupStats{GroupID: routeID, Persistence: 1.0}
	if len(group) == 0 {
		return stats
	}

	scores := floats(group, func(e history.Entry) *float64 { return e.SampleScore })
	stats.AvgFat = round3(mean(floats(group, func(e history.Entry) *float64 { return e.Fat })))
	stats.AvgSNF = round3(mean(floats(group, func(e history.Entry) *float64 { return e.SNF })))
	stats.AvgTS = round3(mean(floats(group, func(e history.Entry) *float64 { return e.TS })))
	stats.Stability = round4(stddev(scores))
	stats.Persistence = round4(persistence(scores))
	stats.RouteScore = round2(mean(scores))
	return stats
}

// BatchStats 批次维度统计
func (a *Aggregator) BatchStats(entries []history.Entry, batchID int64) sample.GroupStats {
	group := filter(entries, func(e history.Entry) bool { return e.BatchID == batchID })

	stats := sample.GroupStats{Persistence: 1.0}
	if len(group) == 0 {
		return stats
	}

	scores := floats(group, func(e history.Entry) *float64 { return e.SampleScore })
	stats.AvgFat = round3(mean(floats(group, func(e history.Entry) *float64 { return e.Fat })))
	stats.AvgSNF = round3(mean(floats(group, func(e history.Entry) *float64 { return e.SNF })))
	stats.AvgTS = round3(mean(floats(group, func(e history.Entry) *float64 { return e.TS })))
	stats.Stability = round4(stddev(scores))
	stats.Persistence = round4(persistence(scores))
	stats.AvgScore = round2(mean(scores))

	adulterated := 0
	for _, e := range group {
		if e.IsAdulterated {
			adulterated++
		}
	}
	stats.AdulterationFreq = round2(float64(adulterated) / float64(len(group)) * 100)
	return stats
}

// GlobalStats 全局统计：所有历史行 sample_score 的均值
func (a *Aggregator) GlobalStats(entries []history.Entry) sample.GlobalStats {
	if len(entries) == 0 {
		return sample.GlobalStats{}
	}
	scores := floats(entries, func(e history.Entry) *float64 { return e.SampleScore })
	return sample.GlobalStats{
		GlobalQualityIndex: round2(mean(scores)),
		TotalSamples:       len(entries),
	}
}

// ---- 归约原语 ----

func filter(entries []history.Entry, keep func(history.Entry) bool) []history.Entry {
	out := make([]history.Entry, 0, len(entries))
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// floats 提取存在的数值序列，缺失值不参与归约
// 缺失不是 0 读数：计入 0 会把均值拉偏、给 persistence 制造虚假负差值
func floats(entries []history.Entry, get func(history.Entry) *float64) []float64 {
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		if v := get(e); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev 样本标准差（n-1 分母），不足 2 个数据点时为 0
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// persistence 相邻差值非负的占比，不足 2 个数据点时为 1.0
func persistence(xs []float64) float64 {
	if len(xs) < 2 {
		return 1.0
	}
	nonNeg := 0
	for i := 1; i < len(xs); i++ {
		if xs[i]-xs[i-1] >= 0 {
			nonNeg++
		}
	}
	return float64(nonNeg) / float64(len(xs)-1)
}

func hashIndex(s string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }
func round4(f float64) float64 { return math.Round(f*10000) / 10000 }
