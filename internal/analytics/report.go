package analytics

import (
	"strconv"

	"mip/qsync/internal/history"
	"mip/qsync/internal/sample"
)

// FullReport 全量分析报告（查询接口用）
type FullReport struct {
	Suppliers map[string]sample.GroupStats `json:"suppliers"`
	Routes    map[string]sample.GroupStats `json:"routes"`
	Batches   map[string]sample.GroupStats `json:"batches"`
	Global    sample.GlobalStats           `json:"global"`
}

// Full 基于完整历史构建全量分析报告
// 覆盖历史中出现过的所有供应商、路线与批次
func (a *Aggregator) Full(entries []history.Entry) *FullReport {
	report := &FullReport{
		Suppliers: make(map[string]sample.GroupStats),
		Routes:    make(map[string]sample.GroupStats),
		Batches:   make(map[string]sample.GroupStats),
		Global:    a.GlobalStats(entries),
	}

	for _, e := range entries {
		if _, ok := report.Suppliers[e.SupplierID]; !ok {
			report.Suppliers[e.SupplierID] = a.SupplierStats(entries, e.SupplierID)
		}
		if _, ok := report.Routes[e.RouteID]; !ok {
			report.Routes[e.RouteID] = a.RouteStats(entries, e.RouteID)
		}
		batchKey := strconv.FormatInt(e.BatchID, 10)
		if _, ok := report.Batches[batchKey]; !ok {
			report.Batches[batchKey] = a.BatchStats(entries, e.BatchID)
		}
	}

	return report
}
