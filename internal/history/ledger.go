package history

import (
	"context"
	"time"
)

// Entry 质量历史账本的一行（append-only，落账后不可变）
// 滚动统计字段记录的是该样本到达时刻（追加前）系统所见的状态
type Entry struct {
	EntryID   string    `json:"entry_id" gorm:"column:entry_id;primaryKey"`
	Seq       int64     `json:"seq" gorm:"column:seq;autoIncrement;uniqueIndex"`
	Timestamp time.Time `json:"timestamp" gorm:"column:timestamp"`
	SampleID  string    `json:"sample_id" gorm:"column:sample_id;uniqueIndex"`

	SupplierID       string `json:"supplier_id" gorm:"column:supplier_id;index"`
	RouteID          string `json:"route_id" gorm:"column:route_id;index"`
	CollectionCenter string `json:"collection_center" gorm:"column:collection_center"`

	Fat *float64 `json:"fat" gorm:"column:fat"`
	SNF *float64 `json:"snf" gorm:"column:snf"`
	TS  *float64 `json:"ts" gorm:"column:ts"`

	AdulterationRisk float64 `json:"adulteration_risk" gorm:"column:adulteration_risk"`
	IsAdulterated    bool    `json:"is_adulterated" gorm:"column:is_adulterated"`
	Price            float64 `json:"price" gorm:"column:price"`

	BatchID     int64    `json:"batch_id" gorm:"column:batch_id;index"`
	SampleScore *float64 `json:"sample_score" gorm:"column:sample_score"`

	// 追加时刻的供应商滚动统计
	SupplierAvgFat      float64 `json:"supplier_avg_fat" gorm:"column:supplier_avg_fat"`
	SupplierAvgSNF      float64 `json:"supplier_avg_snf" gorm:"column:supplier_avg_snf"`
	SupplierAvgTS       float64 `json:"supplier_avg_ts" gorm:"column:supplier_avg_ts"`
	SupplierStability   float64 `json:"supplier_stability" gorm:"column:supplier_stability"`
	SupplierPersistence float64 `json:"supplier_persistence" gorm:"column:supplier_persistence"`

	// 追加时刻的路线/批次/全局统计
	RouteScore            float64 `json:"route_score" gorm:"column:route_score"`
	BatchAvgScore         float64 `json:"batch_avg_score" gorm:"column:batch_avg_score"`
	BatchAdulterationFreq float64 `json:"batch_adulteration_freq" gorm:"column:batch_adulteration_freq"`
	GlobalQualityIndex    float64 `json:"global_quality_index" gorm:"column:global_quality_index"`
}

// TableName gorm 表名
func (Entry) TableName() string {
	return "quality_history"
}

// Ledger 质量历史账本（append + query 协作方）
// 追加顺序即为账本顺序；聚合器以此为唯一事实来源
type Ledger interface {
	// Append 追加一行（entry_id / sample_id 唯一）
	Append(ctx context.Context, entry *Entry) error

	// All 按追加顺序返回全部行
	All(ctx context.Context) ([]Entry, error)

	// Recent 按追加顺序返回最近 n 行
	Recent(ctx context.Context, n int) ([]Entry, error)

	// Len 当前行数
	Len(ctx context.Context) (int, error)
}
