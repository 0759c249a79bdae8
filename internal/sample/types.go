package sample

import "time"

// Sample 入站原始样本（不可变）
// 由 ingest 层从 MQTT 消息解析并校验后构造
type Sample struct {
	SampleID         string             `json:"sample_id"`
	SupplierID       string             `json:"supplier_id"`
	RouteID          string             `json:"route_id"`
	CollectionCenter string             `json:"collection_center"`
	Fat              *float64           `json:"fat,omitempty"`
	SNF              *float64           `json:"snf,omitempty"`
	TS               *float64           `json:"ts,omitempty"`
	Metadata         map[string]float64 `json:"-"` // 波长 → 吸光度
	Raw              map[string]any     `json:"-"` // 原始 payload（供多路径取值）
	ReceivedAt       time.Time          `json:"received_at"`
}

// TrafficCard 单个指标的红黄绿分级
type TrafficCard struct {
	Value *float64 `json:"value"`
	Risk  string   `json:"risk"` // red / yellow / green / unknown
}

// PriceQuote 定价结果
type PriceQuote struct {
	BasePrice    float64 `json:"base_price"`
	QualityScore float64 `json:"quality_score"`
	FinalPrice   float64 `json:"final_price"`
}

// AdulterationResult 掺假风险结果
type AdulterationResult struct {
	Risk          float64 `json:"adulteration_risk"`
	IsAdulterated bool    `json:"is_adulterated"`
}

// AttributionEntry 单个特征的归因值
type AttributionEntry struct {
	Feature   string  `json:"feature"`
	Value     float64 `json:"shap_value"`
	Magnitude float64 `json:"abs_shap"`
}

// AttributionRanking 某个评分目标的归因排名（最多 10 项）
type AttributionRanking struct {
	Target         string             `json:"target"` // quality-fat / quality-ts / adulteration
	Top            []AttributionEntry `json:"top_10"`
	TotalMagnitude float64            `json:"shap_score"`
}

// Alert 规则引擎产出的告警（持久化后不可变）
type Alert struct {
	Type       string         `json:"type"`
	Severity   string         `json:"severity"` // low / medium / high
	Message    string         `json:"message"`
	SampleID   string         `json:"sample_id"`
	SupplierID string         `json:"supplier_id"`
	RouteID    string         `json:"route_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Details    map[string]any `json:"details"`
}

// Enriched 富化后的样本（由单次 pipeline run 独占，dispatch 后不再修改）
type Enriched struct {
	Sample

	QualityScore float64                        `json:"quality_score"`
	Price        PriceQuote                     `json:"price"`
	TrafficCards map[string]TrafficCard         `json:"traffic_cards"`
	Adulteration AdulterationResult             `json:"adulteration_recomputed"`
	MilkType     string                         `json:"milk_type"`
	Attributions map[string]*AttributionRanking `json:"shap"`
	Alerts       []Alert                        `json:"alerts"`
	Analytics    *AnalyticsSnapshot             `json:"analytics,omitempty"`

	// StageErrors 记录各阶段的局部失败（协作方不可用等），不中断后续阶段
	StageErrors map[string]string `json:"stage_errors,omitempty"`
}

// SampleStats 最新样本的统计视图
type SampleStats struct {
	SampleID      string   `json:"sample_id"`
	Timestamp     string   `json:"timestamp"`
	Score         *float64 `json:"score"`
	Fat           *float64 `json:"fat"`
	SNF           *float64 `json:"snf"`
	TS            *float64 `json:"ts"`
	Risk          float64  `json:"adulteration_risk"`
	IsAdulterated bool     `json:"is_adulterated"`
	Price         float64  `json:"price"`
}

// GroupStats 分组（供应商/路线/批次）的滚动统计
type GroupStats struct {
	GroupID     string  `json:"group_id"`
	Name        string  `json:"name,omitempty"`
	AvgFat      float64 `json:"avg_fat"`
	AvgSNF      float64 `json:"avg_snf"`
	AvgTS       float64 `json:"avg_ts"`
	Stability   float64 `json:"stability"`
	Persistence float64 `json:"persistence"`

	// 分组特有的派生分值
	RouteScore       float64 `json:"route_score,omitempty"`
	AvgScore         float64 `json:"avg_score,omitempty"`
	AdulterationFreq float64 `json:"adulteration_freq,omitempty"`
}

// GlobalStats 全局统计
type GlobalStats struct {
	GlobalQualityIndex float64 `json:"global_quality_index"`
	TotalSamples       int     `json:"total_samples"`
}

// AnalyticsSnapshot 四级滚动统计快照
// 始终可由 HistoryEntry 序列按组键过滤后重放得到，不存在隐藏计数器
type AnalyticsSnapshot struct {
	Sample   SampleStats `json:"sample"`
	Supplier GroupStats  `json:"supplier"`
	Route    GroupStats  `json:"route"`
	Batch    GroupStats  `json:"batch"`
	Global   GlobalStats `json:"global"`
}

// 告警严重级别
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// 归因目标
const (
	TargetQualityFat   = "quality-fat"
	TargetQualityTS    = "quality-ts"
	TargetAdulteration = "adulteration"
)
