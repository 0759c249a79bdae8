package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mip/qsync/internal/alerts"
	"mip/qsync/internal/analytics"
	"mip/qsync/internal/dispatch"
	"mip/qsync/internal/enrich"
	"mip/qsync/internal/explain"
	"mip/qsync/internal/history"
	"mip/qsync/internal/model"
	"mip/qsync/internal/sample"
	"mip/qsync/pkg/errorutil"
	"mip/qsync/pkg/logger"
)

// Notifier 处理完成通知边界（Redis 发布）
type Notifier interface {
	NotifyProcessed(ctx context.Context, sampleID, supplierID string, alertCount int) error
}

// Pipeline 单样本富化流水线
// 各阶段严格串行：聚合器必须在当前样本追加前读历史，规则引擎要读聚合器刚产出的快照
type Pipeline struct {
	extractor  *enrich.FeatureExtractor
	scorer     *enrich.QualityScorer
	classifier *enrich.RiskClassifier
	anomaly    *model.AnomalyScorer
	ranker     *explain.Ranker
	shapCache  *explain.Cache
	engine     *alerts.Engine
	aggregator *analytics.Aggregator
	ledger     history.Ledger
	dispatcher *dispatch.Dispatcher
	notifier   Notifier
	latest     *LatestStore
	logger     logger.Logger

	// ledgerMu 序列化"读历史 → 算快照 → 追加"临界区
	// 多个入站流（MQTT + 手工注入接口）共享同一账本
	ledgerMu sync.Mutex
}

// Deps 流水线依赖
type Deps struct {
	Extractor  *enrich.FeatureExtractor
	Scorer     *enrich.QualityScorer
	Classifier *enrich.RiskClassifier
	Anomaly    *model.AnomalyScorer
	Ranker     *explain.Ranker
	ShapCache  *explain.Cache
	Engine     *alerts.Engine
	Aggregator *analytics.Aggregator
	Ledger     history.Ledger
	Dispatcher *dispatch.Dispatcher
	Notifier   Notifier
	Latest     *LatestStore
	Logger     logger.Logger
}

// New 创建流水线
func New(deps Deps) *Pipeline {
	return &Pipeline{
		extractor:  deps.Extractor,
		scorer:     deps.Scorer,
		classifier: deps.Classifier,
		anomaly:    deps.Anomaly,
		ranker:     deps.Ranker,
		shapCache:  deps.ShapCache,
		engine:     deps.Engine,
		aggregator: deps.Aggregator,
		ledger:     deps.Ledger,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		latest:     deps.Latest,
		logger:     deps.Logger,
	}
}

// Latest 查询端只读访问器
func (p *Pipeline) Latest() *LatestStore {
	return p.latest
}

// ShapCache 归因历史缓存（查询端使用）
func (p *Pipeline) ShapCache() *explain.Cache {
	return p.shapCache
}

// Ledger 历史账本（查询端使用）
func (p *Pipeline) Ledger() history.Ledger {
	return p.ledger
}

// Process 执行一次完整的流水线 run
// 协作方不可用只会在 StageErrors 留痕，不中断后续阶段；
// 只有账本追加失败才作为整体错误返回。
func (p *Pipeline) Process(ctx context.Context, s *sample.Sample) (*sample.Enriched, error) {
	if s.SampleID == "" {
		s.SampleID = uuid.New().String()
	}
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = time.Now()
	}

	enriched := &sample.Enriched{
		Sample:       *s,
		Attributions: make(map[string]*sample.AttributionRanking),
		StageErrors:  make(map[string]string),
	}

	// 1. 特征提取（永不失败，缺失填 0）
	bundle := p.anomaly.Bundle()
	spectral := p.extractor.Extract(s.Metadata, bundle.SpectralCols)

	// 2. 质量得分与定价
	enriched.Price = p.scorer.Quote(s.Fat, s.SNF, s.TS)
	enriched.QualityScore = enriched.Price.QualityScore

	// 3. 红黄绿卡
	enriched.TrafficCards = p.classifier.TrafficCards(s.Fat, s.SNF, s.TS)

	// 4. 奶源类型
	enriched.MilkType = enrich.ClassifyMilkType(s.Fat, s.SNF)

	// 5. 组装模型特征向量（归一化光谱 + 辅助标量，掺假检测与归因共用）
	featVec, featErr := p.anomaly.FeatureVector(spectral, s.Raw)
	if featErr != nil {
		p.logger.Warnf(ctx, "[Pipeline] assemble feature vector failed: %v", featErr)
	}

	// 6. 掺假风险（外部模型适配器）
	adulterationOK := false
	if featErr != nil {
		enriched.StageErrors["adulteration"] = featErr.Error()
	} else if result, err := p.anomaly.ScoreVector(featVec); err != nil {
		enriched.StageErrors["adulteration"] = err.Error()
		p.logger.Warnf(ctx, "[Pipeline] anomaly scoring failed: %v", err)
	} else {
		enriched.Adulteration = result
		adulterationOK = true
	}

	// 7. 三个目标的归因排名（权重与完整特征向量等长）
	for _, target := range []string{sample.TargetQualityFat, sample.TargetQualityTS, sample.TargetAdulteration} {
		if featErr != nil {
			enriched.StageErrors["shap_"+target] = featErr.Error()
			continue
		}
		ranking, err := p.ranker.Rank(target, featVec)
		if err != nil {
			enriched.StageErrors["shap_"+target] = err.Error()
			p.logger.Warnf(ctx, "[Pipeline] attribution ranking for %s failed: %v", target, err)
			continue
		}
		enriched.Attributions[target] = ranking
	}
	p.shapCache.Push(s.SampleID, enriched.Attributions)

	// 8. 临界区：读历史 → 算追加前快照 → 落账
	snap, err := p.appendWithSnapshot(ctx, enriched, adulterationOK)
	if err != nil {
		enriched.StageErrors["history"] = err.Error()
		p.logger.Errorf(ctx, "[Pipeline] append history failed: %v", err)
		return enriched, errorutil.Retriable("append history failed: " + err.Error())
	}
	enriched.Analytics = snap

	// 9. 规则求值（样本此刻已落账，告警只引用已持久化样本）
	enriched.Alerts = p.engine.Evaluate(ctx, enriched, snap)
	if len(enriched.Alerts) > 0 {
		p.logger.Infof(ctx, "[Pipeline] %d alerts triggered for sample %s", len(enriched.Alerts), s.SampleID)
	}

	// 10. 发布最新样本视图
	p.latest.set(enriched)

	return enriched, nil
}

// appendWithSnapshot 账本临界区
// 两个并发追加若不互斥，后者会基于陈旧历史算快照或打乱账本顺序
func (p *Pipeline) appendWithSnapshot(ctx context.Context, enriched *sample.Enriched, adulterationOK bool) (*sample.AnalyticsSnapshot, error) {
	p.ledgerMu.Lock()
	defer p.ledgerMu.Unlock()

	entries, err := p.ledger.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history failed: %w", err)
	}

	batchID := p.aggregator.BatchID(len(entries))
	snap := p.aggregator.Snapshot(entries, enriched.SupplierID, enriched.RouteID, batchID)

	var riskPtr *float64
	if adulterationOK {
		risk := enriched.Adulteration.Risk
		riskPtr = &risk
	}

	entry := &history.Entry{
		EntryID:          uuid.New().String(),
		Timestamp:        enriched.ReceivedAt,
		SampleID:         enriched.SampleID,
		SupplierID:       enriched.SupplierID,
		RouteID:          enriched.RouteID,
		CollectionCenter: enriched.CollectionCenter,
		Fat:              enriched.Fat,
		SNF:              enriched.SNF,
		TS:               enriched.TS,
		AdulterationRisk: enriched.Adulteration.Risk,
		IsAdulterated:    enriched.Adulteration.IsAdulterated,
		Price:            enriched.Price.FinalPrice,
		BatchID:          batchID,
		SampleScore:      analytics.SampleScore(enriched.Fat, enriched.SNF, enriched.TS, riskPtr),

		// 落账行记录样本到达时刻系统所见的滚动统计
		SupplierAvgFat:        snap.Supplier.AvgFat,
		SupplierAvgSNF:        snap.Supplier.AvgSNF,
		SupplierAvgTS:         snap.Supplier.AvgTS,
		SupplierStability:     snap.Supplier.Stability,
		SupplierPersistence:   snap.Supplier.Persistence,
		RouteScore:            snap.Route.RouteScore,
		BatchAvgScore:         snap.Batch.AvgScore,
		BatchAdulterationFreq: snap.Batch.AdulterationFreq,
		GlobalQualityIndex:    snap.Global.GlobalQualityIndex,
	}

	if err := p.ledger.Append(ctx, entry); err != nil {
		return nil, err
	}

	p.logger.Infof(ctx, "[Pipeline] saved in history: %s (batch %d)", entry.EntryID, batchID)
	return snap, nil
}

// Forward 下游推送 + 处理完成通知
// 相对 ACK 路径 fire-and-continue：ingest 在独立 goroutine 调用，
// 推送阻塞（最长 超时×尝试次数）期间不持有账本锁。
func (p *Pipeline) Forward(ctx context.Context, enriched *sample.Enriched) *dispatch.Result {
	payload := BuildPayload(enriched)

	result := p.dispatcher.Dispatch(ctx, enriched.SampleID, payload)

	if p.notifier != nil {
		if err := p.notifier.NotifyProcessed(ctx, enriched.SampleID, enriched.SupplierID, len(enriched.Alerts)); err != nil {
			p.logger.Warnf(ctx, "[Pipeline] notify processed failed: %v", err)
		}
	}

	return result
}

// Payload 下游组合 payload
type Payload struct {
	Sample    *sample.Enriched                      `json:"sample"`
	Quality   PayloadQuality                        `json:"quality"`
	Shap      map[string]*sample.AttributionRanking `json:"shap"`
	Analytics *sample.AnalyticsSnapshot             `json:"analytics"`
	Timestamp string                                `json:"timestamp"`
}

// PayloadQuality 质量块
type PayloadQuality struct {
	TrafficCards map[string]sample.TrafficCard `json:"traffic_cards"`
	Price        sample.PriceQuote             `json:"price"`
	Adulteration sample.AdulterationResult     `json:"adulteration_recomputed"`
}

// BuildPayload 构建下游推送 payload（已定稿的快照，推送期间不变）
func BuildPayload(enriched *sample.Enriched) *Payload {
	return &Payload{
		Sample: enriched,
		Quality: PayloadQuality{
			TrafficCards: enriched.TrafficCards,
			Price:        enriched.Price,
			Adulteration: enriched.Adulteration,
		},
		Shap:      enriched.Attributions,
		Analytics: enriched.Analytics,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}
