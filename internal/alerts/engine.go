package alerts

import (
	"context"
	"fmt"
	"time"

	"mip/qsync/internal/enrich"
	"mip/qsync/internal/sample"
	"mip/qsync/pkg/logger"
)

// 规则标识（按规则表顺序）
const (
	TypeCriticalAdulteration      = "CRITICAL_ADULTERATION"
	TypeLowFat                    = "LOW_FAT"
	TypeLowSNF                    = "LOW_SNF"
	TypeLowTS                     = "LOW_TS"
	TypeSupplierStabilityDrop     = "SUPPLIER_STABILITY_DROP"
	TypeSupplierPersistenceLow    = "SUPPLIER_PERSISTENCE_LOW"
	TypeRouteQualityLow           = "ROUTE_QUALITY_LOW"
	TypeHighBatchAdulterationRate = "HIGH_BATCH_ADULTERATION_RATE"
	TypeMilkTypeUnknown           = "MILK_TYPE_UNKNOWN"
)

// Store 告警持久化边界
type Store interface {
	Insert(ctx context.Context, alert *sample.Alert) error
}

// Engine 告警规则引擎
// 规则相互独立、按固定顺序求值，所有命中的规则都会触发（非首次命中即停）
type Engine struct {
	store  Store
	logger logger.Logger
}

// NewEngine 创建规则引擎
// store 为 nil 时仅返回告警，不做持久化
func NewEngine(store Store, log logger.Logger) *Engine {
	return &Engine{store: store, logger: log}
}

// Evaluate 对富化样本与当前统计快照求值
// 引擎内部异常降级为"零告警"，绝不向上传播
func (e *Engine) Evaluate(ctx context.Context, enriched *sample.Enriched, snap *sample.AnalyticsSnapshot) (out []sample.Alert) {
	defer func() {
		if r := recover(); r != nil {
			if e.logger != nil {
				e.logger.Errorf(ctx, "[AlertEngine] panic recovered, degrading to zero alerts: %v", r)
			}
			out = nil
		}
	}()

	return e.evaluate(ctx, enriched, snap)
}

func (e *Engine) evaluate(ctx context.Context, enriched *sample.Enriched, snap *sample.AnalyticsSnapshot) []sample.Alert {
	alerts := make([]sample.Alert, 0, 4)

	// 取值优先级：直接字段 → inference 块 → 默认 0
	fat := numOrZero(enriched.Fat, enriched.Raw, "fat_predicted", "fat", "Fat_content")
	snf := numOrZero(enriched.SNF, enriched.Raw, "snf")
	ts := numOrZero(enriched.TS, enriched.Raw, "total_solids_predicted", "total_solids", "Total_Solids")

	risk := enriched.Adulteration.Risk
	isAdulterated := enriched.Adulteration.IsAdulterated

	// 快照缺失时按"无风险"默认值兜底
	stability, persistenceVal := 1.0, 1.0
	routeScore := 100.0
	batchFreq := 0.0
	if snap != nil {
		stability = snap.Supplier.Stability
		persistenceVal = snap.Supplier.Persistence
		routeScore = snap.Route.RouteScore
		batchFreq = snap.Batch.AdulterationFreq
	}

	fire := func(alertType, severity, message string, details map[string]any) {
		alerts = append(alerts, e.buildAlert(ctx, alertType, severity, message, enriched, fat, snf, ts, details))
	}

	if risk > 80 || isAdulterated {
		fire(TypeCriticalAdulteration, sample.SeverityHigh,
			fmt.Sprintf("Adulteration risk is %.2f%%", risk),
			map[string]any{"adulteration_risk": risk})
	}

	if fat < 2.5 {
		fire(TypeLowFat, sample.SeverityMedium,
			fmt.Sprintf("Fat content too low: %.2f", fat),
			map[string]any{"fat": fat})
	}

	if snf < 8.0 {
		fire(TypeLowSNF, sample.SeverityMedium,
			fmt.Sprintf("SNF below safe limit: %.2f", snf),
			map[string]any{"snf": snf})
	}

	if ts < 11.5 {
		fire(TypeLowTS, sample.SeverityMedium,
			fmt.Sprintf("Total solids too low: %.2f", ts),
			map[string]any{"ts": ts})
	}

	if stability < 0.5 {
		fire(TypeSupplierStabilityDrop, sample.SeverityLow,
			fmt.Sprintf("Supplier stability dropped: %.4f", stability),
			map[string]any{"stability": stability})
	}

	if persistenceVal < 0.4 {
		fire(TypeSupplierPersistenceLow, sample.SeverityLow,
			fmt.Sprintf("Supplier persistence is low: %.4f", persistenceVal),
			map[string]any{"persistence": persistenceVal})
	}

	if routeScore < 60 {
		fire(TypeRouteQualityLow, sample.SeverityMedium,
			fmt.Sprintf("Route score is low: %.2f", routeScore),
			map[string]any{"route_score": routeScore})
	}

	if batchFreq > 30 {
		fire(TypeHighBatchAdulterationRate, sample.SeverityHigh,
			fmt.Sprintf("Batch adulteration frequency high (%.2f%%)", batchFreq),
			map[string]any{"batch_adulteration_freq": batchFreq})
	}

	if !enrich.KnownMilkTypes[enriched.MilkType] {
		fire(TypeMilkTypeUnknown, sample.SeverityLow,
			fmt.Sprintf("Unknown milk type detected: %s", enriched.MilkType),
			map[string]any{"milk_type": enriched.MilkType})
	}

	return alerts
}

// buildAlert 构造告警并同步做尽力而为的持久化
// 持久化失败仅记日志，告警仍会返回给调用方（最多一次落库）
func (e *Engine) buildAlert(
	ctx context.Context,
	alertType, severity, message string,
	enriched *sample.Enriched,
	fat, snf, ts float64,
	details map[string]any,
) sample.Alert {
	base := map[string]any{
		"fat":               fat,
		"snf":               snf,
		"ts":                ts,
		"adulteration_risk": enriched.Adulteration.Risk,
		"is_adulterated":    enriched.Adulteration.IsAdulterated,
		"milk_type":         enriched.MilkType,
	}
	for k, v := range details {
		base[k] = v
	}

	alert := sample.Alert{
		Type:       alertType,
		Severity:   severity,
		Message:    message,
		SampleID:   enriched.SampleID,
		SupplierID: enriched.SupplierID,
		RouteID:    enriched.RouteID,
		Timestamp:  time.Now(),
		Details:    base,
	}

	if e.store != nil {
		if err := e.store.Insert(ctx, &alert); err != nil && e.logger != nil {
			e.logger.Errorf(ctx, "[AlertEngine] persist alert %s failed: %v", alertType, err)
		}
	}

	return alert
}

// numOrZero 直接字段优先，其次多路径取值，最终默认 0
func numOrZero(direct *float64, raw map[string]any, keys ...string) float64 {
	if direct != nil {
		return *direct
	}
	if v, ok := sample.Lookup(raw, keys...); ok {
		return v
	}
	return 0
}
