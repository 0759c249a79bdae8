package api

import (
	"context"
	"io"

	"github.com/gin-gonic/gin"

	"mip/qsync/internal/analytics"
	"mip/qsync/internal/explain"
	"mip/qsync/internal/ingest"
	"mip/qsync/internal/pipeline"
	"mip/qsync/internal/sample"
	"mip/qsync/pkg/ginx"
	"mip/qsync/pkg/logger"
)

// 查询条数上限，防止大查询拖垮服务
const maxRecentAlerts = 500

// AlertQuerier 告警查询边界
type AlertQuerier interface {
	Recent(ctx context.Context, n int) ([]sample.Alert, error)
	BySupplier(ctx context.Context, supplierID string) ([]sample.Alert, error)
}

// Handler 查询接口 HTTP 处理器
// 与流水线共享同一进程内的 LatestStore / ShapCache / Ledger
type Handler struct {
	pipeline   *pipeline.Pipeline
	aggregator *analytics.Aggregator
	alerts     AlertQuerier
	logger     logger.Logger
}

// NewHandler 创建处理器实例
func NewHandler(p *pipeline.Pipeline, agg *analytics.Aggregator, alerts AlertQuerier, log logger.Logger) *Handler {
	return &Handler{
		pipeline:   p,
		aggregator: agg,
		alerts:     alerts,
		logger:     log,
	}
}

// Latest 返回最近一次处理完成的富化样本
func (h *Handler) Latest(c *gin.Context) {
	latest := h.pipeline.Latest().Latest()
	if latest == nil {
		ginx.NotFound(c, "no sample processed yet")
		return
	}

	ginx.Success(c, latest)
}

// AnalyticsFull 返回全量分析报告
func (h *Handler) AnalyticsFull(c *gin.Context) {
	ctx := c.Request.Context()

	entries, err := h.pipeline.Ledger().All(ctx)
	if err != nil {
		h.logger.Errorf(ctx, "[API] query history failed: %v", err)
		ginx.InternalError(c, "failed to load history")
		return
	}

	ginx.Success(c, h.aggregator.Full(entries))
}

// recentAlertsURI 最近告警查询参数
type recentAlertsURI struct {
	N int `uri:"n" binding:"required,min=1"`
}

// AlertsRecent 返回最近 n 条告警
func (h *Handler) AlertsRecent(c *gin.Context) {
	var req recentAlertsURI
	if err := c.ShouldBindUri(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	n := req.N
	if n > maxRecentAlerts {
		n = maxRecentAlerts
	}

	ctx := c.Request.Context()
	alerts, err := h.alerts.Recent(ctx, n)
	if err != nil {
		h.logger.Errorf(ctx, "[API] query recent alerts failed: %v", err)
		ginx.InternalError(c, "failed to load alerts")
		return
	}

	ginx.Success(c, gin.H{"count": len(alerts), "alerts": alerts})
}

// AlertsBySupplier 返回指定供应商的全部告警
func (h *Handler) AlertsBySupplier(c *gin.Context) {
	supplierID := c.Param("id")
	if supplierID == "" {
		ginx.BadRequest(c, "supplier id required")
		return
	}

	ctx := c.Request.Context()
	alerts, err := h.alerts.BySupplier(ctx, supplierID)
	if err != nil {
		h.logger.Errorf(ctx, "[API] query supplier alerts failed: %v", err)
		ginx.InternalError(c, "failed to load alerts")
		return
	}

	ginx.Success(c, gin.H{"supplier_id": supplierID, "count": len(alerts), "alerts": alerts})
}

// shapHistoryQuery 归因历史查询参数
type shapHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// ShapHistory 返回最近的归因记录
func (h *Handler) ShapHistory(c *gin.Context) {
	var req shapHistoryQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		ginx.BadRequestWithValidation(c, err)
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = explain.DefaultCacheCapacity
	}

	records := h.pipeline.ShapCache().History(limit)
	ginx.Success(c, gin.H{"count": len(records), "records": records})
}

// LoadSample 测试入口：以 HTTP 方式直接驱动流水线
// 与 MQTT 接入共用同一解析与处理路径
func (h *Handler) LoadSample(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		ginx.BadRequest(c, "failed to read request body")
		return
	}

	s, err := ingest.ParseSample(body)
	if err != nil {
		ginx.BadRequest(c, "malformed sample: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	enriched, err := h.pipeline.Process(ctx, s)
	if err != nil {
		h.logger.Errorf(ctx, "[API] load sample failed: %v", err)
		ginx.InternalError(c, "failed to process sample")
		return
	}

	// 下游推送与通知不阻塞响应
	go func(e *sample.Enriched) {
		fwdCtx := context.WithValue(context.Background(), logger.CtxSampleID, e.SampleID)
		h.pipeline.Forward(fwdCtx, e)
	}(enriched)

	ginx.Success(c, enriched)
}
