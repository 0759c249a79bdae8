package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"mip/qsync/internal/framework"
	"mip/qsync/internal/pipeline"
	"mip/qsync/internal/sample"
	"mip/qsync/pkg/errorutil"
	"mip/qsync/pkg/logger"
)

// AckPublisher 确认消息回发边界（MQTT 发布）
type AckPublisher interface {
	Publish(topic string, payload []byte) error
}

// Ack 处理确认消息（回发到接入通道）
type Ack struct {
	SampleID  string `json:"sample_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// AckStatusProcessed 处理完成状态
const AckStatusProcessed = "received_and_processed"

// GetProcess 返回核心处理函数（注入到 Processor）
// 流程：解析校验 → 流水线 run → 异步下游推送 → 回发 ACK。
// 格式错误的消息在进入流水线前被拒绝：记日志、不落账、不回 ACK。
func GetProcess(p *pipeline.Pipeline, publisher AckPublisher, ackTopic string, log logger.Logger) framework.Proc {
	return func(ctx context.Context, msg *framework.Message) *framework.ProcResult {
		startTime := time.Now()

		// 1. 解析并校验入站消息
		s, err := ParseSample(msg.Data)
		if err != nil {
			log.Errorf(ctx, "[Ingest] malformed message %s rejected: %v", msg.ID, err)
			return &framework.ProcResult{Action: framework.ProcActionDrop}
		}

		// 2. 注入 trace 信息
		ctx = context.WithValue(ctx, logger.CtxTraceID, s.SampleID)
		ctx = context.WithValue(ctx, logger.CtxSampleID, s.SampleID)

		log.Infof(ctx, "[Ingest] processing sample: supplier=%s route=%s", s.SupplierID, s.RouteID)

		// 3. 执行流水线（panic 兜底，单条消息失败不拖垮 worker）
		var enriched *sample.Enriched
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf(ctx, "[Ingest] pipeline panic: %v", r)
					enriched = nil
				}
			}()
			enriched, err = p.Process(ctx, s)
		}()

		if enriched == nil {
			return &framework.ProcResult{Action: framework.ProcActionDrop}
		}
		if err != nil {
			// 落账失败是可重试错误：样本丢失不可接受，等待重投
			if errorutil.IsRetryable(err) {
				return &framework.ProcResult{Action: framework.ProcActionRetry}
			}
			return &framework.ProcResult{Action: framework.ProcActionDrop}
		}

		// 4. 下游推送（fire-and-continue，不阻塞 ACK 路径）
		go func(e *sample.Enriched) {
			fwdCtx := context.WithValue(context.Background(), logger.CtxSampleID, e.SampleID)
			p.Forward(fwdCtx, e)
		}(enriched)

		// 5. 回发 ACK（推送成败不影响 ACK）
		ackData := publishAck(ctx, publisher, ackTopic, enriched.SampleID, log)

		log.Infof(ctx, "[Ingest] sample processed: alerts=%d duration=%v",
			len(enriched.Alerts), time.Since(startTime))

		return &framework.ProcResult{Action: framework.ProcActionAck, Data: ackData}
	}
}

// publishAck 回发处理确认
// 发送失败仅记日志，消息本身仍视为处理成功
func publishAck(ctx context.Context, publisher AckPublisher, topic, sampleID string, log logger.Logger) []byte {
	ack := Ack{
		SampleID:  sampleID,
		Status:    AckStatusProcessed,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	data, err := json.Marshal(ack)
	if err != nil {
		log.Errorf(ctx, "[Ingest] marshal ack failed: %v", err)
		return nil
	}

	if publisher != nil {
		if err := publisher.Publish(topic, data); err != nil {
			log.Warnf(ctx, "[Ingest] publish ack failed: %v", err)
		}
	}

	return data
}

// ParseSample 解析并校验入站消息
// JSON 解析失败或缺失 inference 块视为格式错误；
// 数值字段缺失不是错误，按各组件的缺失语义处理。
func ParseSample(data []byte) (*sample.Sample, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errorutil.NonRetriable("json unmarshal failed: " + err.Error())
	}

	inf, ok := raw["inference"].(map[string]any)
	if !ok {
		return nil, errorutil.NonRetriable("inference block missing")
	}

	s := &sample.Sample{
		Raw:        raw,
		ReceivedAt: time.Now(),
	}

	// supplier_data 块
	if sd, ok := inf["supplier_data"].(map[string]any); ok {
		s.SampleID, _ = sd["sample_id"].(string)
		s.SupplierID, _ = sd["supplier_id"].(string)
		s.RouteID, _ = sd["route_id"].(string)
		s.CollectionCenter, _ = sd["collection_center"].(string)
	}
	if s.SampleID == "" {
		if v, ok := sample.LookupString(raw, "sample_id"); ok {
			s.SampleID = v
		} else {
			s.SampleID = uuid.New().String()
		}
	}
	if s.SupplierID == "" {
		s.SupplierID = "UNKNOWN_SUPPLIER"
	}
	if s.RouteID == "" {
		s.RouteID = "UNKNOWN_ROUTE"
	}
	if s.CollectionCenter == "" {
		s.CollectionCenter = "UNKNOWN_CENTER"
	}

	// 核心推断值（多路径取值，0 是合法读数）
	if v, ok := sample.Lookup(raw, "fat_predicted", "fat", "Fat_content"); ok {
		s.Fat = &v
	}
	if v, ok := sample.Lookup(raw, "snf"); ok {
		s.SNF = &v
	}
	if v, ok := sample.Lookup(raw, "total_solids_predicted", "total_solids", "Total_Solids"); ok {
		s.TS = &v
	}

	// 波长元数据
	if meta, ok := inf["metadata"].(map[string]any); ok {
		s.Metadata = make(map[string]float64, len(meta))
		for k, v := range meta {
			if f, ok := v.(float64); ok {
				s.Metadata[k] = f
			}
		}
	}

	return s, nil
}
