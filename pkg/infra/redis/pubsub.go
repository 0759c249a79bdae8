package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PubSub Redis 发布/订阅客户端
type PubSub struct {
	client  *redis.Client
	channel string
}

// NewPubSub 创建 PubSub 实例
func NewPubSub(addr, password string, db int, channel string) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &PubSub{
		client:  client,
		channel: channel,
	}, nil
}

// ProcessedNotification 样本处理完成通知消息
type ProcessedNotification struct {
	SampleID   string `json:"sample_id"`
	SupplierID string `json:"supplier_id"`
	AlertCount int    `json:"alert_count"`
	Timestamp  int64  `json:"timestamp"`
}

// NotifyProcessed 发布样本处理完成通知（实现 pipeline.Notifier 接口）
func (p *PubSub) NotifyProcessed(ctx context.Context, sampleID, supplierID string, alertCount int) error {
	notification := &ProcessedNotification{
		SampleID:   sampleID,
		SupplierID: supplierID,
		AlertCount: alertCount,
		Timestamp:  time.Now().Unix(),
	}

	msgJSON, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := p.client.Publish(ctx, p.channel, msgJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	return nil
}

// Subscribe 订阅通知频道（用于测试）
func (p *PubSub) Subscribe(ctx context.Context) *redis.PubSub {
	return p.client.Subscribe(ctx, p.channel)
}

// Close 关闭 Redis 连接
func (p *PubSub) Close() error {
	return p.client.Close()
}
