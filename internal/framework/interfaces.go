package framework

import (
	"context"
	"time"
)

// MessageSource 消息源接口（适配不同接入通道）
type MessageSource interface {
	// Consume 消费消息（阻塞，直到拉取到消息或超时；超时返回 nil, nil）
	Consume(topic string, timeout time.Duration) (*Message, error)

	// Ack 确认消息
	Ack(topic string, msgID string) error
}

// Logger 日志接口
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
}

// Proc 业务处理函数类型（由 ingest 层注入）
type Proc func(ctx context.Context, msg *Message) *ProcResult
