package framework

import "time"

// Message 消息结构（框架内部流转）
type Message struct {
	ID    string // 消息 ID
	Topic string // 来源主题
	Data  []byte // 原始 payload
}

// ProcAction 消息处理结果动作
type ProcAction int

const (
	// ProcActionAck 处理成功，确认消息
	ProcActionAck ProcAction = iota
	// ProcActionRetry 临时失败，等待重投
	ProcActionRetry
	// ProcActionDrop 格式错误或不可恢复失败，丢弃消息
	ProcActionDrop
)

// ProcResult 消息处理结果
type ProcResult struct {
	Action ProcAction // 处理动作
	Data   []byte     // 响应数据（可选，用于日志）
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Topic        string        // 订阅主题
	Concurrency  int           // 并发拉取数
	Timeout      time.Duration // 拉取超时
	Rate         time.Duration // 速率限制（拉取间隔）
	ErrorBackoff time.Duration // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Concurrency int           // 并发处理数
	BufferSize  int           // inputChan 缓冲区大小
	Timeout     time.Duration // 单个消息处理超时
}
