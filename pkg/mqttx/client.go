package mqttx

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"mip/qsync/internal/framework"
)

// 订阅消息缓冲区大小（回调推入，Consume 拉出）
const defaultBufferSize = 256

// Options MQTT 客户端选项
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Client MQTT 客户端封装
// 回调式订阅适配成拉取式 MessageSource：订阅回调把消息推入
// 内部缓冲 channel，Consume 带超时从 channel 拉取。
type Client struct {
	cli mqtt.Client
	qos byte

	mu     sync.Mutex
	topics map[string]chan *framework.Message
}

// NewClient 创建并连接 MQTT 客户端
func NewClient(opts Options) (*Client, error) {
	mqttOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOrderMatters(true)

	cli := mqtt.NewClient(mqttOpts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect failed: %w", token.Error())
	}

	return &Client{
		cli:    cli,
		qos:    opts.QoS,
		topics: make(map[string]chan *framework.Message),
	}, nil
}

// subscribe 订阅主题并建立缓冲 channel（首次 Consume 时惰性执行）
func (c *Client) subscribe(topic string) (chan *framework.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ch, ok := c.topics[topic]; ok {
		return ch, nil
	}

	ch := make(chan *framework.Message, defaultBufferSize)
	handler := func(_ mqtt.Client, m mqtt.Message) {
		msg := &framework.Message{
			ID:    fmt.Sprintf("%d-%s", m.MessageID(), uuid.New().String()[:8]),
			Topic: m.Topic(),
			Data:  m.Payload(),
		}
		// 缓冲区满时丢弃最旧消息，保证回调不阻塞 paho 的网络协程
		for {
			select {
			case ch <- msg:
				return
			default:
				select {
				case <-ch:
				default:
				}
			}
		}
	}

	if token := c.cli.Subscribe(topic, c.qos, handler); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt subscribe %s failed: %w", topic, token.Error())
	}

	c.topics[topic] = ch
	return ch, nil
}

// Consume 消费消息（实现 MessageSource 接口）
// 超时未拉到消息返回 nil, nil
func (c *Client) Consume(topic string, timeout time.Duration) (*framework.Message, error) {
	ch, err := c.subscribe(topic)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-ch:
		return msg, nil
	case <-timer.C:
		return nil, nil
	}
}

// Ack 确认消息（实现 MessageSource 接口）
// MQTT 的协议层确认由 paho 按 QoS 自动完成，业务层确认
// 通过 ACK 主题回发，这里无需额外动作。
func (c *Client) Ack(topic string, msgID string) error {
	return nil
}

// Publish 发布消息（ACK 回发）
func (c *Client) Publish(topic string, data []byte) error {
	token := c.cli.Publish(topic, c.qos, false, data)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt publish %s failed: %w", topic, token.Error())
	}
	return nil
}

// Close 断开连接
func (c *Client) Close() {
	c.mu.Lock()
	for topic := range c.topics {
		c.cli.Unsubscribe(topic)
	}
	c.topics = make(map[string]chan *framework.Message)
	c.mu.Unlock()

	c.cli.Disconnect(250)
}
