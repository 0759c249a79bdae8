package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MQTT       MQTTConfig       `mapstructure:"mqtt"`
	Server     ServerConfig     `mapstructure:"server"`
	Downstream DownstreamConfig `mapstructure:"downstream"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Workers    []WorkerConfig   `mapstructure:"workers"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// MySQLConfig MySQL 配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"` // 样本处理完成通知频道
}

// MQTTConfig MQTT 接入配置
type MQTTConfig struct {
	Broker    string `mapstructure:"broker"` // tcp://host:port
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	DataTopic string `mapstructure:"data_topic"` // 样本入站主题
	AckTopic  string `mapstructure:"ack_topic"`  // 处理确认回发主题
	QoS       byte   `mapstructure:"qos"`
}

// ServerConfig HTTP 查询服务配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DownstreamConfig 下游推送配置
type DownstreamConfig struct {
	Endpoint string        `mapstructure:"endpoint"` // 例：https://node-backend/full
	Timeout  time.Duration `mapstructure:"timeout"`  // 单次请求超时
	Retries  int           `mapstructure:"retries"`  // 额外重试次数
	Backoff  time.Duration `mapstructure:"backoff"`  // 重试间隔
}

// PipelineConfig 富化流水线配置
type PipelineConfig struct {
	BasePrice     float64       `mapstructure:"base_price"`
	CacheCapacity int           `mapstructure:"cache_capacity"` // 归因缓存容量
	ModelBundle   string        `mapstructure:"model_bundle"`   // 模型包 JSON 路径
	Thresholds    ThresholdsMap `mapstructure:"thresholds"`

	// 模型包缺失 spectral_cols 时的兜底期望列
	SpectralCols  []string `mapstructure:"spectral_cols"`
	ImportantCols []string `mapstructure:"important_cols"`
}

// ThresholdsMap 红黄绿分级阈值
type ThresholdsMap struct {
	Fat ThresholdPair `mapstructure:"fat"`
	SNF ThresholdPair `mapstructure:"snf"`
	TS  ThresholdPair `mapstructure:"ts"`
}

// ThresholdPair 单指标阈值
type ThresholdPair struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name       string           `mapstructure:"name"`
	Subscriber SubscriberConfig `mapstructure:"subscriber"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个样本处理超时
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.MQTT.DataTopic == "" {
		return fmt.Errorf("mqtt.data_topic is required")
	}
	if c.Downstream.Endpoint == "" {
		return fmt.Errorf("downstream.endpoint is required")
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker is required")
	}
	return nil
}
