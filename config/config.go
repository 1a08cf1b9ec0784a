package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
	Auth     AuthConfig     `json:"auth"`
	Notify   NotifyConfig   `json:"notify"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Addr        string `json:"addr"`
	Password    string `json:"password"`
	DB          int    `json:"db"`
	PoolSize    int    `json:"pool_size"`
	FeedChannel string `json:"feed_channel"` // 变更事件的 pub/sub 频道
}

type KafkaConfig struct {
	Brokers      []string `json:"brokers"`
	GroupID      string   `json:"group_id"`
	SessionTopic string   `json:"session_topic"` // 客户入口创建会话的主题
	MessageTopic string   `json:"message_topic"` // 客户消息主题
	AuditTopic   string   `json:"audit_topic"`   // 会话生命周期审计主题
	Username     string   `json:"username"`
	Password     string   `json:"password"`
	Mechanism    string   `json:"mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	UseTLS       bool     `json:"use_tls"`
	CertFile     string   `json:"cert_file"`
	KeyFile      string   `json:"key_file"`
	CAFile       string   `json:"ca_file"`
}

type AuthConfig struct {
	JWTSecret     string `json:"jwt_secret"`
	TokenExpiry   int    `json:"token_expiry"`   // in hours
	RefreshExpiry int    `json:"refresh_expiry"` // in hours
}

type NotifyConfig struct {
	PreviewLength int `json:"preview_length"` // 消息提醒的内容预览长度
	ToastTimeout  int `json:"toast_timeout"`  // 非紧急通知自动消失秒数
}

func LoadConfig() (config Config, err error) {
	file, err := os.Open("config/config.json")
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		closeErr := file.Close()
		if closeErr != nil {
			log.Printf("Error closing config file: %v", closeErr)
		}
	}(file)
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return config, err
	}
	if config.Notify.PreviewLength <= 0 {
		config.Notify.PreviewLength = 80
	}
	if config.Notify.ToastTimeout <= 0 {
		config.Notify.ToastTimeout = 8
	}
	if config.Redis.FeedChannel == "" {
		config.Redis.FeedChannel = "desk:feed"
	}
	return config, nil
}
