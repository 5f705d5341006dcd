package config

import (
	"time"
)

// Chat definition chat_service YAML structure
type Chat struct {
	Port      string          `mapstructure:"port"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Websocket WebsocketConfig `mapstructure:"websocket"`
	Chat      MessageConfig   `mapstructure:"chat"`
	Store     StoreConfig     `mapstructure:"store"`

	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Events     EventsConfig   `mapstructure:"events"`

	// SeedUsers loaded into the user directory at start
	SeedUsers []SeedUser `mapstructure:"seed_users" validate:"unique=ID,dive"`
}

// AuthConfig jwt validation
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required"`
	Issuer    string `mapstructure:"issuer"`
}

// WebsocketConfig gateway connection limits
type WebsocketConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	PingInterval  time.Duration `mapstructure:"ping_interval"`
	WriteWait     time.Duration `mapstructure:"write_wait"`
	MaxFrameSize  int64         `mapstructure:"max_frame_size"`
	SendQueueSize int           `mapstructure:"send_queue_size"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	RateBurst     int           `mapstructure:"rate_burst"`
}

// MessageConfig message rules
type MessageConfig struct {
	MaxMessageLength int `mapstructure:"max_message_length"`
	PageSize         int `mapstructure:"page_size"`
}

// StoreConfig driver: postgres | mongo | memory, users: postgres | memory
type StoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres mongo memory"`
	Users  string `mapstructure:"users" validate:"oneof=postgres memory"`
}

// RedisConfig definition redis setting; sentinel addresses come from .env
type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	RedisDB     int           `mapstructure:"redis_db"`
	UseSentinel bool          `mapstructure:"use_sentinel"`
	Relay       bool          `mapstructure:"relay"`
	PresenceTTL time.Duration `mapstructure:"presence_ttl"`
	RetryCount  int           `mapstructure:"retry_count"`
	// RetryInterval 秒
	RetryInterval int `mapstructure:"retry_interval"`
}

// EventsConfig driver: none | kafka | rabbitmq
type EventsConfig struct {
	Driver        string   `mapstructure:"driver" validate:"oneof=none kafka rabbitmq"`
	Brokers       []string `mapstructure:"brokers" validate:"required_if=Driver kafka"`
	Topic         string   `mapstructure:"topic"`
	AMQPURL       string   `mapstructure:"amqp_url" validate:"required_if=Driver rabbitmq"`
	Exchange      string   `mapstructure:"exchange"`
	RoutingKey    string   `mapstructure:"routing_key"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// SeedUser user directory entry from yaml
type SeedUser struct {
	ID          string `mapstructure:"id" validate:"required"`
	Username    string `mapstructure:"username"`
	DisplayName string `mapstructure:"display_name"`
	IsBot       bool   `mapstructure:"is_bot"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	MaxConns      int32  `mapstructure:"max_conns"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// Defaults viper defaults for keys left out of the yaml
func (Chat) Defaults() map[string]interface{} {
	return map[string]interface{}{
		"port":                      "8080",
		"websocket.idle_timeout":    "60s",
		"websocket.ping_interval":   "50s",
		"websocket.write_wait":      "10s",
		"websocket.max_frame_size":  65536,
		"websocket.send_queue_size": 256,
		"chat.max_message_length":   4000,
		"chat.page_size":            50,
		"store.driver":              "memory",
		"store.users":               "memory",
		"redis.presence_ttl":        "720h",
		"events.driver":             "none",
		"events.topic":              "chat.messages",
		"events.exchange":           "chat.events",
		"events.routing_key":        "message.created",
	}
}
