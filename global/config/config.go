package config

import (
	"strings"
	"sync"
	"time"

	"PPSocial/tools/errs"

	"github.com/spf13/viper"
)

const EnvPrefix = "PPS"

type Config struct {
	App   AppConfig   `mapstructure:"app"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
	NATS  NATSConfig  `mapstructure:"nats"`
	Kafka KafkaConfig `mapstructure:"kafka"`
	WS    WSConfig    `mapstructure:"ws"`
	Chat  ChatConfig  `mapstructure:"chat"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	NodeID   int64  `mapstructure:"node_id"` // 雪花ID节点，同时作为跨节点投递的来源标识
	Port     int    `mapstructure:"port"`    // http 启动端口
	GrpcPort int    `mapstructure:"grpc_port"`
	LogLevel string `mapstructure:"log_level"`
	Env      string `mapstructure:"env"`
}

type AuthConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	CredentialTTL time.Duration `mapstructure:"credential_ttl"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	CookieSecure  bool          `mapstructure:"cookie_secure"`
}

type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
	MaxRetry    int    `mapstructure:"max_retry"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Servers       []string      `mapstructure:"servers"`
	Name          string        `mapstructure:"name"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	Version string   `mapstructure:"version"`
}

type WSConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	SendQueue    int           `mapstructure:"send_queue"`
	ReadLimit    int64         `mapstructure:"read_limit"`
}

type ChatConfig struct {
	PageSize        int           `mapstructure:"page_size"`
	MaxImages       int           `mapstructure:"max_images"`
	MaxContentRunes int           `mapstructure:"max_content_runes"`
	SendTimeout     time.Duration `mapstructure:"send_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ppsocial")
	v.SetDefault("app.node_id", 1)
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.grpc_port", 50051)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.env", "dev")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.credential_ttl", 24*time.Hour)
	v.SetDefault("auth.session_ttl", 24*time.Hour)
	v.SetDefault("auth.cookie_secure", false)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "ppsocial")
	v.SetDefault("mongo.username", "")
	v.SetDefault("mongo.password", "")
	v.SetDefault("mongo.max_pool_size", 20)
	v.SetDefault("mongo.max_retry", 5)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.servers", []string{"nats://127.0.0.1:4222"})
	v.SetDefault("nats.name", "ppsocial")
	v.SetDefault("nats.subject_prefix", "pps.deliver")
	v.SetDefault("nats.reconnect_wait", 2*time.Second)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic", "pps.dm.persisted")
	v.SetDefault("kafka.version", "2.8.0")

	v.SetDefault("ws.ping_interval", 25*time.Second)
	v.SetDefault("ws.pong_wait", 60*time.Second)
	v.SetDefault("ws.send_queue", 256)
	v.SetDefault("ws.read_limit", 1<<20)

	v.SetDefault("chat.page_size", 50)
	v.SetDefault("chat.max_images", 10)
	v.SetDefault("chat.max_content_runes", 4000)
	v.SetDefault("chat.send_timeout", 5*time.Second)
}

var (
	current *Config
	mu      sync.RWMutex
)

// Load 从指定路径加载配置；path 为空时只使用默认值与 PPS_ 环境变量。
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	setCurrent(cfg)
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errs.ErrValidation.WrapMsg("auth.jwt_secret is required")
	}
	if c.App.NodeID < 0 || c.App.NodeID > 1023 {
		return errs.ErrValidation.WrapMsg("app.node_id out of range", "node_id", c.App.NodeID)
	}
	if c.Chat.PageSize <= 0 {
		return errs.ErrValidation.WrapMsg("chat.page_size must be positive")
	}
	if c.WS.PingInterval >= c.WS.PongWait {
		return errs.ErrValidation.WrapMsg("ws.ping_interval must be shorter than ws.pong_wait")
	}
	if c.NATS.Enabled && len(c.NATS.Servers) == 0 {
		return errs.ErrValidation.WrapMsg("nats.servers is empty")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errs.ErrValidation.WrapMsg("kafka.brokers is empty")
	}
	return nil
}

// Current returns the last successfully loaded configuration.
func Current() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func setCurrent(cfg *Config) {
	mu.Lock()
	current = cfg
	mu.Unlock()
}
