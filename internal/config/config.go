package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Federation FederationConfig `mapstructure:"federation"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	NodeId   string `mapstructure:"node_id"` // 本节点标识
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type FederationConfig struct {
	FanoutTimeout     time.Duration `mapstructure:"fanout_timeout"`     // 跨节点聚合总预算
	FanoutConcurrency int           `mapstructure:"fanout_concurrency"` // 并发访问的节点数上限
	TokenSecret       string        `mapstructure:"token_secret"`       // 节点令牌共享密钥
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	NodeTTL           time.Duration `mapstructure:"node_ttl"`           // 节点注册 TTL
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"` // 注册续期间隔
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults 填充缺省值
func applyDefaults(cfg *Config) {
	if cfg.Federation.FanoutTimeout <= 0 {
		cfg.Federation.FanoutTimeout = 10 * time.Second
	}
	if cfg.Federation.FanoutConcurrency <= 0 {
		cfg.Federation.FanoutConcurrency = 4
	}
	if cfg.Federation.TokenTTL <= 0 {
		cfg.Federation.TokenTTL = time.Hour
	}
	if cfg.Federation.NodeTTL <= 0 {
		cfg.Federation.NodeTTL = 5 * time.Minute
	}
	if cfg.Federation.HeartbeatInterval <= 0 {
		cfg.Federation.HeartbeatInterval = time.Minute
	}
}
