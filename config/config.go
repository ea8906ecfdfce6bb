package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Federation FederationConfig `mapstructure:"federation"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	EnableSwagger   bool          `mapstructure:"enable_swagger"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres, sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"` // 为空时不启用关注者索引缓存
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	IndexTTL time.Duration `mapstructure:"index_ttl"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // json, console
	Output   string `mapstructure:"output"` // stdout 或文件路径
	Sampling bool   `mapstructure:"sampling"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// FederationConfig 联邦投递参数
type FederationConfig struct {
	ServerName     string        `mapstructure:"server_name"` // 本节点的 authority
	InboxScheme    string        `mapstructure:"inbox_scheme"`
	InboxPath      string        `mapstructure:"inbox_path"`
	Workers        int           `mapstructure:"workers"`
	ClaimLimit     int           `mapstructure:"claim_limit"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	Lease          time.Duration `mapstructure:"lease"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseBackoff    time.Duration `mapstructure:"base_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PerServerRPS   float64       `mapstructure:"per_server_rps"`
	ReplicatorSize int           `mapstructure:"replicator_queue_size"`

	// PeerKeys 对端节点 -> 共享密钥（1~64 字节），收发两侧都用它签名信封
	PeerKeys map[string]string `mapstructure:"peer_keys"`
	// RequireSignature 为 true 时拒收没有配置密钥的节点
	RequireSignature bool `mapstructure:"require_signature"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	Insecure    bool    `mapstructure:"insecure"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Load 读取配置：默认值 -> config.yaml（CONFIG_PATH 可覆盖路径）-> APP_ 前缀环境变量
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验必须项
func (c *Config) Validate() error {
	if c.Federation.ServerName == "" {
		return errors.New("federation.server_name is required")
	}
	if strings.Contains(c.Federation.ServerName, "/") {
		return fmt.Errorf("federation.server_name %q must not contain '/'", c.Federation.ServerName)
	}
	if c.Federation.MaxAttempts <= 0 {
		return errors.New("federation.max_attempts must be positive")
	}
	for peer, key := range c.Federation.PeerKeys {
		if len(key) == 0 || len(key) > 64 {
			return fmt.Errorf("federation.peer_keys.%s must be 1-64 bytes", peer)
		}
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.enable_swagger", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:socmed.db?_busy_timeout=5000")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.index_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("jwt.issuer", "federated-socmed")
	v.SetDefault("jwt.ttl", 24*time.Hour)

	v.SetDefault("federation.server_name", "localhost")
	v.SetDefault("federation.inbox_scheme", "https")
	v.SetDefault("federation.inbox_path", "/federation/inbox")
	v.SetDefault("federation.workers", 4)
	v.SetDefault("federation.claim_limit", 64)
	v.SetDefault("federation.poll_interval", time.Second)
	v.SetDefault("federation.lease", time.Minute)
	v.SetDefault("federation.max_attempts", 5)
	v.SetDefault("federation.base_backoff", 2*time.Second)
	v.SetDefault("federation.max_backoff", 5*time.Minute)
	v.SetDefault("federation.request_timeout", 10*time.Second)
	v.SetDefault("federation.per_server_rps", 5.0)
	v.SetDefault("federation.replicator_queue_size", 10000)
	v.SetDefault("federation.require_signature", false)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 20.0)
	v.SetDefault("ratelimit.burst", 40)

	v.SetDefault("tracing.service_name", "federated-socmed")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("sentry.sample_rate", 1.0)
}
