package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type GatewayConfig struct {
	BaseURL string        `mapstructure:"base_url" envconfig:"GATEWAY_BASE_URL"`
	APIKey  string        `mapstructure:"api_key" envconfig:"GATEWAY_API_KEY"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DispatchConfig tunes the dispatch worker. Batch sizes bound one run's
// duration; the schedule is a standard cron expression.
type DispatchConfig struct {
	Schedule          string        `mapstructure:"schedule"`
	MessageBatchSize  int           `mapstructure:"message_batch_size"`
	CampaignBatchSize int           `mapstructure:"campaign_batch_size"`
	SendTimeout       time.Duration `mapstructure:"send_timeout"`
	DefaultMaxRetries int           `mapstructure:"default_max_retries"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret" envconfig:"JWT_SECRET"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment variables win over file values for deploy-time secrets.
	if err := envconfig.Process("", &config.Database); err != nil {
		return nil, fmt.Errorf("failed to process database env: %w", err)
	}
	if err := envconfig.Process("", &config.Redis); err != nil {
		return nil, fmt.Errorf("failed to process redis env: %w", err)
	}
	if err := envconfig.Process("", &config.Gateway); err != nil {
		return nil, fmt.Errorf("failed to process gateway env: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "10s")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.retry_backoff", "100ms")
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.min_idle_conns", 2)
	viper.SetDefault("gateway.timeout", "30s")
	viper.SetDefault("dispatch.schedule", "* * * * *")
	viper.SetDefault("dispatch.message_batch_size", 100)
	viper.SetDefault("dispatch.campaign_batch_size", 100)
	viper.SetDefault("dispatch.send_timeout", "30s")
	viper.SetDefault("dispatch.default_max_retries", 3)
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_second", 50)
	viper.SetDefault("rate_limit.burst", 100)
}
