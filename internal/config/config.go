package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoreRedis  = "redis"
	StoreBadger = "badger"
)

type Config struct {
	Addr     string `envconfig:"ADDR" default:":8080"`
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver    string `envconfig:"STORE_DRIVER" default:"redis"`
	RedisAddr      string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD"`
	RedisDB        int    `envconfig:"REDIS_DB" default:"0"`
	RedisKeyPrefix string `envconfig:"REDIS_KEY_PREFIX" default:"gc:"`
	BadgerPath     string `envconfig:"BADGER_PATH" default:"./data/badger"`

	DBDriver string `envconfig:"DB_DRIVER" default:"mysql"`
	DBDSN    string `envconfig:"DB_DSN" required:"true"`

	JWTAccessSecret  string        `envconfig:"JWT_ACCESS_SECRET" required:"true"`
	JWTRefreshSecret string        `envconfig:"JWT_REFRESH_SECRET" required:"true"`
	AccessTTL        time.Duration `envconfig:"ACCESS_TTL" default:"30m"`
	RefreshTTL       time.Duration `envconfig:"REFRESH_TTL" default:"24h"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"groupchat.events"`

	NatsURL           string `envconfig:"NATS_URL"`
	NatsSubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"groupchat"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:3000"`
}

// Load 先读取 .env（可选），再从 GROUPCHAT_ 前缀的环境变量解析
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("groupchat", &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.StoreDriver = strings.ToLower(c.StoreDriver)
	if c.StoreDriver != StoreRedis && c.StoreDriver != StoreBadger {
		return fmt.Errorf("config error: unsupported store driver %q", c.StoreDriver)
	}
	return nil
}

func (c *Config) Production() bool {
	return c.AppEnv == "production"
}
