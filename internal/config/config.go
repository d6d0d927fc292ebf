package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the immutable process configuration. It is built once at
// startup and handed to every collaborator that needs a piece of it.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Telegram TelegramConfig `yaml:"telegram"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Notify   NotifyConfig   `yaml:"notify"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// HTTPConfig configures the HTTP listener
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// DatabaseConfig configures the Postgres connection
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig configures JWT issuance
type AuthConfig struct {
	Secret          string `yaml:"secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// SMTPConfig configures the email notification channel
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// TelegramConfig configures the Telegram notification channel.
// An empty token disables the channel.
type TelegramConfig struct {
	Token string `yaml:"token"`
}

// RedisConfig configures the optional catalog cache.
// An empty address disables caching.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig configures the optional notification queue backend
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

// NotifyConfig configures the in-process notification worker pool
type NotifyConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// LoggingConfig configures the logger
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// LoadFile loads configuration from a YAML file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv builds configuration from environment variables. It returns an
// error when the required variables are missing so the caller can fall
// back to a config file.
func FromEnv() (*Config, error) {
	cfg := defaults()

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Auth.Secret = os.Getenv("JWT_SECRET")

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("JWT_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.TokenTTLMinutes = n
		}
	}

	cfg.SMTP.Host = getEnv("SMTP_HOST", cfg.SMTP.Host)
	if v := os.Getenv("SMTP_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SMTP.Port = n
		}
	}
	cfg.SMTP.Username = os.Getenv("SMTP_USER")
	cfg.SMTP.Password = os.Getenv("SMTP_PASSWORD")
	cfg.SMTP.From = getEnv("SMTP_FROM", cfg.SMTP.Username)

	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")

	cfg.Redis.Address = os.Getenv("REDIS_ADDR")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}

	if v := os.Getenv("KAFKA_ENABLED"); v == "true" || v == "1" {
		cfg.Kafka.Enabled = true
		if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
			cfg.Kafka.Brokers = strings.Split(brokers, ",")
		}
		cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
		cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	}

	if v := os.Getenv("NOTIFY_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Notify.Workers = n
		}
	}

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
	cfg.Logging.Output = getEnv("LOG_OUTPUT", cfg.Logging.Output)
	cfg.Logging.File = os.Getenv("LOG_FILE")

	if cfg.Database.URL == "" || cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("missing required environment variables")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url cannot be empty")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret cannot be empty")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("token ttl must be positive")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}
	if c.Notify.Workers <= 0 {
		return fmt.Errorf("notify workers must be positive")
	}
	return nil
}

// TokenTTL returns the configured access token lifetime
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLMinutes) * time.Minute
}

func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:         ":8000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTLMinutes: 30,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "requests.created",
			GroupID: "service-center-notify",
		},
		Notify: NotifyConfig{
			Workers:   4,
			QueueSize: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
