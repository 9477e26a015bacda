package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration of the API process.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Limits   LimitsConfig   `yaml:"limits"`
}

type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     string `yaml:"port"`
	Timezone string `yaml:"timezone"`
	LogLevel string `yaml:"log_level"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // postgres | mysql
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// RedisConfig is optional; an empty Addr disables the plan cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PlanTTL  time.Duration `yaml:"plan_ttl"`
}

// KafkaConfig is optional; no brokers means events are dropped.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type TracingConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type LimitsConfig struct {
	SubmitPerSecond float64 `yaml:"submit_per_second"`
	SubmitBurst     int     `yaml:"submit_burst"`
	BulkConcurrency int     `yaml:"bulk_concurrency"`
}

// Location resolves the configured reporting timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.App.Timezone)
}

func defaults() *Config {
	return &Config{
		App: AppConfig{
			Name:     "iig-api",
			Env:      "development",
			Port:     "8080",
			Timezone: "UTC",
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Redis: RedisConfig{
			PlanTTL: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Topic: "redemption-events",
		},
		Limits: LimitsConfig{
			SubmitPerSecond: 50,
			SubmitBurst:     100,
			BulkConcurrency: 4,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins). A .env file in
// the working directory is loaded into the environment first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.App.Port, "APP_PORT")
	setString(&cfg.App.Env, "APP_ENV")
	setString(&cfg.App.Timezone, "APP_TIMEZONE")
	setString(&cfg.App.LogLevel, "LOG_LEVEL")
	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.Kafka.Topic, "KAFKA_TOPIC")
	setString(&cfg.Tracing.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok {
		cfg.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Kafka.Brokers = append(cfg.Kafka.Brokers, b)
			}
		}
	}
	if v, ok := os.LookupEnv("SUBMIT_RATE_PER_SECOND"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Limits.SubmitPerSecond = f
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		if c.App.Env != "development" {
			return fmt.Errorf("jwt secret is required outside development")
		}
		c.Auth.JWTSecret = "dev-secret-change-me"
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}
	if c.Limits.BulkConcurrency < 1 {
		c.Limits.BulkConcurrency = 1
	}
	return nil
}
