package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesYAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
app:
  port: "9090"
  timezone: Africa/Accra
database:
  driver: mysql
  dsn: "iig:secret@tcp(localhost:3306)/iig?parseTime=true"
redis:
  plan_ttl: 1m
`)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.App.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, time.Minute, cfg.Redis.PlanTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "redemption-events", cfg.Kafka.Topic)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Africa/Accra", loc.String())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/iig?sslmode=disable")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.NotEmpty(t, cfg.Auth.JWTSecret, "development gets a throwaway secret")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"bad driver", func(c *Config) { c.Database.Driver = "sqlite" }, false},
		{"no dsn", func(c *Config) { c.Database.DSN = "" }, false},
		{"prod without secret", func(c *Config) { c.App.Env = "production"; c.Auth.JWTSecret = "" }, false},
		{"bad timezone", func(c *Config) { c.App.Timezone = "Mars/Olympus" }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaults()
			cfg.Database.DSN = "postgres://localhost/iig"
			cfg.Auth.JWTSecret = "s"
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
