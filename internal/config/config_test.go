package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Action.Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Redis.ListTTL)
	assert.Equal(t, "order.exchange", cfg.RabbitMQ.Exchange)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MYSQL_HOST", "db")
	t.Setenv("MYSQL_USER", "admin")
	t.Setenv("MYSQL_PASSWORD", "secret")
	t.Setenv("MYSQL_DATABASE", "orders")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("ACTION_COOLDOWN", "1s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "admin:secret@tcp(db:3306)/orders?charset=utf8mb4&parseTime=True&loc=Local", cfg.DSN())
	assert.Equal(t, "cache:6379", cfg.Redis.RedisAddr())
	assert.Equal(t, time.Second, cfg.Action.Cooldown)
}

func TestLoad_NestedEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "file::memory:")
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_PASSWORD", "hunter2")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RABBITMQ_URL", "amqp://guest:guest@mq:5672/")
	t.Setenv("DOWNLOAD_ALLOWED_HOSTS", "files.example.com,cdn.example.com")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.DSN())
	assert.Equal(t, "cache:6380", cfg.Redis.RedisAddr())
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "amqp://guest:guest@mq:5672/", cfg.RabbitMQ.URL)
	assert.Equal(t, []string{"files.example.com", "cdn.example.com"}, cfg.Download.AllowedHosts)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: sqlite
  dsn: "file::memory:"
redis:
  addr: "localhost:6380"
log:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.DSN())
	assert.Equal(t, "localhost:6380", cfg.Redis.RedisAddr())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
