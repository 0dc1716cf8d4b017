package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Download DownloadConfig `mapstructure:"download"`
	Action   ActionConfig   `mapstructure:"action"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql, postgres or sqlite
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type MySQLConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	ListTTL  time.Duration `mapstructure:"list_ttl"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type DownloadConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	// AllowedHosts lists the hosts files may be fetched from. Empty
	// disables downloads.
	AllowedHosts []string      `mapstructure:"allowed_hosts"`
}

type ActionConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// Load reads path when it is non-empty, then overlays environment
// variables. Every key has a default so that AutomaticEnv sees it. The flat
// names PORT, MYSQL_*, REDIS_HOST and RABBITMQ_URL are honored alongside the
// nested keys (DATABASE_DRIVER, REDIS_LIST_TTL, ...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range map[string]string{
		"server.port":    "PORT",
		"mysql.host":     "MYSQL_HOST",
		"mysql.port":     "MYSQL_PORT",
		"mysql.user":     "MYSQL_USER",
		"mysql.password": "MYSQL_PASSWORD",
		"mysql.database": "MYSQL_DATABASE",
		"redis.host":     "REDIS_HOST",
		"rabbitmq.url":   "RABBITMQ_URL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", "3306")
	v.SetDefault("mysql.user", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "")
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 50)
	v.SetDefault("redis.list_ttl", 10*time.Second)
	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "order.exchange")
	v.SetDefault("download.timeout", 30*time.Second)
	v.SetDefault("download.allowed_hosts", []string{})
	v.SetDefault("action.cooldown", 500*time.Millisecond)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

// DSN returns the explicit DSN, or builds a MySQL one from the mysql section.
func (c *Config) DSN() string {
	if c.Database.DSN != "" {
		return c.Database.DSN
	}
	m := c.MySQL
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.User, m.Password, m.Host, m.Port, m.Database)
}

// RedisAddr prefers redis.addr and falls back to REDIS_HOST on the default port.
func (c *RedisConfig) RedisAddr() string {
	if c.Addr != "" {
		return c.Addr
	}
	if c.Host != "" {
		return c.Host + ":6379"
	}
	return ""
}
