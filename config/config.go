package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type GRPC struct {
	Addr string `yaml:"addr" env:"ADDR"` // пусто — gRPC admin выключен
}

type HTTP struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	ReadTimeout  time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
	AllowOrigins []string      `yaml:"allowOrigins" env:"ALLOW_ORIGINS"`
}

type Logging struct {
	Env       string `yaml:"env" env:"ENV"`             // dev|stage|prod
	Service   string `yaml:"service" env:"SERVICE"`     // collab-service
	Version   string `yaml:"version" env:"VERSION"`     // v0.1.0
	Backend   string `yaml:"backend" env:"BACKEND"`     // std|zap
	AddSource bool   `yaml:"addSource" env:"ADD_SOURCE"` // false|true
	Debug     bool   `yaml:"debug" env:"DEBUG"`         // false|true
}

type Postgres struct {
	DSN               string        `yaml:"dsn" env:"DSN"`
	MaxConns          int32         `yaml:"maxConns" env:"MAX_CONNS"`
	MinConns          int32         `yaml:"minConns" env:"MIN_CONNS"`
	MaxConnLifetime   time.Duration `yaml:"maxConnLifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `yaml:"maxConnIdleTime" env:"MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `yaml:"healthCheckPeriod" env:"HEALTH_CHECK_PERIOD"`
}

type SQLite struct {
	Path string `yaml:"path" env:"PATH"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Storage struct {
	Driver   string   `yaml:"driver" env:"DRIVER"` // memory|sqlite|postgres
	Postgres Postgres `yaml:"postgres" envPrefix:"POSTGRES_"`
	SQLite   SQLite   `yaml:"sqlite" envPrefix:"SQLITE_"`
}

type WS struct {
	PingInterval time.Duration `yaml:"pingInterval" env:"PING_INTERVAL"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	ReadLimit    int64         `yaml:"readLimit" env:"READ_LIMIT"`   // байт на одно сообщение
	SendBuffer   int           `yaml:"sendBuffer" env:"SEND_BUFFER"` // исходящая очередь на подключение
}

type Auth struct {
	JWTSecret string `yaml:"jwtSecret" env:"JWT_SECRET"` // пусто — durableId берётся из join-room
	Issuer    string `yaml:"issuer" env:"ISSUER"`
	Audience  string `yaml:"audience" env:"AUDIENCE"`
	Required  bool   `yaml:"required" env:"REQUIRED"` // отклонять WS без валидного токена
}

type Bridge struct {
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http" envPrefix:"HTTP_"`
	GRPC    GRPC    `yaml:"grpc" envPrefix:"GRPC_"`
	Logging Logging `yaml:"logging" envPrefix:"LOG_"`
	Storage Storage `yaml:"storage" envPrefix:"STORAGE_"`
	WS      WS      `yaml:"ws" envPrefix:"WS_"`
	Auth    Auth    `yaml:"auth" envPrefix:"AUTH_"`
	Bridge  Bridge  `yaml:"bridge" envPrefix:"BRIDGE_"`
}

// LoadConfig читает YAML из CONFIG_PATH (файла может не быть)
// и накладывает переменные окружения COLLAB_*.
func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// только env + дефолты
	default:
		return nil, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "COLLAB_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// установка дефолтов, если значения не указаны
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.HTTP.ReadTimeout = durationOr(c.HTTP.ReadTimeout, 10*time.Second)
	c.HTTP.IdleTimeout = durationOr(c.HTTP.IdleTimeout, 60*time.Second)

	if c.Logging.Service == "" {
		c.Logging.Service = "collab-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Logging.Backend != "std" && c.Logging.Backend != "zap" {
		return fmt.Errorf("logging.backend must be std or zap, got %q", c.Logging.Backend)
	}

	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case "":
		c.Storage.Driver = DriverMemory
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.SQLite.Path == "" {
			c.Storage.SQLite.Path = "./data/collab.db"
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	c.WS.PingInterval = durationOr(c.WS.PingInterval, 15*time.Second)
	c.WS.WriteTimeout = durationOr(c.WS.WriteTimeout, 5*time.Second)
	if c.WS.ReadLimit <= 0 {
		c.WS.ReadLimit = 1 << 20
	}
	if c.WS.SendBuffer <= 0 {
		c.WS.SendBuffer = 64
	}

	if c.Auth.Required && c.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret is required when auth.required is set")
	}

	c.Bridge.Timeout = durationOr(c.Bridge.Timeout, 5*time.Second)
	return nil
}

func durationOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
