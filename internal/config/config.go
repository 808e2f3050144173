package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const DefaultEnvFile = ".env"

type AppConfig struct {
	Env          string        `env:"APP_ENV,default=production"`
	Addr         string        `env:"APP_ADDR,default=127.0.0.1:3000"`
	ReadTimeout  time.Duration `env:"APP_READ_TIMEOUT,default=10s"`
	WriteTimeout time.Duration `env:"APP_WRITE_TIMEOUT,default=30s"`
	IdleTimeout  time.Duration `env:"APP_IDLE_TIMEOUT,default=60s"`
}

type APIConfig struct {
	BaseURL    string        `env:"API_BASE_URL,default=http://localhost:8080"`
	Timeout    time.Duration `env:"API_TIMEOUT,default=10s"`
	DeviceID   string        `env:"API_DEVICE_ID"`
	AppVersion string        `env:"API_APP_VERSION,default=dev"`
}

type StoreConfig struct {
	Backend   string `env:"STORE_BACKEND,default=file"`
	Path      string `env:"STORE_PATH,default=.polyconsole/token"`
	BoltPath  string `env:"STORE_BOLT_PATH,default=.polyconsole/console.db"`
	RedisAddr string `env:"STORE_REDIS_ADDR,default=localhost:6379"`
	RedisDB   int    `env:"STORE_REDIS_DB,default=0"`
	RedisKey  string `env:"STORE_REDIS_KEY,default=polyconsole:token"`
}

type DbConfig struct {
	DSN             string        `env:"POSTGRES_DSN"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=4"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=2"`
	MaxConnLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
}

type ConsoleConfig struct {
	LoginRateLimit       int           `env:"CONSOLE_LOGIN_RATE_LIMIT,default=10"`
	LoginRateWindow      time.Duration `env:"CONSOLE_LOGIN_RATE_WINDOW,default=1m"`
	LogoutOnUnauthorized bool          `env:"CONSOLE_LOGOUT_ON_UNAUTHORIZED,default=false"`
	FollowStore          bool          `env:"CONSOLE_FOLLOW_STORE,default=true"`
	// AllowedOrigins may read /session cross-origin; separate entries with ";".
	AllowedOrigins []string `env:"CONSOLE_ALLOWED_ORIGINS"`
}

type Config struct {
	AppConfig     AppConfig
	APIConfig     APIConfig
	StoreConfig   StoreConfig
	DbConfig      DbConfig
	ConsoleConfig ConsoleConfig
}

var (
	ErrInvalidBaseURL = errors.New("API_BASE_URL must be an absolute http(s) URL")
	ErrUnknownBackend = errors.New("unknown STORE_BACKEND")
	ErrMissingDSN     = errors.New("POSTGRES_DSN is required for the postgres store")
)

// LoadConfig reads envFile into the process environment (a missing file is
// not an error) and decodes the result.
func LoadConfig(logger *zap.Logger, envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to load .env file", zap.String("path", envFile), zap.Error(err))
			return nil, err
		}
		logger.Debug("no .env file, using process environment", zap.String("path", envFile))
	}

	return FromEnv()
}

// FromEnv decodes the configuration from the current environment only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.APIConfig.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidBaseURL
	}
	c.APIConfig.BaseURL = strings.TrimRight(c.APIConfig.BaseURL, "/")

	c.StoreConfig.Backend = strings.ToLower(strings.TrimSpace(c.StoreConfig.Backend))
	switch c.StoreConfig.Backend {
	case "memory", "file", "bolt", "redis":
	case "postgres":
		if c.DbConfig.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrUnknownBackend
	}
	return nil
}

func (c *Config) Development() bool {
	return strings.EqualFold(c.AppConfig.Env, "development")
}
