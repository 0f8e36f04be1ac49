// Package config loads command configuration from the environment.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hunyuanocr/hunyuanocr-go/pkg/ocr"
)

type Config struct {
	Client ClientConfig
	Cache  CacheConfig
	Proxy  ProxyConfig
}

// ClientConfig mirrors ocr.Config for environment-driven setup.
type ClientConfig struct {
	ServerURL           string        `env:"OCR_SERVER_URL" envDefault:"http://localhost:8000"`
	Model               string        `env:"OCR_MODEL" envDefault:"tencent/HunyuanOCR"`
	APIKey              string        `env:"OCR_API_KEY" envDefault:"EMPTY"`
	MaxTokens           int           `env:"OCR_MAX_TOKENS" envDefault:"16384"`
	Temperature         float64       `env:"OCR_TEMPERATURE" envDefault:"0"`
	ConnectTimeout      time.Duration `env:"OCR_CONNECT_TIMEOUT" envDefault:"10s"`
	ReadTimeout         time.Duration `env:"OCR_READ_TIMEOUT" envDefault:"120s"`
	MaxConnections      int           `env:"OCR_MAX_CONNECTIONS" envDefault:"10"`
	MaxWorkers          int           `env:"OCR_MAX_WORKERS" envDefault:"4"`
	ComposeDir          string        `env:"OCR_COMPOSE_DIR"`
	ContainerName       string        `env:"CONTAINER_NAME" envDefault:"hunyuan-ocr"`
	HealthCheckInterval time.Duration `env:"OCR_HEALTH_INTERVAL" envDefault:"2s"`
	HealthCheckTimeout  time.Duration `env:"OCR_HEALTH_TIMEOUT" envDefault:"300s"`
}

type CacheConfig struct {
	Enable   bool          `env:"CACHE_ENABLE"`
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"REDIS_TTL" envDefault:"24h"`
}

// ProxyConfig configures the watchdog proxy. Timeout values are plain
// seconds to stay compatible with the deployment's environment files.
type ProxyConfig struct {
	BackendURL        string        `env:"VLLM_URL" envDefault:"http://hunyuan-ocr:8000"`
	Port              int           `env:"PROXY_PORT" envDefault:"8000"`
	IdleTimeoutSec    int           `env:"IDLE_TIMEOUT" envDefault:"300"`
	CheckIntervalSec  int           `env:"CHECK_INTERVAL" envDefault:"30"`
	StartupTimeoutSec int           `env:"STARTUP_TIMEOUT" envDefault:"600"`
	ContainerName     string        `env:"CONTAINER_NAME" envDefault:"hunyuan-ocr"`
	ShutdownTimeout   time.Duration `env:"PROXY_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OCRConfig converts the environment view into the library config.
func (c ClientConfig) OCRConfig() ocr.Config {
	return ocr.Config{
		ServerURL:           c.ServerURL,
		Model:               c.Model,
		APIKey:              c.APIKey,
		MaxTokens:           c.MaxTokens,
		Temperature:         c.Temperature,
		ConnectTimeout:      c.ConnectTimeout,
		ReadTimeout:         c.ReadTimeout,
		MaxConnections:      c.MaxConnections,
		MaxWorkers:          c.MaxWorkers,
		ComposeDir:          c.ComposeDir,
		ContainerName:       c.ContainerName,
		HealthCheckInterval: c.HealthCheckInterval,
		HealthCheckTimeout:  c.HealthCheckTimeout,
	}
}

func (c ProxyConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutSec) * time.Second
}

func (c ProxyConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

func (c ProxyConfig) StartupTimeout() time.Duration {
	return time.Duration(c.StartupTimeoutSec) * time.Second
}
