package ocr

import "time"

const (
	// DefaultServerURL is the address of a locally running vLLM server.
	DefaultServerURL = "http://localhost:8000"

	// DefaultModel is the published identifier of the HunyuanOCR model.
	DefaultModel = "tencent/HunyuanOCR"

	// NoAPIKey is the sentinel meaning no authentication is configured.
	// When the API key equals this value no Authorization header is sent.
	NoAPIKey = "EMPTY"
)

// Config holds connection and generation parameters for a client.
// It is read-only once a client has been constructed from it; one
// config may safely back any number of concurrent requests.
type Config struct {
	ServerURL string
	Model     string
	APIKey    string

	// Generation settings
	MaxTokens   int
	Temperature float64

	// Timeouts
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	// Connection pool settings (for concurrent requests)
	MaxConnections int

	// Concurrency settings
	MaxWorkers int

	// Docker settings for VRAM management
	ComposeDir    string
	ContainerName string

	// Health check settings. The timeout is deliberately long: model
	// loading can take minutes, unlike a single network round trip.
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		ServerURL:           DefaultServerURL,
		Model:               DefaultModel,
		APIKey:              NoAPIKey,
		MaxTokens:           16384,
		Temperature:         0.0,
		ConnectTimeout:      10 * time.Second,
		ReadTimeout:         120 * time.Second,
		MaxConnections:      10,
		MaxWorkers:          4,
		ContainerName:       "hunyuan-ocr",
		HealthCheckInterval: 2 * time.Second,
		HealthCheckTimeout:  300 * time.Second,
	}
}

// WithDefaults returns a copy with zero-valued fields filled from
// DefaultConfig. MaxWorkers is left alone: a non-positive worker count
// is a configuration error that surfaces on batch calls rather than
// being silently repaired.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ServerURL == "" {
		c.ServerURL = def.ServerURL
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.APIKey == "" {
		c.APIKey = def.APIKey
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = def.MaxConnections
	}
	if c.ContainerName == "" {
		c.ContainerName = def.ContainerName
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = def.HealthCheckInterval
	}
	if c.HealthCheckTimeout == 0 {
		c.HealthCheckTimeout = def.HealthCheckTimeout
	}
	return c
}
