package config

import "time"

// Config is the root configuration of the documentation gateway.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Routes    []RouteConfig   `yaml:"routes" validate:"dive"`
	Swagger   SwaggerConfig   `yaml:"swagger"`
	Transport TransportConfig `yaml:"transport"`
	Transform TransformConfig `yaml:"transform"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig defines the HTTP listener serving documentation.
type ServerConfig struct {
	Address         string          `yaml:"address" validate:"required"`
	ReadTimeout     time.Duration   `yaml:"read_timeout"`
	WriteTimeout    time.Duration   `yaml:"write_timeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	WatchConfig     bool            `yaml:"watch_config"` // reload on file change
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is a token bucket shared by all documentation requests.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Rate    float64 `yaml:"rate" validate:"required_if=Enabled true,gte=0"` // requests per second
	Burst   int     `yaml:"burst" validate:"gte=0"`
}

// LoggingConfig defines logging settings
type LoggingConfig struct {
	Level    string            `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Output   string            `yaml:"output"` // stdout, stderr or a file path
	Rotation LogRotationConfig `yaml:"rotation"`
}

// LogRotationConfig defines log file rotation settings (powered by lumberjack).
type LogRotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // max megabytes before rotation (default 100)
	MaxBackups int  `yaml:"max_backups"` // old rotated files to keep (default 3)
	MaxAge     int  `yaml:"max_age"`     // days to retain old files (default 28)
	Compress   bool `yaml:"compress"`
	LocalTime  bool `yaml:"local_time"`
}

// RouteConfig is one gateway route. Routes without a service key are
// never documented.
type RouteConfig struct {
	ServiceKey       string `yaml:"service_key"`
	UpstreamMethod   string `yaml:"upstream_method"`
	UpstreamPath     string `yaml:"upstream_path" validate:"required"`
	DownstreamPath   string `yaml:"downstream_path" validate:"required"`
	VirtualDirectory string `yaml:"virtual_directory"`
}

// SwaggerConfig defines the documentation registry.
type SwaggerConfig struct {
	PathPrefix string           `yaml:"path_prefix"`
	Headers    []HeaderConfig   `yaml:"headers" validate:"dive"` // sent with every downstream fetch
	Endpoints  []EndpointConfig `yaml:"endpoints" validate:"dive"`
}

// HeaderConfig is a static header attached to downstream fetches.
type HeaderConfig struct {
	Name  string `yaml:"name" validate:"required"`
	Value string `yaml:"value"`
}

// EndpointConfig registers the documentation of one service.
type EndpointConfig struct {
	Key                string      `yaml:"key" validate:"required"`
	PathSegment        string      `yaml:"path_segment"`
	VersionPlaceholder string      `yaml:"version_placeholder"`
	HostOverride       string      `yaml:"host_override"`
	Versions           []DocConfig `yaml:"versions" validate:"required,min=1,dive"`
}

// DocConfig is one version of a service's document.
type DocConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version" validate:"required"`
	URL     string `yaml:"url" validate:"required,url"`
}

// TransportConfig controls downstream document fetches.
type TransportConfig struct {
	Timeout         time.Duration        `yaml:"timeout"`
	MaxRetries      int                  `yaml:"max_retries" validate:"gte=0"`
	InitialInterval time.Duration        `yaml:"initial_interval"`
	MaxInterval     time.Duration        `yaml:"max_interval"`
	Coalesce        bool                 `yaml:"coalesce"` // share identical in-flight fetches
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig defines a per-host circuit breaker.
type CircuitBreakerConfig struct {
	Enabled          bool          `yaml:"enabled"`
	FailureThreshold int           `yaml:"failure_threshold" validate:"gte=0"` // consecutive failures before opening
	MaxRequests      int           `yaml:"max_requests" validate:"gte=0"`      // allowed while half-open
	Interval         time.Duration `yaml:"interval"`                           // closed-state counter reset
	Timeout          time.Duration `yaml:"timeout"`                            // open -> half-open
}

// TransformConfig controls document rewriting.
type TransformConfig struct {
	Scheme string `yaml:"scheme" validate:"omitempty,oneof=http https"`
}

// MetricsConfig defines Prometheus metrics exposure.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig defines OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	ServiceName string            `yaml:"service_name"`
	SampleRate  float64           `yaml:"sample_rate" validate:"gte=0,lte=1"`
	Headers     map[string]string `yaml:"headers"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
		Swagger: SwaggerConfig{
			PathPrefix: "/swagger/docs",
		},
		Transport: TransportConfig{
			Timeout:         10 * time.Second,
			MaxRetries:      2,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				MaxRequests:      1,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			ServiceName: "docgateway",
			SampleRate:  1.0,
		},
	}
}
