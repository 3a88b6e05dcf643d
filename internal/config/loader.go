package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/wudi/docgateway/internal/logging"
	"go.uber.org/zap"
)

// validHTTPMethods contains all valid HTTP method names.
var validHTTPMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true,
	"DELETE": true, "PATCH": true, "OPTIONS": true, "TRACE": true,
}

// Loader handles configuration loading and parsing
type Loader struct {
	envPattern *regexp.Regexp
	validate   *validator.Validate
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	return &Loader{
		envPattern: regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`),
		validate:   v,
	}
}

// Load reads and parses a configuration file
func (l *Loader) Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.Parse(data)
}

// Parse parses configuration from YAML bytes
func (l *Loader) Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := l.expandEnvVars(string(data))

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := l.validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func (l *Loader) expandEnvVars(input string) string {
	return l.envPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match // Keep original if env var not set
	})
}

// validateConfig runs struct tag validation followed by cross-field checks.
func (l *Loader) validateConfig(cfg *Config) error {
	if err := l.validate.Struct(cfg); err != nil {
		return err
	}

	if !strings.HasPrefix(cfg.Swagger.PathPrefix, "/") {
		return fmt.Errorf("swagger.path_prefix must start with '/': %q", cfg.Swagger.PathPrefix)
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/': %q", cfg.Metrics.Path)
	}

	keys := make(map[string]bool, len(cfg.Swagger.Endpoints))
	for _, ep := range cfg.Swagger.Endpoints {
		if keys[ep.Key] {
			return fmt.Errorf("duplicate swagger endpoint key: %s", ep.Key)
		}
		keys[ep.Key] = true

		versions := make(map[string]bool, len(ep.Versions))
		for _, v := range ep.Versions {
			if versions[v.Version] {
				return fmt.Errorf("swagger endpoint %s: duplicate version %s", ep.Key, v.Version)
			}
			versions[v.Version] = true
		}
	}

	for i, route := range cfg.Routes {
		if route.UpstreamMethod != "" && !validHTTPMethods[strings.ToUpper(route.UpstreamMethod)] {
			return fmt.Errorf("route %d: invalid upstream_method: %s", i, route.UpstreamMethod)
		}
		if route.ServiceKey != "" && !keys[route.ServiceKey] {
			logging.Warn("route references a service key with no swagger endpoint",
				zap.Int("route", i),
				zap.String("service_key", route.ServiceKey),
				zap.String("upstream_path", route.UpstreamPath),
			)
		}
	}

	return nil
}
