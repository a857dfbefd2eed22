package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RateLimitConfig struct {
	ID                string  `yaml:"id"`
	RequestsPerMinute float64 `yaml:"requestsPerMinute"`
	Burst             int     `yaml:"burst"`
}

type ObservabilityConfig struct {
	ServiceName string `yaml:"serviceName"`
	Metrics     bool   `yaml:"metrics"`
	Tracing     bool   `yaml:"tracing"`
	LogRequests bool   `yaml:"logRequests"`
}

type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`
	AllowCredentials bool     `yaml:"allowCredentials"`
}

type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	EventBuffer   int                 `yaml:"eventBuffer"`
	RateLimits    []RateLimitConfig   `yaml:"rateLimits"`
	Observability ObservabilityConfig `yaml:"observability"`
	CORS          CORSConfig          `yaml:"cors"`
	Auth          AuthConfig          `yaml:"auth"`
	Security      SecurityConfig      `yaml:"security"`
}

// AuthConfig controls bearer-token authentication. The token subject names
// the caller account of every write.
type AuthConfig struct {
	Enabled        bool          `yaml:"enabled"`
	HMACSecret     string        `yaml:"hmacSecret"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	ScopeClaim     string        `yaml:"scopeClaim"`
	AdminScope     string        `yaml:"adminScope"`
	OptionalPaths  []string      `yaml:"optionalPaths"`
	AllowAnonymous bool          `yaml:"allowAnonymous"`
	ClockSkew      time.Duration `yaml:"clockSkew"`

	allowAnonymousSet bool `yaml:"-"`
	enabledSet        bool `yaml:"-"`
}

func (a *AuthConfig) UnmarshalYAML(node *yaml.Node) error {
	type rawAuthConfig struct {
		Enabled        *bool         `yaml:"enabled"`
		HMACSecret     string        `yaml:"hmacSecret"`
		Issuer         string        `yaml:"issuer"`
		Audience       string        `yaml:"audience"`
		ScopeClaim     string        `yaml:"scopeClaim"`
		AdminScope     string        `yaml:"adminScope"`
		OptionalPaths  []string      `yaml:"optionalPaths"`
		AllowAnonymous *bool         `yaml:"allowAnonymous"`
		ClockSkew      time.Duration `yaml:"clockSkew"`
	}
	var raw rawAuthConfig
	if err := node.Decode(&raw); err != nil {
		return err
	}
	a.Enabled, a.enabledSet = false, raw.Enabled != nil
	if raw.Enabled != nil {
		a.Enabled = *raw.Enabled
	}
	a.AllowAnonymous, a.allowAnonymousSet = false, raw.AllowAnonymous != nil
	if raw.AllowAnonymous != nil {
		a.AllowAnonymous = *raw.AllowAnonymous
	}
	a.HMACSecret = raw.HMACSecret
	a.Issuer = raw.Issuer
	a.Audience = raw.Audience
	a.ScopeClaim = raw.ScopeClaim
	a.AdminScope = raw.AdminScope
	a.OptionalPaths = raw.OptionalPaths
	a.ClockSkew = raw.ClockSkew
	return nil
}

type SecurityConfig struct {
	TLSCertFile string `yaml:"tlsCertFile"`
	TLSKeyFile  string `yaml:"tlsKeyFile"`
}

// SecretFunc resolves the HMAC secret when the file leaves it empty.
type SecretFunc func() (string, error)

// Load reads the gateway configuration. An empty path returns the defaults.
func Load(path string) (Config, error) {
	return LoadWithSecret(path, nil)
}

// LoadWithSecret is Load with a fallback source for auth.hmacSecret, consulted
// only when auth is enabled and the file does not set a secret.
func LoadWithSecret(path string, secret SecretFunc) (Config, error) {
	cfg := Config{
		ListenAddress: ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		EventBuffer:   1024,
		Observability: ObservabilityConfig{
			ServiceName: "cdp-gateway",
			Metrics:     true,
			Tracing:     true,
			LogRequests: true,
		},
		Auth: AuthConfig{
			Enabled:    true,
			ScopeClaim: "scope",
			AdminScope: "cdp:admin",
			ClockSkew:  2 * time.Minute,
			enabledSet: true,
		},
	}
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyAuthDefaults()
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" && secret != nil {
		value, err := secret()
		if err != nil {
			return Config{}, fmt.Errorf("resolve auth secret: %w", err)
		}
		cfg.Auth.HMACSecret = value
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (cfg *Config) applyAuthDefaults() {
	if cfg == nil {
		return
	}
	if !cfg.Auth.enabledSet {
		cfg.Auth.Enabled = true
		cfg.Auth.enabledSet = true
	}
	if cfg.Auth.ClockSkew <= 0 {
		cfg.Auth.ClockSkew = 2 * time.Minute
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if cfg.Auth.AdminScope == "" {
		cfg.Auth.AdminScope = "cdp:admin"
	}
}

var (
	ErrAuthEnabledNotConfigured = errors.New("auth.enabled must be explicitly set for TLS deployments")
	ErrAuthSecretMissing        = errors.New("auth.hmacSecret is required when auth is enabled")
)

func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("listen address is required")
	}
	if cfg.isSensitiveDeployment() && !cfg.Auth.enabledSet {
		return ErrAuthEnabledNotConfigured
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return ErrAuthSecretMissing
	}
	if cfg.Auth.AllowAnonymous && !cfg.Auth.allowAnonymousSet {
		return fmt.Errorf("auth.allowAnonymous must be explicitly set to true to enable anonymous access")
	}
	trimmed := make([]string, len(cfg.Auth.OptionalPaths))
	for i, path := range cfg.Auth.OptionalPaths {
		trimmedPath := strings.TrimSpace(path)
		if trimmedPath == "" {
			return fmt.Errorf("auth.optionalPaths[%d] cannot be empty", i)
		}
		if !strings.HasPrefix(trimmedPath, "/") {
			return fmt.Errorf("auth.optionalPaths[%d] must start with '/'", i)
		}
		trimmed[i] = trimmedPath
	}
	cfg.Auth.OptionalPaths = trimmed
	if cfg.Auth.Enabled && cfg.Auth.AllowAnonymous && len(cfg.Auth.OptionalPaths) == 0 {
		return fmt.Errorf("auth.optionalPaths must list at least one entry when auth.allowAnonymous is true")
	}
	seen := make(map[string]struct{}, len(cfg.RateLimits))
	for i, limit := range cfg.RateLimits {
		id := strings.TrimSpace(limit.ID)
		if id == "" {
			return fmt.Errorf("rateLimits[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("rateLimits[%d].id %q is duplicated", i, id)
		}
		seen[id] = struct{}{}
		if limit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rateLimits[%d].requestsPerMinute must be positive", i)
		}
	}
	if (cfg.Security.TLSCertFile == "") != (cfg.Security.TLSKeyFile == "") {
		return fmt.Errorf("security.tlsCertFile and security.tlsKeyFile must be set together")
	}
	return nil
}

// RateLimit returns the configured limit with the given id.
func (cfg Config) RateLimit(id string) (RateLimitConfig, bool) {
	for _, limit := range cfg.RateLimits {
		if limit.ID == id {
			return limit, true
		}
	}
	return RateLimitConfig{}, false
}

func (cfg *Config) isSensitiveDeployment() bool {
	if cfg == nil {
		return false
	}
	return strings.TrimSpace(cfg.Security.TLSCertFile) != "" || strings.TrimSpace(cfg.Security.TLSKeyFile) != ""
}
