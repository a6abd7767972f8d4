// Package config loads gateway settings.
//
// Sources are layered, later ones winning:
//  1. compiled-in defaults
//  2. an optional YAML file named by GATEWAY_CONFIG
//  3. GATEWAY_* environment variables
//
// Nested keys use a double underscore in the environment, so
// GATEWAY_RECOMMENDER__BASE_URL sets recommender.base_url.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is stripped from every environment key.
	EnvPrefix = "GATEWAY_"
	// ConfigPathEnvVar names the optional YAML file.
	ConfigPathEnvVar = "GATEWAY_CONFIG"

	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Log         LogConfig         `koanf:"log"`
	Store       StoreConfig       `koanf:"store"`
	Vocabulary  VocabularyConfig  `koanf:"vocabulary"`
	Recommender RecommenderConfig `koanf:"recommender"`
	Breaker     BreakerConfig     `koanf:"breaker"`
	Discover    DiscoverConfig    `koanf:"discover"`
	Normalize   NormalizeConfig   `koanf:"normalize"`
	CORS        CORSConfig        `koanf:"cors"`
	RateLimit   RateLimitConfig   `koanf:"rate_limit"`
	Events      EventsConfig      `koanf:"events"`
	Metrics     MetricsConfig     `koanf:"metrics"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// StoreConfig selects where account snapshots are persisted.
type StoreConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

type VocabularyConfig struct {
	Path string `koanf:"path"`
}

type RecommenderConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

type BreakerConfig struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

type DiscoverConfig struct {
	MinVotes     int `koanf:"min_votes"`
	DefaultLimit int `koanf:"default_limit"`
}

type NormalizeConfig struct {
	PlaceholderImage string `koanf:"placeholder_image"`
	CurrencySymbol   string `koanf:"currency_symbol"`
	FreeLabel        string `koanf:"free_label"`
}

type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// RateLimitConfig throttles POST /api/users/login per client IP.
type RateLimitConfig struct {
	LoginRequests int           `koanf:"login_requests"`
	LoginWindow   time.Duration `koanf:"login_window"`
}

type EventsConfig struct {
	ForwardRatings bool  `koanf:"forward_ratings"`
	Buffer         int64 `koanf:"buffer"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Store: StoreConfig{
			Driver: DriverFile,
			Path:   "data/users.json",
		},
		Vocabulary: VocabularyConfig{
			Path: "data/games.csv",
		},
		Recommender: RecommenderConfig{
			BaseURL: "http://localhost:4000",
			Timeout: 10 * time.Second,
		},
		Breaker: BreakerConfig{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Discover: DiscoverConfig{
			MinVotes:     20,
			DefaultLimit: 10,
		},
		Normalize: NormalizeConfig{
			PlaceholderImage: "https://placehold.co/600x400/101010/ffffff?text=Game",
			CurrencySymbol:   "$",
			FreeLabel:        "Free",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000", "exp://localhost:8081"},
		},
		RateLimit: RateLimitConfig{
			LoginRequests: 10,
			LoginWindow:   time.Minute,
		},
		Events: EventsConfig{
			ForwardRatings: true,
			Buffer:         64,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load builds the configuration from defaults, the optional file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSlices(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envTransform maps GATEWAY_SERVER__PORT to server.port. The config path
// variable itself is not a setting and is dropped.
func envTransform(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

var sliceKeys = []string{
	"cors.allowed_origins",
}

// splitSlices turns comma-separated strings from the environment into
// slices. Values already loaded as lists are left alone.
func splitSlices(k *koanf.Koanf) error {
	for _, path := range sliceKeys {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(raw, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if err := k.Set(path, out); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate rejects settings the gateway cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}
	for name, d := range map[string]time.Duration{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"recommender.timeout":     c.Recommender.Timeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	switch c.Store.Driver {
	case DriverFile, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("store.driver must be %q or %q, got %q", DriverFile, DriverSQLite, c.Store.Driver))
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}

	if strings.TrimSpace(c.Recommender.BaseURL) == "" {
		errs = append(errs, errors.New("recommender.base_url is required"))
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if c.RateLimit.LoginRequests < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.login_requests must not be negative, got %d", c.RateLimit.LoginRequests))
	}

	return errors.Join(errs...)
}
