package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// devJWTSecret signs tokens in development when no secret is configured.
const devJWTSecret = "notapoint-development-secret"

// Config holds all configuration for the server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Logging   LoggingConfig
	Compare   CompareConfig
	Route     RouteConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Environment    string        `mapstructure:"environment"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ShutdownGrace  time.Duration `mapstructure:"shutdown_grace"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// CompareConfig bounds comparisons. TravelCostPerKm is a decimal string;
// Load parses it into TravelCost.
type CompareConfig struct {
	DefaultMaxStores int     `mapstructure:"default_max_stores"`
	MaxStoresLimit   int     `mapstructure:"max_stores_limit"`
	TravelCostPerKm  string  `mapstructure:"travel_cost_per_km"`
	MaxDistanceKm    float64 `mapstructure:"max_distance_km"`

	TravelCost decimal.Decimal `mapstructure:"-"`
}

// RouteConfig configures the route estimator. An empty ProviderURL keeps the
// straight-line heuristic.
type RouteConfig struct {
	DriveSpeedKmh float64       `mapstructure:"drive_speed_kmh"`
	WalkSpeedKmh  float64       `mapstructure:"walk_speed_kmh"`
	ProviderURL   string        `mapstructure:"provider_url"`
	ProviderRPS   float64       `mapstructure:"provider_rps"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheSize     int           `mapstructure:"cache_size"`
}

type RateLimitConfig struct {
	IngestPerSecond float64 `mapstructure:"ingest_per_second"`
	IngestBurst     int     `mapstructure:"ingest_burst"`
}

// Load reads configuration from an optional YAML file and NOTAPOINT_*
// environment variables (NOTAPOINT_SERVER_PORT overrides server.port).
// configFile may be empty to search the default locations.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/notapoint/")
	}

	v.SetEnvPrefix("NOTAPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_grace", "10s")

	v.SetDefault("database.path", "./data/notapoint.db")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "168h")

	v.SetDefault("logging.level", "info")

	v.SetDefault("compare.default_max_stores", 3)
	v.SetDefault("compare.max_stores_limit", 5)
	v.SetDefault("compare.travel_cost_per_km", "0")
	v.SetDefault("compare.max_distance_km", 0)

	v.SetDefault("route.drive_speed_kmh", 30)
	v.SetDefault("route.walk_speed_kmh", 5)
	v.SetDefault("route.provider_url", "")
	v.SetDefault("route.provider_rps", 5)
	v.SetDefault("route.timeout", "2s")
	v.SetDefault("route.cache_ttl", "15m")
	v.SetDefault("route.cache_size", 1024)

	v.SetDefault("ratelimit.ingest_per_second", 2)
	v.SetDefault("ratelimit.ingest_burst", 20)
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Database.Path == "" {
		return errors.New("database path is required (set NOTAPOINT_DATABASE_PATH)")
	}

	if cfg.Auth.JWTSecret == "" {
		if cfg.Server.Environment != "development" {
			return errors.New("JWT secret is required outside development (set NOTAPOINT_AUTH_JWT_SECRET)")
		}
		cfg.Auth.JWTSecret = devJWTSecret
	}
	if cfg.Auth.TokenTTL <= 0 {
		return fmt.Errorf("token ttl must be positive, got: %s", cfg.Auth.TokenTTL)
	}

	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}

	if cfg.Compare.DefaultMaxStores < 1 {
		return fmt.Errorf("default max stores must be at least 1, got: %d", cfg.Compare.DefaultMaxStores)
	}
	if cfg.Compare.MaxStoresLimit < cfg.Compare.DefaultMaxStores {
		return fmt.Errorf("max stores limit (%d) is below the default (%d)", cfg.Compare.MaxStoresLimit, cfg.Compare.DefaultMaxStores)
	}
	cost, err := decimal.NewFromString(cfg.Compare.TravelCostPerKm)
	if err != nil || cost.IsNegative() {
		return fmt.Errorf("travel cost per km must be a non-negative decimal, got: %q", cfg.Compare.TravelCostPerKm)
	}
	cfg.Compare.TravelCost = cost
	if cfg.Compare.MaxDistanceKm < 0 {
		return fmt.Errorf("max distance must not be negative, got: %v", cfg.Compare.MaxDistanceKm)
	}

	if cfg.Route.DriveSpeedKmh <= 0 || cfg.Route.WalkSpeedKmh <= 0 {
		return errors.New("route speeds must be positive")
	}
	if cfg.Route.Timeout <= 0 {
		return fmt.Errorf("route timeout must be positive, got: %s", cfg.Route.Timeout)
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
}
