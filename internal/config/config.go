// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the catalog database, the cache backend, upstream access, rate
// limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-catalog-cache")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the catalog database.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|mysql|postgres
	DSN    string // DB_DSN; a file path for sqlite
}

// CacheConfig selects and tunes the cache backend.
type CacheConfig struct {
	Driver   string        // CACHE_DRIVER: memory|redis|valkey|dynamodb|sql
	Addr     string        // CACHE_ADDR (host:port for redis/valkey, endpoint override for dynamodb)
	Password string        // CACHE_PASSWORD
	DB       int           // CACHE_DB (redis logical database)
	Table    string        // CACHE_TABLE (dynamodb table name)
	Region   string        // AWS_REGION
	Timeout  time.Duration // CACHE_TIMEOUT per operation
	FailOpen bool          // CACHE_FAIL_OPEN: serve from the store when the cache errors
}

// CatalogConfig tunes the cached product listing.
type CatalogConfig struct {
	TTL          time.Duration // PRODUCTS_TTL
	DefaultLimit int           // PRODUCTS_DEFAULT_LIMIT
	MaxLimit     int           // PRODUCTS_MAX_LIMIT
	StoreTimeout time.Duration // STORE_TIMEOUT
}

// UpstreamConfig configures the external sync call and token acquisition.
type UpstreamConfig struct {
	URL          string        // UPSTREAM_URL
	Timeout      time.Duration // UPSTREAM_TIMEOUT
	TokenURL     string        // TOKEN_URL; empty selects the static issuer
	ClientID     string        // TOKEN_CLIENT_ID
	ClientSecret string        // TOKEN_CLIENT_SECRET
	StaticToken  string        // STATIC_TOKEN
	TokenTTL     time.Duration // TOKEN_TTL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DB      DBConfig
	Cache   CacheConfig
	Catalog CatalogConfig

	// Webhook events
	EventTTL time.Duration // how long a processed event id is remembered

	// Outbound
	Upstream UpstreamConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// Cache drivers accepted by CACHE_DRIVER.
const (
	CacheMemory   = "memory"
	CacheRedis    = "redis"
	CacheValkey   = "valkey"
	CacheDynamoDB = "dynamodb"
	CacheSQL      = "sql"
)

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "3000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Storage
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:    getenv("DB_DSN", "catalog.db"),
		},
		Cache: CacheConfig{
			Driver:   strings.ToLower(getenv("CACHE_DRIVER", CacheMemory)),
			Addr:     getenv("CACHE_ADDR", "localhost:6379"),
			Password: getenv("CACHE_PASSWORD", ""),
			DB:       getint("CACHE_DB", 0),
			Table:    getenv("CACHE_TABLE", "catalog-cache"),
			Region:   getenv("AWS_REGION", "us-east-1"),
			Timeout:  getdur("CACHE_TIMEOUT", 500*time.Millisecond),
			FailOpen: getbool("CACHE_FAIL_OPEN", true),
		},
		Catalog: CatalogConfig{
			TTL:          getdur("PRODUCTS_TTL", 300*time.Second),
			DefaultLimit: getint("PRODUCTS_DEFAULT_LIMIT", 10),
			MaxLimit:     getint("PRODUCTS_MAX_LIMIT", 100),
			StoreTimeout: getdur("STORE_TIMEOUT", 5*time.Second),
		},

		EventTTL: getdur("EVENT_TTL", 24*time.Hour),

		Upstream: UpstreamConfig{
			URL:          getenv("UPSTREAM_URL", "https://jsonplaceholder.typicode.com/posts/1"),
			Timeout:      getdur("UPSTREAM_TIMEOUT", 2*time.Second),
			TokenURL:     getenv("TOKEN_URL", ""),
			ClientID:     getenv("TOKEN_CLIENT_ID", ""),
			ClientSecret: getenv("TOKEN_CLIENT_SECRET", ""),
			StaticToken:  getenv("STATIC_TOKEN", "farmlokal_secure_token_99"),
			TokenTTL:     getdur("TOKEN_TTL", time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 50.0),
		RateBurst: getint("RATE_BURST", 100),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-catalog-cache"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Cache.Driver == "valkey" || cfg.Cache.Driver == "redis" {
		cfg.Cache.Addr = strings.TrimPrefix(cfg.Cache.Addr, cfg.Cache.Driver+"://")
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, mysql, postgres")
	}
	if strings.TrimSpace(cfg.DB.DSN) == "" {
		return cfg, errors.New("DB_DSN must not be empty")
	}
	switch cfg.Cache.Driver {
	case CacheMemory, CacheRedis, CacheValkey, CacheDynamoDB, CacheSQL:
	default:
		return cfg, fmt.Errorf("CACHE_DRIVER %q is not one of: memory, redis, valkey, dynamodb, sql", cfg.Cache.Driver)
	}
	if cfg.Cache.Driver == CacheDynamoDB && strings.TrimSpace(cfg.Cache.Table) == "" {
		return cfg, errors.New("CACHE_TABLE must not be empty for the dynamodb cache")
	}
	if cfg.Cache.Timeout <= 0 {
		return cfg, errors.New("CACHE_TIMEOUT must be > 0")
	}
	if cfg.Catalog.TTL <= 0 {
		return cfg, errors.New("PRODUCTS_TTL must be > 0")
	}
	if cfg.Catalog.DefaultLimit < 1 {
		return cfg, errors.New("PRODUCTS_DEFAULT_LIMIT must be >= 1")
	}
	if cfg.Catalog.MaxLimit < cfg.Catalog.DefaultLimit {
		return cfg, errors.New("PRODUCTS_MAX_LIMIT must be >= PRODUCTS_DEFAULT_LIMIT")
	}
	if cfg.Catalog.StoreTimeout <= 0 {
		return cfg, errors.New("STORE_TIMEOUT must be > 0")
	}
	if cfg.EventTTL <= 0 {
		return cfg, errors.New("EVENT_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Upstream.URL) == "" {
		return cfg, errors.New("UPSTREAM_URL must not be empty")
	}
	if cfg.Upstream.Timeout <= 0 || cfg.Upstream.TokenTTL <= 0 {
		return cfg, errors.New("UPSTREAM_TIMEOUT and TOKEN_TTL must be > 0")
	}
	if strings.TrimSpace(cfg.Upstream.TokenURL) == "" && strings.TrimSpace(cfg.Upstream.StaticToken) == "" {
		return cfg, errors.New("either TOKEN_URL or STATIC_TOKEN must be set")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

// getdur accepts Go durations ("300ms", "5m") and bare integers as seconds,
// which is how the TTLs were historically configured.
func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
