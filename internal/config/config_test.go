package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("MustLoad should not panic on valid defaults, got: %v", r)
		}
	}()
	cfg := MustLoad()
	if cfg.APIBasePath == "" {
		t.Fatalf("unexpected empty config from MustLoad")
	}
}

// --- defaults ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "3000" || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("server defaults unexpected: port=%q base=%q", cfg.Port, cfg.APIBasePath)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.DSN != "catalog.db" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.Cache.Driver != CacheMemory || cfg.Cache.Timeout != 500*time.Millisecond || !cfg.Cache.FailOpen {
		t.Fatalf("cache defaults unexpected: %+v", cfg.Cache)
	}
	if cfg.Catalog.TTL != 300*time.Second || cfg.Catalog.DefaultLimit != 10 ||
		cfg.Catalog.MaxLimit != 100 || cfg.Catalog.StoreTimeout != 5*time.Second {
		t.Fatalf("catalog defaults unexpected: %+v", cfg.Catalog)
	}
	if cfg.EventTTL != 24*time.Hour {
		t.Fatalf("event ttl default unexpected: %v", cfg.EventTTL)
	}
	if cfg.Upstream.Timeout != 2*time.Second || cfg.Upstream.TokenTTL != time.Hour ||
		cfg.Upstream.TokenURL != "" || cfg.Upstream.StaticToken == "" {
		t.Fatalf("upstream defaults unexpected: %+v", cfg.Upstream)
	}
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_Overrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging / Docs
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v2/")

	// Storage
	t.Setenv("DB_DRIVER", "POSTGRES")
	t.Setenv("DB_DSN", "postgres://u:p@db/catalog")
	t.Setenv("CACHE_DRIVER", "valkey")
	t.Setenv("CACHE_ADDR", "valkey://cache:6379")
	t.Setenv("CACHE_PASSWORD", "secret")
	t.Setenv("CACHE_DB", "2")
	t.Setenv("CACHE_TIMEOUT", "250ms")
	t.Setenv("CACHE_FAIL_OPEN", "off")
	t.Setenv("PRODUCTS_TTL", "600") // bare seconds
	t.Setenv("PRODUCTS_DEFAULT_LIMIT", "20")
	t.Setenv("PRODUCTS_MAX_LIMIT", "50")
	t.Setenv("STORE_TIMEOUT", "1s")
	t.Setenv("EVENT_TTL", "48h")

	// Upstream
	t.Setenv("UPSTREAM_URL", "https://upstream.test/sync")
	t.Setenv("UPSTREAM_TIMEOUT", "1500ms")
	t.Setenv("TOKEN_URL", "https://auth.test/token")
	t.Setenv("TOKEN_CLIENT_ID", "id")
	t.Setenv("TOKEN_CLIENT_SECRET", "sec")
	t.Setenv("TOKEN_TTL", "30m")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}

	if cfg.DB != (DBConfig{Driver: "postgres", DSN: "postgres://u:p@db/catalog"}) {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if cfg.Cache.Driver != CacheValkey || cfg.Cache.Addr != "cache:6379" || cfg.Cache.Password != "secret" ||
		cfg.Cache.DB != 2 || cfg.Cache.Timeout != 250*time.Millisecond || cfg.Cache.FailOpen {
		t.Fatalf("cache unexpected: %+v", cfg.Cache)
	}
	if cfg.Catalog != (CatalogConfig{TTL: 600 * time.Second, DefaultLimit: 20, MaxLimit: 50, StoreTimeout: time.Second}) {
		t.Fatalf("catalog unexpected: %+v", cfg.Catalog)
	}
	if cfg.EventTTL != 48*time.Hour {
		t.Fatalf("event ttl unexpected: %v", cfg.EventTTL)
	}
	if cfg.Upstream.URL != "https://upstream.test/sync" || cfg.Upstream.Timeout != 1500*time.Millisecond ||
		cfg.Upstream.TokenURL != "https://auth.test/token" || cfg.Upstream.ClientID != "id" ||
		cfg.Upstream.ClientSecret != "sec" || cfg.Upstream.TokenTTL != 30*time.Minute {
		t.Fatalf("upstream unexpected: %+v", cfg.Upstream)
	}

	if cfg.RateRPS != 50.0 || cfg.RateBurst != 100 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

// --- Load validations (each case triggers exactly one validation error) ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"invalid LOG_LEVEL", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"empty PORT via spaces", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"non-positive timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"max header bytes <= 0", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"unknown db driver", map[string]string{"DB_DRIVER": "oracle"}, "DB_DRIVER"},
		{"empty DB_DSN", map[string]string{"DB_DSN": "   "}, "DB_DSN must not be empty"},
		{"unknown cache driver", map[string]string{"CACHE_DRIVER": "memcached"}, "CACHE_DRIVER"},
		{"dynamodb without table", map[string]string{"CACHE_DRIVER": "dynamodb", "CACHE_TABLE": " "}, "CACHE_TABLE"},
		{"cache timeout", map[string]string{"CACHE_TIMEOUT": "0s"}, "CACHE_TIMEOUT"},
		{"products ttl", map[string]string{"PRODUCTS_TTL": "-1s"}, "PRODUCTS_TTL"},
		{"default limit", map[string]string{"PRODUCTS_DEFAULT_LIMIT": "0"}, "PRODUCTS_DEFAULT_LIMIT"},
		{"max below default", map[string]string{"PRODUCTS_MAX_LIMIT": "5"}, "PRODUCTS_MAX_LIMIT"},
		{"store timeout", map[string]string{"STORE_TIMEOUT": "0s"}, "STORE_TIMEOUT"},
		{"event ttl", map[string]string{"EVENT_TTL": "0s"}, "EVENT_TTL"},
		{"upstream timeout", map[string]string{"UPSTREAM_TIMEOUT": "0s"}, "UPSTREAM_TIMEOUT"},
		{"no token source", map[string]string{"STATIC_TOKEN": " "}, ""},
		{"rate rps negative", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst < 1", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts max age negative", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"otel sample ratio out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if tc.want != "" && !containsErr(err, tc.want) {
				t.Fatalf("expected error containing %q, got: %v", tc.want, err)
			}
		})
	}
}

// A blank STATIC_TOKEN is only an error when no TOKEN_URL is configured.
func TestLoad_TokenURLWithoutStaticToken(t *testing.T) {
	t.Setenv("STATIC_TOKEN", " ")
	t.Setenv("TOKEN_URL", "https://auth.test/token")
	if _, err := Load(); err != nil {
		t.Fatalf("Load() error: %v", err)
	}
}

// --- helpers ---

func TestHelpers_getenv(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("X_SET", "val")
	if getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv should read set value")
	}
}

func TestHelpers_getfloat_getint_getdur(t *testing.T) {
	t.Setenv("F_VALID", "3.14")
	if getfloat("F_VALID", 0) != 3.14 {
		t.Fatalf("getfloat parse failed")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat default on bad parse failed")
	}

	t.Setenv("I_VALID", "42")
	if getint("I_VALID", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("I_BAD", "x")
	if getint("I_BAD", 7) != 7 {
		t.Fatalf("getint default on bad parse failed")
	}

	t.Setenv("D_VALID", "150ms")
	if getdur("D_VALID", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("D_SECONDS", "300")
	if getdur("D_SECONDS", time.Second) != 300*time.Second {
		t.Fatalf("getdur bare seconds failed")
	}
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV mismatch: got %#v", got)
	}

	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

// Ensure tests don't pick up a developer's environment.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_DSN", "CACHE_DRIVER", "STATIC_TOKEN", "TOKEN_URL"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

// containsErr reports whether err's message contains the given substring.
func containsErr(err error, want string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), want)
}
