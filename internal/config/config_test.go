package config

import (
	"os"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_DSN", "TIMEZONE", "SEED_CATEGORIES", "REDIS_ADDR"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func setenv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := MustLoad()
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("base path %q", cfg.APIBasePath)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "restaurant.db" {
		t.Fatalf("db defaults %+v", cfg.DB)
	}
	if cfg.Realtime.RedisAddr != "" {
		t.Fatalf("relay should be off by default, got %q", cfg.Realtime.RedisAddr)
	}
	if cfg.RateWriteRPS != 0 || cfg.RateWriteBurst != 0 {
		t.Fatalf("write budget should derive from RATE_RPS by default: %v/%d", cfg.RateWriteRPS, cfg.RateWriteBurst)
	}
	if loc, err := cfg.Location(); err != nil || loc != time.Local {
		t.Fatalf("location %v (%v)", loc, err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setenv(t, map[string]string{
		"PORT":                "8088",
		"READ_TIMEOUT":        "2s",
		"READ_HEADER_TIMEOUT": "1s",
		"WRITE_TIMEOUT":       "3s",
		"IDLE_TIMEOUT":        "4s",
		"MAX_HEADER_BYTES":    "8192",
		"GIN_MODE":            "weird",
		"LOG_LEVEL":           "warning",
		"LOG_PRETTY":          "yes",
		"SWAGGER_ENABLED":     "on",
		"API_BASE_PATH":       "api/v1/",

		"DB_DRIVER":       "SQLite",
		"DB_PATH":         "db.sqlite",
		"TIMEZONE":        "UTC",
		"SEED_CATEGORIES": "food:Food, drink:Drink ,dessert:Dessert",
		"PRICE_LOCALE":    "en",

		"RATE_RPS":         "x",
		"RATE_BURST":       "nope",
		"RATE_WRITE_RPS":   "2.5",
		"RATE_WRITE_BURST": "3",

		"REALTIME_BUFFER":  "4",
		"WS_PING_INTERVAL": "5s",
		"REDIS_ADDR":       "redis:6379",
		"REDIS_DB":         "2",
		"REALTIME_CHANNEL": "rt",

		"CORS_ALLOWED_ORIGINS": " https://a.com , , http://b ",
		"ENABLE_HSTS":          "TRUE",
		"HSTS_MAX_AGE":         "24h",
		"IDEMPOTENCY_TTL":      "48h",

		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_SERVICE_NAME":           "svc",
		"OTEL_TRACES_SAMPLER_ARG":     "0.75",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.ReadHeaderTimeout != time.Second ||
		cfg.WriteTimeout != 3*time.Second || cfg.IdleTimeout != 4*time.Second || cfg.MaxHeaderBytes != 8192 {
		t.Fatalf("server %+v", cfg)
	}
	// Unknown gin modes and log level aliases are normalized.
	if cfg.GinMode != "release" || cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs %+v", cfg)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "db.sqlite" || cfg.PriceLocale != "en" {
		t.Fatalf("db %+v", cfg.DB)
	}
	if !reflect.DeepEqual(cfg.SeedCategories, []string{"food:Food", "drink:Drink", "dessert:Dessert"}) {
		t.Fatalf("seed categories %#v", cfg.SeedCategories)
	}
	if loc, err := cfg.Location(); err != nil || loc.String() != "UTC" {
		t.Fatalf("location %v %v", loc, err)
	}
	// Unparsable numbers fall back to the defaults.
	if cfg.RateRPS != 20 || cfg.RateBurst != 40 || cfg.RateWriteRPS != 2.5 || cfg.RateWriteBurst != 3 {
		t.Fatalf("rate %v/%d write %v/%d", cfg.RateRPS, cfg.RateBurst, cfg.RateWriteRPS, cfg.RateWriteBurst)
	}
	rt := cfg.Realtime
	if rt.Buffer != 4 || rt.PingInterval != 5*time.Second || rt.RedisAddr != "redis:6379" || rt.RedisDB != 2 || rt.RedisChannel != "rt" {
		t.Fatalf("realtime %+v", rt)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour || cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("security %+v ttl %v", cfg.Security, cfg.IdempotencyTTL)
	}
	o := cfg.OTEL
	if !o.Enabled || o.Endpoint != "otel:4317" || o.Insecure || o.ServiceName != "svc" || o.SampleRatio != 0.75 {
		t.Fatalf("otel %+v", o)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		key, val string
		want     string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"PORT", "   ", "PORT must not be empty"},
		{"READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"DB_PATH", "   ", "DB_PATH must not be empty"},
		{"DB_DRIVER", "oracle", "DB_DRIVER"},
		{"DB_DRIVER", "postgresql", "DB_DSN"},
		{"TIMEZONE", "Mars/Olympus", "TIMEZONE"},
		{"SEED_CATEGORIES", "food:Food,drink", "SEED_CATEGORIES"},
		{"REALTIME_BUFFER", "0", "REALTIME_BUFFER"},
		{"WS_PING_INTERVAL", "0s", "WS_PING_INTERVAL"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"RATE_WRITE_RPS", "-0.5", "RATE_WRITE_RPS"},
		{"HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")
	defer func() {
		if recover() == nil {
			t.Fatal("MustLoad did not panic")
		}
	}()
	MustLoad()
}

func TestEnvParsers(t *testing.T) {
	setenv(t, map[string]string{
		"T_STR": "val", "T_EMPTY": "",
		"T_FLOAT": "3.14", "T_INT": "42", "T_DUR": "150ms",
		"T_BAD": "zzz",
	})
	if getenv("T_STR", "d") != "val" || getenv("T_EMPTY", "d") != "d" {
		t.Fatal("getenv")
	}
	if getfloat("T_FLOAT", 0) != 3.14 || getfloat("T_BAD", 1.5) != 1.5 {
		t.Fatal("getfloat")
	}
	if getint("T_INT", 0) != 42 || getint("T_BAD", 7) != 7 {
		t.Fatal("getint")
	}
	if getdur("T_DUR", 0) != 150*time.Millisecond || getdur("T_BAD", time.Second) != time.Second {
		t.Fatal("getdur")
	}
}

func TestGetbool(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		t.Setenv("T_BOOL", v)
		if !getbool("T_BOOL", false) {
			t.Errorf("%q should be true", v)
		}
	}
	for _, v := range []string{"0", "false", " no ", "N", "Off"} {
		t.Setenv("T_BOOL", v)
		if getbool("T_BOOL", true) {
			t.Errorf("%q should be false", v)
		}
	}
	t.Setenv("T_BOOL", "")
	if !getbool("T_BOOL", true) || getbool("T_BOOL", false) {
		t.Error("empty should use the default")
	}
}

func TestSplitCSV(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatal("empty input should be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("got %#v", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	for in, want := range map[string]string{"": "/", " / ": "/", "v1": "/v1", "/v1/": "/v1", "/api/v2": "/api/v2"} {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q)=%q want %q", in, got, want)
		}
	}
}
