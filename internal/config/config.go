// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, authentication, rate
// limiting, the AI gateway, and observability.
package config

import (
	"errors"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-notes-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// AIConfig defines the external summarization gateway settings. The gateway
// speaks the OpenAI chat-completions dialect with forced tool calls.
type AIConfig struct {
	BaseURL string        // AI_BASE_URL
	APIKey  string        // AI_API_KEY
	Model   string        // AI_MODEL
	Timeout time.Duration // AI_TIMEOUT; bounds a hung upstream call
}

// RateConfig holds the per-operation fixed-window budgets (requests per
// minute) plus the global token-bucket edge limiter.
type RateConfig struct {
	// Edge limiter (per user/IP token bucket).
	RPS   float64 // RATE_RPS (>= 0)
	Burst int     // RATE_BURST (>= 1)

	// Fixed one-minute-window budgets per operation class.
	TokenCreatePerMin   int // RATE_TOKEN_CREATE_PER_MIN, per user
	SessionCreatePerMin int // RATE_SESSION_CREATE_PER_MIN, per user
	ChunkPerTokenPerMin int // RATE_CHUNK_PER_TOKEN_PER_MIN, per token
	ChunkPerUserPerMin  int // RATE_CHUNK_PER_USER_PER_MIN, per user
	SummarizePerMin     int // RATE_SUMMARIZE_PER_MIN, per user
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

	// App
	DBPath          string // SQLite path
	SessionJWTKey   string // HMAC key for verifying end-user session tokens
	DefaultLanguage string // fallback BCP-47 tag for sessions ("en-US")

	// Rate limiting
	Rate RateConfig

	// AI gateway
	AI AIConfig

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

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
		Port:              getenv("PORT", "8080"),
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
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/")),

		// App
		DBPath:          getenv("DB_PATH", "app.db"),
		SessionJWTKey:   getenv("SESSION_JWT_KEY", ""),
		DefaultLanguage: getenv("DEFAULT_LANGUAGE", "en-US"),

		// Rate limiting
		Rate: RateConfig{
			RPS:                 getfloat("RATE_RPS", 25.0),
			Burst:               getint("RATE_BURST", 50),
			TokenCreatePerMin:   getint("RATE_TOKEN_CREATE_PER_MIN", 10),
			SessionCreatePerMin: getint("RATE_SESSION_CREATE_PER_MIN", 30),
			ChunkPerTokenPerMin: getint("RATE_CHUNK_PER_TOKEN_PER_MIN", 120),
			ChunkPerUserPerMin:  getint("RATE_CHUNK_PER_USER_PER_MIN", 300),
			SummarizePerMin:     getint("RATE_SUMMARIZE_PER_MIN", 10),
		},

		// AI gateway
		AI: AIConfig{
			BaseURL: getenv("AI_BASE_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
			APIKey:  getenv("AI_API_KEY", ""),
			Model:   getenv("AI_MODEL", "google/gemini-3-flash-preview"),
			Timeout: getdur("AI_TIMEOUT", 60*time.Second),
		},

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
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-notes-backend"),
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
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		return cfg, errors.New("DEFAULT_LANGUAGE must not be empty")
	}
	// An empty HMAC key would verify session tokens signed with the empty
	// string, letting anyone mint credentials for any user.
	if strings.TrimSpace(cfg.SessionJWTKey) == "" {
		return cfg, errors.New("SESSION_JWT_KEY must not be empty")
	}
	if cfg.Rate.RPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.Rate.Burst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Rate.TokenCreatePerMin < 1 || cfg.Rate.SessionCreatePerMin < 1 ||
		cfg.Rate.ChunkPerTokenPerMin < 1 || cfg.Rate.ChunkPerUserPerMin < 1 ||
		cfg.Rate.SummarizePerMin < 1 {
		return cfg, errors.New("per-minute rate budgets must be >= 1")
	}
	if strings.TrimSpace(cfg.AI.BaseURL) == "" {
		return cfg, errors.New("AI_BASE_URL must not be empty")
	}
	if cfg.AI.Timeout <= 0 {
		return cfg, errors.New("AI_TIMEOUT must be > 0")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

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

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
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
