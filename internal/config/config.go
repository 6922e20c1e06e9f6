// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// HTTP surface, logging, the SQLite store, the language model backends, the
// mail polling worker, daily reminders, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // REMINDER_TZ must resolve on hosts without zoneinfo
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
	// InboundToken, when set, must be presented as a bearer token on the
	// API routes (webhook and queue views).
	InboundToken string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "habitmail")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// LLMConfig selects and tunes the language model backend.
type LLMConfig struct {
	Provider        string        // LLM_PROVIDER: ollama|openai
	BaseURL         string        // LLM_BASE_URL (empty: provider default)
	APIKey          string        // LLM_API_KEY (openai only)
	ParseModel      string        // LLM_PARSE_MODEL
	ResponseModel   string        // LLM_RESPONSE_MODEL
	ParseTimeout    time.Duration // LLM_PARSE_TIMEOUT
	ResponseTimeout time.Duration // LLM_RESPONSE_TIMEOUT
}

// WorkerConfig controls mailbox polling and queue draining.
type WorkerConfig struct {
	Enabled      bool          // WORKER_ENABLED
	PollInterval time.Duration // POLL_INTERVAL
	BatchSize    int           // QUEUE_BATCH_SIZE
	MaxRetries   int           // QUEUE_MAX_RETRIES
}

// ReminderConfig controls the daily check-in reminder.
type ReminderConfig struct {
	Enabled  bool   // REMINDERS_ENABLED
	Hour     int    // REMINDER_HOUR, 0..23 local time
	Timezone string // REMINDER_TZ (IANA name)
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
	APIBasePath       string        // base path for API routes

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev
	LogFile   string // optional rotating JSON log file

	// Storage
	DBPath string // SQLite path

	// Mail
	MailboxCredentials string // path to the IMAP/SMTP credentials file
	ServiceName        string // display name used in outgoing mail

	LLM      LLMConfig
	Worker   WorkerConfig
	Reminder ReminderConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

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
		Port:              getenv("PORT", "9810"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		APIBasePath:       normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),
		LogFile:   getenv("LOG_FILE", ""),

		// Storage
		DBPath: getenv("DB_PATH", "data/habitmail.db"),

		// Mail
		MailboxCredentials: getenv("MAILBOX_CREDENTIALS", ""),
		ServiceName:        getenv("SERVICE_NAME", "Maintainable"),

		LLM: LLMConfig{
			Provider:        strings.ToLower(getenv("LLM_PROVIDER", "ollama")),
			BaseURL:         getenv("LLM_BASE_URL", ""),
			APIKey:          getenv("LLM_API_KEY", ""),
			ParseModel:      getenv("LLM_PARSE_MODEL", "llama3.1:8b"),
			ResponseModel:   getenv("LLM_RESPONSE_MODEL", "mistral-nemo"),
			ParseTimeout:    getdur("LLM_PARSE_TIMEOUT", 60*time.Second),
			ResponseTimeout: getdur("LLM_RESPONSE_TIMEOUT", 60*time.Second),
		},
		Worker: WorkerConfig{
			Enabled:      getbool("WORKER_ENABLED", true),
			PollInterval: getdur("POLL_INTERVAL", 30*time.Second),
			BatchSize:    getint("QUEUE_BATCH_SIZE", 5),
			MaxRetries:   getint("QUEUE_MAX_RETRIES", 3),
		},
		Reminder: ReminderConfig{
			Enabled:  getbool("REMINDERS_ENABLED", false),
			Hour:     getint("REMINDER_HOUR", 21),
			Timezone: getenv("REMINDER_TZ", "America/Chicago"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS:   getbool("ENABLE_HSTS", false),
			HSTSMaxAge:   getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			InboundToken: strings.TrimSpace(getenv("INBOUND_TOKEN", "")),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "habitmail"),
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
	switch cfg.LLM.Provider {
	case "ollama":
	case "openai":
		if strings.TrimSpace(cfg.LLM.APIKey) == "" {
			return cfg, errors.New("LLM_API_KEY is required for LLM_PROVIDER=openai")
		}
	default:
		return cfg, errors.New("LLM_PROVIDER must be one of: ollama, openai")
	}
	if cfg.LLM.ParseTimeout <= 0 || cfg.LLM.ResponseTimeout <= 0 {
		return cfg, errors.New("LLM timeouts must be positive durations")
	}
	if cfg.Worker.PollInterval <= 0 {
		return cfg, errors.New("POLL_INTERVAL must be > 0")
	}
	if cfg.Worker.BatchSize < 1 {
		return cfg, errors.New("QUEUE_BATCH_SIZE must be >= 1")
	}
	if cfg.Worker.MaxRetries < 1 {
		return cfg, errors.New("QUEUE_MAX_RETRIES must be >= 1")
	}
	if cfg.Reminder.Hour < 0 || cfg.Reminder.Hour > 23 {
		return cfg, errors.New("REMINDER_HOUR must be in [0,23]")
	}
	if _, err := time.LoadLocation(cfg.Reminder.Timezone); err != nil {
		return cfg, errors.New("REMINDER_TZ must be a valid IANA time zone")
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
