package config

import (
	"os"
	"reflect"
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

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird")        // will normalize to "release"
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("LOG_FILE", "logs/server.log")

	// Storage / mail
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("MAILBOX_CREDENTIALS", "/etc/habitmail/mailbox.yaml")
	t.Setenv("SERVICE_NAME", "Habits")

	// LLM
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("LLM_API_KEY", "sk-x")
	t.Setenv("LLM_BASE_URL", "http://llm:8000/v1")
	t.Setenv("LLM_PARSE_MODEL", "p")
	t.Setenv("LLM_RESPONSE_MODEL", "r")
	t.Setenv("LLM_PARSE_TIMEOUT", "30s")

	// Worker / reminders
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("QUEUE_BATCH_SIZE", "2")
	t.Setenv("QUEUE_MAX_RETRIES", "5")
	t.Setenv("REMINDERS_ENABLED", "on")
	t.Setenv("REMINDER_HOUR", "8")
	t.Setenv("REMINDER_TZ", "Europe/Athens")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("INBOUND_TOKEN", " s3cret ")
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

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" ||
		cfg.APIBasePath != "/api/v1" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.LogFile != "logs/server.log" {
		t.Fatalf("logging unexpected: %+v", cfg)
	}

	// Storage / mail
	if cfg.DBPath != "db.sqlite" || cfg.MailboxCredentials != "/etc/habitmail/mailbox.yaml" || cfg.ServiceName != "Habits" {
		t.Fatalf("storage/mail fields unexpected: %+v", cfg)
	}

	// LLM
	wantLLM := LLMConfig{
		Provider:        "openai",
		BaseURL:         "http://llm:8000/v1",
		APIKey:          "sk-x",
		ParseModel:      "p",
		ResponseModel:   "r",
		ParseTimeout:    30 * time.Second,
		ResponseTimeout: 60 * time.Second,
	}
	if cfg.LLM != wantLLM {
		t.Fatalf("llm unexpected: %+v", cfg.LLM)
	}

	// Worker / reminders
	if cfg.Worker != (WorkerConfig{Enabled: true, PollInterval: 10 * time.Second, BatchSize: 2, MaxRetries: 5}) {
		t.Fatalf("worker unexpected: %+v", cfg.Worker)
	}
	if cfg.Reminder != (ReminderConfig{Enabled: true, Hour: 8, Timezone: "Europe/Athens"}) {
		t.Fatalf("reminder unexpected: %+v", cfg.Reminder)
	}

	// Rate limiting (parse fallback to defaults)
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting unexpected: %+v", cfg)
	}

	// Web protection
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour || cfg.Security.InboundToken != "s3cret" {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}

	// OTEL
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
		{"empty DB_PATH", map[string]string{"DB_PATH": "   "}, "DB_PATH must not be empty"},
		{"unknown provider", map[string]string{"LLM_PROVIDER": "carrier-pigeon"}, "LLM_PROVIDER"},
		{"openai without key", map[string]string{"LLM_PROVIDER": "openai"}, "LLM_API_KEY"},
		{"llm timeout", map[string]string{"LLM_PARSE_TIMEOUT": "-1s"}, "LLM timeouts"},
		{"poll interval", map[string]string{"POLL_INTERVAL": "0s"}, "POLL_INTERVAL"},
		{"batch size", map[string]string{"QUEUE_BATCH_SIZE": "0"}, "QUEUE_BATCH_SIZE"},
		{"max retries", map[string]string{"QUEUE_MAX_RETRIES": "0"}, "QUEUE_MAX_RETRIES"},
		{"reminder hour", map[string]string{"REMINDER_HOUR": "24"}, "REMINDER_HOUR"},
		{"reminder tz", map[string]string{"REMINDER_TZ": "Mars/Olympus_Mons"}, "REMINDER_TZ"},
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
			if _, err := Load(); err == nil || !containsErr(err, tc.want) {
				t.Fatalf("expected %s validation error, got: %v", tc.want, err)
			}
		})
	}

	// Note: API_BASE_PATH validation is effectively unreachable due to normalizeBasePath
	// always ensuring a leading '/' and returning "/" for empty input.
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
	t.Setenv("D_BAD", "zzz")
	if getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur default on bad parse failed")
	}
}

func TestHelpers_getbool(t *testing.T) {
	trueVals := []string{"1", "true", "TRUE", " yes ", "Y", "on", "On"}
	for i, v := range trueVals {
		k := "B_T_" + config_strconv(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false; want true", v)
		}
	}
	falseVals := []string{"0", "false", "FALSE", " no ", "N", "off", "Off"}
	for i, v := range falseVals {
		k := "B_F_" + config_strconv(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true; want false", v)
		}
	}
	// default on unset/empty
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	in := " a, ,b ,  c  ,"
	want := []string{"a", "b", "c"}
	if got := splitCSV(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("splitCSV mismatch: got %#v want %#v", got, want)
	}

	// normalizeBasePath
	if normalizeBasePath("") != "/" {
		t.Fatalf("normalizeBasePath empty -> '/' failed")
	}
	if normalizeBasePath("v1") != "/v1" {
		t.Fatalf("normalizeBasePath missing leading slash failed")
	}
	if normalizeBasePath("/v1/") != "/v1" {
		t.Fatalf("normalizeBasePath trailing slash trim failed")
	}
	if normalizeBasePath(" / ") != "/" {
		t.Fatalf("normalizeBasePath whitespace failed")
	}
}

// small helper (avoid fmt just for ints)
func config_strconv(i int) string { return string('a' + rune(i)) }

// Ensure tests don't inherit env from the shell.
func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "LLM_PROVIDER", "LLM_API_KEY", "REMINDER_TZ", "LOG_LEVEL"} {
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

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.Port != "9810" {
		t.Fatalf("server defaults unexpected: port=%q base=%q", cfg.Port, cfg.APIBasePath)
	}
	if cfg.LLM.Provider != "ollama" || cfg.LLM.ParseModel != "llama3.1:8b" || cfg.LLM.ParseTimeout != 60*time.Second {
		t.Fatalf("llm defaults unexpected: %+v", cfg.LLM)
	}
	if cfg.Worker.PollInterval != 30*time.Second || cfg.Worker.BatchSize != 5 || cfg.Worker.MaxRetries != 3 {
		t.Fatalf("worker defaults unexpected: %+v", cfg.Worker)
	}
	if cfg.Reminder.Hour != 21 || cfg.Reminder.Timezone != "America/Chicago" || cfg.Reminder.Enabled {
		t.Fatalf("reminder defaults unexpected: %+v", cfg.Reminder)
	}
}

func TestMustLoad_Success_NoPanic(t *testing.T) {
	// No special env needed; defaults are valid.
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
