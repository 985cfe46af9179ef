// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes the Telegram and
// Grocy credentials, the change monitor settings, the admin HTTP server,
// logging, persistence and observability.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS and the
// admin API token.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
	// AdminToken guards the admin API. Empty leaves it open, which only
	// suits a loopback STATS_PORT.
	AdminToken string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-grocy-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// TelegramConfig holds the bot credentials and throttling.
type TelegramConfig struct {
	Token          string   // TELEGRAM_BOT_TOKEN
	AdminUsernames []string // TELEGRAM_ADMIN_USERNAMES, without "@"
	RateRPS        float64  // TELEGRAM_RATE_RPS, outgoing messages per second
	RateBurst      int      // TELEGRAM_RATE_BURST
	PollTimeout    int      // TELEGRAM_POLL_TIMEOUT, long-poll seconds
}

// GrocyConfig holds the Grocy endpoint and the client-side cache.
type GrocyConfig struct {
	Host            string        // GROCY_HOST, with or without scheme
	Port            int           // GROCY_PORT
	APIKey          string        // GROCY_API_KEY
	CacheDuration   time.Duration // GROCY_CACHE_DURATION
	CacheMaxEntries int           // GROCY_CACHE_MAX_ENTRIES
	DueSoonDays     int           // GROCY_DUE_SOON_DAYS
	RateRPS         float64       // GROCY_RATE_RPS (0 disables)
	RateBurst       int           // GROCY_RATE_BURST
	Timeout         time.Duration // GROCY_TIMEOUT, per request
	Locale          string        // LOCALE, used for amounts and dates
}

// BaseURL returns the Grocy root URL. A bare host gets an http:// scheme and
// the configured port.
func (g GrocyConfig) BaseURL() string {
	host := strings.TrimRight(strings.TrimSpace(g.Host), "/")
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	scheme, rest, _ := strings.Cut(host, "://")
	hostPart, path, _ := strings.Cut(rest, "/")
	if g.Port > 0 && !strings.Contains(hostPart, ":") {
		hostPart = fmt.Sprintf("%s:%d", hostPart, g.Port)
	}
	if path != "" {
		return scheme + "://" + hostPart + "/" + path
	}
	return scheme + "://" + hostPart
}

// MonitorConfig controls change detection and notifications.
type MonitorConfig struct {
	ChatIDs     []int64       // NOTIFICATION_CHAT_IDS; empty disables the monitor
	DedupWindow time.Duration // NOTIFICATION_DEDUP_WINDOW; 0 disables suppression
	Interval    time.Duration // derived: cache duration + 1s
	RunTimeout  time.Duration // MONITOR_RUN_TIMEOUT
	Retention   time.Duration // NOTIFICATION_RETENTION for the delivery journal
}

// Enabled reports whether any destination is configured.
func (m MonitorConfig) Enabled() bool { return len(m.ChatIDs) > 0 }

// Config holds all configuration values for the application.
type Config struct {
	// Admin HTTP server
	StatsEnabled      bool          // STATS_ENABLED
	Port              string        // STATS_PORT
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

	// Persistence
	DBPath string // SQLite path of the delivery journal

	// Rate limiting of the admin API
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	Telegram TelegramConfig
	Grocy    GrocyConfig
	Monitor  MonitorConfig

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
	chatIDs, idsErr := parseChatIDs(getenv("NOTIFICATION_CHAT_IDS", ""))

	cfg := Config{
		// Admin HTTP server
		StatsEnabled:      getbool("STATS_ENABLED", true),
		Port:              getenv("STATS_PORT", "8000"),
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

		// Persistence
		DBPath: getenv("DB_PATH", "grocybot.db"),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
			AdminToken: strings.TrimSpace(getenv("ADMIN_API_TOKEN", "")),
		},

		Telegram: TelegramConfig{
			Token:          getenv("TELEGRAM_BOT_TOKEN", ""),
			AdminUsernames: trimAt(splitCSV(getenv("TELEGRAM_ADMIN_USERNAMES", ""))),
			RateRPS:        getfloat("TELEGRAM_RATE_RPS", 25),
			RateBurst:      getint("TELEGRAM_RATE_BURST", 5),
			PollTimeout:    getint("TELEGRAM_POLL_TIMEOUT", 60),
		},

		Grocy: GrocyConfig{
			Host:            getenv("GROCY_HOST", "127.0.0.1"),
			Port:            getint("GROCY_PORT", 80),
			APIKey:          getenv("GROCY_API_KEY", ""),
			CacheDuration:   getdur("GROCY_CACHE_DURATION", 60*time.Second),
			CacheMaxEntries: getint("GROCY_CACHE_MAX_ENTRIES", 100),
			DueSoonDays:     getint("GROCY_DUE_SOON_DAYS", 5),
			RateRPS:         getfloat("GROCY_RATE_RPS", 10),
			RateBurst:       getint("GROCY_RATE_BURST", 5),
			Timeout:         getdur("GROCY_TIMEOUT", 10*time.Second),
			Locale:          getenv("LOCALE", "en"),
		},

		Monitor: MonitorConfig{
			ChatIDs:     chatIDs,
			DedupWindow: getdur("NOTIFICATION_DEDUP_WINDOW", 0),
			RunTimeout:  getdur("MONITOR_RUN_TIMEOUT", 30*time.Second),
			Retention:   getdur("NOTIFICATION_RETENTION", 30*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-grocy-bot"),
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
	// Poll just after the cache expires so every run sees fresh data.
	cfg.Monitor.Interval = cfg.Grocy.CacheDuration + time.Second

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if idsErr != nil {
		return cfg, idsErr
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return cfg, errors.New("TELEGRAM_BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.Grocy.Host) == "" {
		return cfg, errors.New("GROCY_HOST must not be empty")
	}
	if strings.TrimSpace(cfg.Grocy.APIKey) == "" {
		return cfg, errors.New("GROCY_API_KEY must not be empty")
	}
	if cfg.Grocy.Port < 0 || cfg.Grocy.Port > 65535 {
		return cfg, errors.New("GROCY_PORT must be between 0 and 65535")
	}
	if cfg.Grocy.CacheDuration <= 0 {
		return cfg, errors.New("GROCY_CACHE_DURATION must be > 0")
	}
	if cfg.Grocy.CacheMaxEntries < 1 {
		return cfg, errors.New("GROCY_CACHE_MAX_ENTRIES must be >= 1")
	}
	if cfg.Grocy.DueSoonDays < 0 {
		return cfg, errors.New("GROCY_DUE_SOON_DAYS must be >= 0")
	}
	if cfg.Grocy.RateRPS < 0 || cfg.Telegram.RateRPS < 0 {
		return cfg, errors.New("GROCY_RATE_RPS and TELEGRAM_RATE_RPS must be >= 0")
	}
	if cfg.Grocy.Timeout <= 0 || cfg.Monitor.RunTimeout <= 0 {
		return cfg, errors.New("GROCY_TIMEOUT and MONITOR_RUN_TIMEOUT must be > 0")
	}
	if cfg.Monitor.DedupWindow < 0 || cfg.Monitor.Retention < 0 {
		return cfg, errors.New("NOTIFICATION_DEDUP_WINDOW and NOTIFICATION_RETENTION must be >= 0")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("STATS_PORT must not be empty")
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

// getdur accepts Go durations ("90s") and bare seconds ("90").
func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(s * float64(time.Second))
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

func trimAt(names []string) []string {
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, "@")
	}
	return names
}

// parseChatIDs reads a comma separated list of Telegram chat ids. Group ids
// are negative.
func parseChatIDs(s string) ([]int64, error) {
	var out []int64
	for _, p := range splitCSV(s) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("NOTIFICATION_CHAT_IDS: invalid chat id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
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

// WriteSummary writes the settings an operator usually checks. Secrets are
// reported as set or unset only.
func (c Config) WriteSummary(w io.Writer) error {
	monitorState := "disabled (no NOTIFICATION_CHAT_IDS)"
	if c.Monitor.Enabled() {
		monitorState = fmt.Sprintf("every %s to %d chat(s)", c.Monitor.Interval, len(c.Monitor.ChatIDs))
	}
	adminAPI := "disabled"
	if c.StatsEnabled {
		adminAPI = ":" + c.Port + c.APIBasePath
	}

	_, err := fmt.Fprintf(w, `grocy:           %s
grocy api key:   %s
cache:           %s, %d entries
due soon:        %d day(s)
monitor:         %s
dedup window:    %s
telegram token:  %s
admins:          %v
admin api:       %s
admin token:     %s
journal:         %s
log level:       %s
tracing:         %t
`,
		c.Grocy.BaseURL(),
		setOrUnset(c.Grocy.APIKey),
		c.Grocy.CacheDuration, c.Grocy.CacheMaxEntries,
		c.Grocy.DueSoonDays,
		monitorState,
		c.Monitor.DedupWindow,
		setOrUnset(c.Telegram.Token),
		c.Telegram.AdminUsernames,
		adminAPI,
		setOrUnset(c.Security.AdminToken),
		c.DBPath,
		c.LogLevel,
		c.OTEL.Enabled,
	)
	return err
}

// Summary is WriteSummary as a string.
func (c Config) Summary() string {
	var b strings.Builder
	_ = c.WriteSummary(&b)
	return b.String()
}

func setOrUnset(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}
