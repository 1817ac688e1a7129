// Package config loads the server configuration from flags, environment
// variables and an optional .env file.
//
// PRECEDENCE (highest first), handled by viper:
//  1. command-line flags that were explicitly set
//  2. environment variables (after .env has been loaded into the environment)
//  3. the defaults registered in SetDefaults
//
// Load returns an immutable Config value. Nothing reads the environment after
// start-up, so the CORS allow-list, AI settings and limits cannot drift while
// the server runs.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AI providers understood by AI_PROVIDER.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
)

const (
	defaultOpenRouterURL   = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel = "openai/gpt-4o"
	defaultOpenAIModel     = "gpt-4o"
	defaultGeminiModel     = "gemini-2.0-flash"
)

// devOrigins are the Vite dev-server ports. Vite moves to the next port when
// 5173 is busy, so local development allows the whole run.
var devOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5174",
	"http://localhost:5175",
	"http://localhost:5176",
	"http://localhost:5177",
	"http://localhost:5178",
	"http://localhost:5179",
}

// Config is the complete runtime configuration.
type Config struct {
	Port   int
	Env    string
	DBPath string

	// Session
	JWTSecret    string
	CookieSecure bool
	BcryptCost   int

	// Browser clients
	ClientOrigins []string
	ClientURL     string

	// Google sign-in
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Summarization
	AIProvider    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	GeminiAPIKey  string
	AIModel       string
	AIMaxTokens   int
	AITimeout     time.Duration

	// Limits
	MaxUploadBytes       int64
	SummaryRatePerMinute int
	SummaryRateBurst     int

	// Shared-summary cache
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ShareCacheTTL time.Duration

	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// envBindings maps each config key to the environment variables that may set
// it, in order of preference.
var envBindings = map[string][]string{
	"port":                    {"PORT"},
	"env":                     {"APP_ENV", "NODE_ENV"},
	"db_path":                 {"DB_PATH"},
	"jwt_secret":              {"JWT_SECRET"},
	"cookie_secure":           {"COOKIE_SECURE"},
	"bcrypt_cost":             {"BCRYPT_COST"},
	"client_origins":          {"CLIENT_ORIGINS", "CLIENT_ORIGIN"},
	"client_url":              {"CLIENT_URL"},
	"google_client_id":        {"GOOGLE_CLIENT_ID"},
	"google_client_secret":    {"GOOGLE_CLIENT_SECRET"},
	"google_redirect_url":     {"GOOGLE_REDIRECT_URL"},
	"ai_provider":             {"AI_PROVIDER"},
	"openai_api_key":          {"OPENAI_API_KEY"},
	"openai_base_url":         {"OPENAI_BASE_URL"},
	"gemini_api_key":          {"GEMINI_API_KEY"},
	"ai_model":                {"AI_MODEL"},
	"ai_max_tokens":           {"AI_MAX_TOKENS"},
	"ai_timeout":              {"AI_TIMEOUT"},
	"max_upload_bytes":        {"MAX_UPLOAD_BYTES"},
	"summary_rate_per_minute": {"SUMMARY_RATE_PER_MINUTE"},
	"summary_rate_burst":      {"SUMMARY_RATE_BURST"},
	"redis_addr":              {"REDIS_ADDR"},
	"redis_password":          {"REDIS_PASSWORD"},
	"redis_db":                {"REDIS_DB"},
	"share_cache_ttl":         {"SHARE_CACHE_TTL"},
	"metrics_enabled":         {"METRICS_ENABLED"},
	"log_level":               {"LOG_LEVEL"},
	"log_format":              {"LOG_FORMAT"},
}

// SetDefaults registers every default and binds every key to its
// environment variables.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault("port", 8000)
	v.SetDefault("env", "development")
	v.SetDefault("db_path", "data/summarizer.db")
	v.SetDefault("cookie_secure", true)
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("client_origins", "http://localhost:5173")
	v.SetDefault("ai_provider", ProviderOpenRouter)
	v.SetDefault("ai_max_tokens", 500)
	v.SetDefault("ai_timeout", "60s")
	v.SetDefault("max_upload_bytes", 5*1024*1024)
	v.SetDefault("summary_rate_per_minute", 10)
	v.SetDefault("summary_rate_burst", 5)
	v.SetDefault("redis_db", 0)
	v.SetDefault("share_cache_ttl", "10m")
	v.SetDefault("metrics_enabled", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("config: binding %s: %w", key, err)
		}
	}
	return nil
}

// Load reads v into a validated Config. v must have been prepared with
// SetDefaults (and, for the binary, with its flags bound).
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:   v.GetInt("port"),
		Env:    strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		DBPath: v.GetString("db_path"),

		JWTSecret:    v.GetString("jwt_secret"),
		CookieSecure: v.GetBool("cookie_secure"),
		BcryptCost:   v.GetInt("bcrypt_cost"),

		ClientOrigins: splitOrigins(v.GetString("client_origins")),
		ClientURL:     strings.TrimSpace(v.GetString("client_url")),

		GoogleClientID:     strings.TrimSpace(v.GetString("google_client_id")),
		GoogleClientSecret: v.GetString("google_client_secret"),
		GoogleRedirectURL:  strings.TrimSpace(v.GetString("google_redirect_url")),

		AIProvider:    strings.ToLower(strings.TrimSpace(v.GetString("ai_provider"))),
		OpenAIAPIKey:  v.GetString("openai_api_key"),
		OpenAIBaseURL: strings.TrimSpace(v.GetString("openai_base_url")),
		GeminiAPIKey:  v.GetString("gemini_api_key"),
		AIModel:       strings.TrimSpace(v.GetString("ai_model")),
		AIMaxTokens:   v.GetInt("ai_max_tokens"),
		AITimeout:     v.GetDuration("ai_timeout"),

		MaxUploadBytes:       v.GetInt64("max_upload_bytes"),
		SummaryRatePerMinute: v.GetInt("summary_rate_per_minute"),
		SummaryRateBurst:     v.GetInt("summary_rate_burst"),

		RedisAddr:     strings.TrimSpace(v.GetString("redis_addr")),
		RedisPassword: v.GetString("redis_password"),
		RedisDB:       v.GetInt("redis_db"),
		ShareCacheTTL: v.GetDuration("share_cache_ttl"),

		MetricsEnabled: v.GetBool("metrics_enabled"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
		LogFormat:      strings.ToLower(v.GetString("log_format")),
	}

	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ClientURL == "" && len(cfg.ClientOrigins) > 0 {
		cfg.ClientURL = cfg.ClientOrigins[0]
	}
	if cfg.AIModel == "" {
		switch cfg.AIProvider {
		case ProviderOpenAI:
			cfg.AIModel = defaultOpenAIModel
		case ProviderGemini:
			cfg.AIModel = defaultGeminiModel
		default:
			cfg.AIModel = defaultOpenRouterModel
		}
	}
	if cfg.OpenAIBaseURL == "" && cfg.AIProvider == ProviderOpenRouter {
		cfg.OpenAIBaseURL = defaultOpenRouterURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
//
// A missing AI key is not an error here. The server still serves auth and
// history, and /api/summary answers with a configuration error until a key
// is provided.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Port))
	}
	switch c.AIProvider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER %q is not one of openrouter, openai, gemini", c.AIProvider))
	}
	if c.AIMaxTokens <= 0 {
		errs = append(errs, errors.New("AI_MAX_TOKENS must be positive"))
	}
	if c.AITimeout <= 0 {
		errs = append(errs, errors.New("AI_TIMEOUT must be positive"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.SummaryRatePerMinute <= 0 || c.SummaryRateBurst <= 0 {
		errs = append(errs, errors.New("SUMMARY_RATE_PER_MINUTE and SUMMARY_RATE_BURST must be positive"))
	}
	if c.RedisAddr != "" && c.ShareCacheTTL <= 0 {
		errs = append(errs, errors.New("SHARE_CACHE_TTL must be positive when REDIS_ADDR is set"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT %q must be text or json", c.LogFormat))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// AllowedOrigins returns the CORS allow-list: the configured origins plus,
// in development, the Vite dev-server ports. The result has no duplicates.
func (c *Config) AllowedOrigins() []string {
	origins := append([]string{}, c.ClientOrigins...)
	if c.IsDevelopment() {
		origins = append(origins, devOrigins...)
	}

	seen := make(map[string]bool, len(origins))
	out := origins[:0]
	for _, o := range origins {
		if !seen[o] {
			seen[o] = true
			out = append(out, o)
		}
	}
	return out
}

// GoogleRedirectEnabled reports whether the server-side OAuth redirect flow
// has everything it needs.
func (c *Config) GoogleRedirectEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}

	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// String renders the configuration for start-up logs with secrets masked.
func (c *Config) String() string {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "  Env: %s\n", c.Env)
	fmt.Fprintf(&sb, "  Port: %d\n", c.Port)
	fmt.Fprintf(&sb, "  DBPath: %s\n", c.DBPath)
	fmt.Fprintf(&sb, "  JWTSecret: %s\n", mask(c.JWTSecret))
	fmt.Fprintf(&sb, "  CookieSecure: %v\n", c.CookieSecure)
	fmt.Fprintf(&sb, "  ClientOrigins: %s\n", strings.Join(c.AllowedOrigins(), ", "))
	fmt.Fprintf(&sb, "  ClientURL: %s\n", c.ClientURL)
	fmt.Fprintf(&sb, "  GoogleClientID: %s\n", c.GoogleClientID)
	fmt.Fprintf(&sb, "  GoogleClientSecret: %s\n", mask(c.GoogleClientSecret))
	fmt.Fprintf(&sb, "  AIProvider: %s (model %s)\n", c.AIProvider, c.AIModel)
	fmt.Fprintf(&sb, "  OpenAIBaseURL: %s\n", c.OpenAIBaseURL)
	fmt.Fprintf(&sb, "  OpenAIAPIKey: %s\n", mask(c.OpenAIAPIKey))
	fmt.Fprintf(&sb, "  GeminiAPIKey: %s\n", mask(c.GeminiAPIKey))
	fmt.Fprintf(&sb, "  AITimeout: %s\n", c.AITimeout)
	fmt.Fprintf(&sb, "  MaxUploadBytes: %d\n", c.MaxUploadBytes)
	fmt.Fprintf(&sb, "  SummaryRate: %d/min (burst %d)\n", c.SummaryRatePerMinute, c.SummaryRateBurst)
	fmt.Fprintf(&sb, "  RedisAddr: %s\n", c.RedisAddr)
	fmt.Fprintf(&sb, "  RedisPassword: %s\n", mask(c.RedisPassword))
	fmt.Fprintf(&sb, "  MetricsEnabled: %v\n", c.MetricsEnabled)
	return sb.String()
}

func mask(secret string) string {
	if secret == "" {
		return "(empty)"
	}
	return "********"
}

// splitOrigins turns "a, b,,c" into [a b c].
func splitOrigins(raw string) []string {
	var origins []string
	for _, part := range strings.Split(raw, ",") {
		if o := strings.TrimSpace(part); o != "" {
			origins = append(origins, strings.TrimSuffix(o, "/"))
		}
	}
	return origins
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not debug, info, warn or error", s)
	}
	return level, nil
}
