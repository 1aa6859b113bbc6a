// Package config maps viper settings onto the typed configuration the
// service is built from.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookhound/internal/books"
	bherrors "github.com/lepinkainen/bookhound/internal/errors"
)

// Configuration keys
const (
	KeyCacheTTLHours       = "cache.ttl_hours"
	KeyCandidateCount      = "recommend.candidate_count"
	KeyMaxResults          = "recommend.max_results"
	KeyParallelSources     = "recommend.parallel_sources"
	KeySourcesEnabled      = "sources.enabled"
	KeySourcesMaxRetries   = "sources.max_retries"
	KeySourcesBaseDelay    = "sources.base_delay"
	KeyPriceCeilingDefault = "profile.price_ceiling_default"
	KeyFormatsDefault      = "profile.formats_default"
	KeyCurrencyDefault     = "profile.currency_default"
	KeyProfileDBFile       = "profile.dbfile"
	KeyGeminiAPIKey        = "gemini.apikey"
	KeyGeminiModel         = "gemini.model"
	KeyISBNdbAPIKey        = "isbndb.apikey"
	KeyGoogleBooksAPIKey   = "googlebooks.apikey"
	KeyGoogleBooksCountry  = "googlebooks.country"
	KeyServerAddr          = "server.addr"
	KeyAllowedOrigins      = "server.allowed_origins"
	KeyServerRPM           = "server.requests_per_minute"
)

// EnvPrefix is prepended to automatic environment variable lookups,
// e.g. BOOKHOUND_SERVER_ADDR for server.addr.
const EnvPrefix = "BOOKHOUND"

// Config is the resolved application configuration.
type Config struct {
	CacheTTL        time.Duration
	CandidateCount  int
	MaxResults      int
	ParallelSources bool

	EnabledSources []string
	MaxRetries     int
	BaseDelay      time.Duration
	// SourceRPM holds per-source requests-per-minute overrides.
	SourceRPM map[string]int

	PriceCeilingDefault decimal.Decimal
	FormatsDefault      []books.Format
	CurrencyDefault     string
	ProfileDBFile       string

	GeminiAPIKey       string
	GeminiModel        string
	ISBNdbAPIKey       string
	GoogleBooksAPIKey  string
	GoogleBooksCountry string

	ServerAddr     string
	AllowedOrigins []string
	ServerRPM      int
}

// SetDefaults registers default values on the global viper instance
func SetDefaults() {
	viper.SetDefault(KeyCacheTTLHours, 24)
	viper.SetDefault(KeyCandidateCount, 10)
	viper.SetDefault(KeyMaxResults, 5)
	viper.SetDefault(KeyParallelSources, false)

	viper.SetDefault(KeySourcesEnabled, []string{"googlebooks", "openlibrary", "isbndb"})
	viper.SetDefault(KeySourcesMaxRetries, 3)
	viper.SetDefault(KeySourcesBaseDelay, "1s")

	viper.SetDefault(KeyPriceCeilingDefault, 20)
	viper.SetDefault(KeyFormatsDefault, []string{"ebook", "paperback"})
	viper.SetDefault(KeyCurrencyDefault, "USD")
	viper.SetDefault(KeyProfileDBFile, "./profiles.db")

	viper.SetDefault(KeyGeminiModel, "gemini-1.5-flash")
	viper.SetDefault(KeyGoogleBooksCountry, "US")

	viper.SetDefault(KeyServerAddr, ":8080")
	viper.SetDefault(KeyAllowedOrigins, []string{"*"})
	viper.SetDefault(KeyServerRPM, 120)
}

// BindEnv enables environment overrides, including the conventional
// API key variable names.
func BindEnv() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindings := map[string]string{
		KeyGeminiAPIKey:      "GEMINI_API_KEY",
		KeyISBNdbAPIKey:      "ISBNDB_API_KEY",
		KeyGoogleBooksAPIKey: "GOOGLE_BOOKS_API_KEY",
	}
	for key, env := range bindings {
		if err := viper.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			slog.Error("Failed to bind environment variable", "key", key, "error", err)
		}
	}
}

// Load reads the global viper instance into a Config and validates it
func Load() (*Config, error) {
	cfg := &Config{
		CacheTTL:        time.Duration(viper.GetFloat64(KeyCacheTTLHours) * float64(time.Hour)),
		CandidateCount:  viper.GetInt(KeyCandidateCount),
		MaxResults:      viper.GetInt(KeyMaxResults),
		ParallelSources: viper.GetBool(KeyParallelSources),

		EnabledSources: viper.GetStringSlice(KeySourcesEnabled),
		MaxRetries:     viper.GetInt(KeySourcesMaxRetries),
		BaseDelay:      viper.GetDuration(KeySourcesBaseDelay),
		SourceRPM:      map[string]int{},

		CurrencyDefault: strings.ToUpper(viper.GetString(KeyCurrencyDefault)),
		ProfileDBFile:   viper.GetString(KeyProfileDBFile),

		GeminiAPIKey:       viper.GetString(KeyGeminiAPIKey),
		GeminiModel:        viper.GetString(KeyGeminiModel),
		ISBNdbAPIKey:       viper.GetString(KeyISBNdbAPIKey),
		GoogleBooksAPIKey:  viper.GetString(KeyGoogleBooksAPIKey),
		GoogleBooksCountry: viper.GetString(KeyGoogleBooksCountry),

		ServerAddr:     viper.GetString(KeyServerAddr),
		AllowedOrigins: viper.GetStringSlice(KeyAllowedOrigins),
		ServerRPM:      viper.GetInt(KeyServerRPM),
	}

	ceiling, err := decimal.NewFromString(viper.GetString(KeyPriceCeilingDefault))
	if err != nil {
		return nil, bherrors.NewValidationError(KeyPriceCeilingDefault, "must be a number")
	}
	cfg.PriceCeilingDefault = ceiling

	for _, s := range viper.GetStringSlice(KeyFormatsDefault) {
		f, ok := books.ParseFormat(s)
		if !ok {
			return nil, bherrors.NewValidationError(KeyFormatsDefault, fmt.Sprintf("unknown format %q", s))
		}
		cfg.FormatsDefault = append(cfg.FormatsDefault, f)
	}

	for _, name := range cfg.EnabledSources {
		key := RequestsPerMinuteKey(name)
		if viper.IsSet(key) {
			cfg.SourceRPM[name] = viper.GetInt(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequestsPerMinuteKey returns the override key for a source's rate limit.
func RequestsPerMinuteKey(source string) string {
	return "sources." + source + ".requests_per_minute"
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.CacheTTL <= 0:
		return bherrors.NewValidationError(KeyCacheTTLHours, "must be positive")
	case c.CandidateCount < 1:
		return bherrors.NewValidationError(KeyCandidateCount, "must be at least 1")
	case c.MaxResults < 1:
		return bherrors.NewValidationError(KeyMaxResults, "must be at least 1")
	case c.MaxRetries < 1:
		return bherrors.NewValidationError(KeySourcesMaxRetries, "must be at least 1")
	case c.BaseDelay < 0:
		return bherrors.NewValidationError(KeySourcesBaseDelay, "must not be negative")
	case c.PriceCeilingDefault.IsNegative():
		return bherrors.NewValidationError(KeyPriceCeilingDefault, "must not be negative")
	case len(c.FormatsDefault) == 0:
		return bherrors.NewValidationError(KeyFormatsDefault, "must list at least one format")
	case len(c.CurrencyDefault) != 3:
		return bherrors.NewValidationError(KeyCurrencyDefault, "must be a 3-letter currency code")
	case c.ServerRPM < 0:
		return bherrors.NewValidationError(KeyServerRPM, "must not be negative")
	}
	for name, rpm := range c.SourceRPM {
		if rpm < 0 {
			return bherrors.NewValidationError(RequestsPerMinuteKey(name), "must not be negative")
		}
	}
	return nil
}
