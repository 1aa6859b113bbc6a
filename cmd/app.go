package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lepinkainen/bookhound/internal/cache"
	"github.com/lepinkainen/bookhound/internal/candidates"
	"github.com/lepinkainen/bookhound/internal/config"
	"github.com/lepinkainen/bookhound/internal/profile"
	"github.com/lepinkainen/bookhound/internal/recommend"
	"github.com/lepinkainen/bookhound/internal/retry"
	"github.com/lepinkainen/bookhound/internal/source"
	"github.com/lepinkainen/bookhound/internal/source/adapters"
)

// Seams replaced in tests
var (
	loadConfig       = config.Load
	newRegistry      = buildRegistry
	newTextGenerator = buildTextGenerator
)

// app wires the pipeline together from configuration.
type app struct {
	cfg          *config.Config
	registry     *source.Registry
	cache        *cache.Cache
	orchestrator *recommend.Orchestrator
	profiles     *profile.SQLiteStore
	closers      []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	registry, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		registry: registry,
		cache:    cache.New(cfg.CacheTTL),
	}

	profiles := profile.NewSQLiteStore(cfg.ProfileDBFile)
	if err := profiles.Connect(); err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	a.profiles = profiles
	a.closers = append(a.closers, profiles.Close)

	text, closeText, err := newTextGenerator(ctx, cfg)
	if err != nil && !errors.Is(err, candidates.ErrNotConfigured) {
		_ = a.Close()
		return nil, err
	}
	if closeText != nil {
		a.closers = append(a.closers, closeText)
	}
	if text == nil {
		slog.Debug("No language model configured, recommendations are unavailable")
	}

	a.orchestrator = recommend.New(recommend.Config{
		CandidateCount:  cfg.CandidateCount,
		MaxResults:      cfg.MaxResults,
		EnabledSources:  cfg.EnabledSources,
		CacheTTL:        cfg.CacheTTL,
		ParallelSources: cfg.ParallelSources,
		Defaults:        a.defaults(),
	}, registry, a.cache, candidates.NewLLMGenerator(text), profiles)

	return a, nil
}

func (a *app) defaults() profile.Defaults {
	return profile.Defaults{
		PriceCeiling: a.cfg.PriceCeilingDefault,
		Formats:      a.cfg.FormatsDefault,
		Currency:     a.cfg.CurrencyDefault,
	}
}

// Close releases everything opened by newApp.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

// buildRegistry registers every adapter that can run with the given
// configuration. ISBNdb needs an API key and is skipped without one.
func buildRegistry(cfg *config.Config) (*source.Registry, error) {
	policy := retry.Policy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseDelay}
	common := func(name string, extra ...adapters.Option) []adapters.Option {
		opts := []adapters.Option{
			adapters.WithRetryPolicy(policy),
			adapters.WithCurrency(cfg.CurrencyDefault),
			adapters.WithRequestsPerMinute(cfg.SourceRPM[name]),
		}
		return append(opts, extra...)
	}

	registry := source.NewRegistry()
	all := []source.Adapter{
		adapters.NewGoogleBooks(common(adapters.GoogleBooksName,
			adapters.WithAPIKey(cfg.GoogleBooksAPIKey),
			adapters.WithCountry(cfg.GoogleBooksCountry),
		)...),
		adapters.NewOpenLibrary(common(adapters.OpenLibraryName)...),
	}
	if cfg.ISBNdbAPIKey != "" {
		all = append(all, adapters.NewISBNdb(common(adapters.ISBNdbName, adapters.WithAPIKey(cfg.ISBNdbAPIKey))...))
	} else {
		slog.Debug("ISBNdb API key not set, source disabled", "source", adapters.ISBNdbName)
	}

	for _, a := range all {
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func buildTextGenerator(ctx context.Context, cfg *config.Config) (candidates.TextGenerator, func() error, error) {
	client, err := candidates.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}
