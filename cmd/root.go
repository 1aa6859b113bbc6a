package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/lepinkainen/humanlog"
	"github.com/spf13/viper"

	"github.com/lepinkainen/bookhound/internal/config"
)

// CLI represents the complete command structure for the bookhound application
type CLI struct {
	// Global flags
	Verbose    bool   `short:"v" help:"Enable debug logging"`
	ConfigFile string `name:"config" help:"Path to a YAML config file (defaults to ./config.yaml if present)"`

	// Pipeline overrides
	CacheTTLHours  float64  `name:"cache-ttl-hours" help:"Availability cache time-to-live in hours"`
	EnableSource   []string `name:"enable-source" help:"Restrict lookups to these sources, in order (repeatable)"`
	ParallelSource bool     `name:"parallel-sources" help:"Check a candidate's sources concurrently"`
	ProfileDB      string   `name:"profile-db" help:"Path to the profile SQLite database"`

	Recommend RecommendCmd `cmd:"" help:"Recommend obtainable books for a profile"`
	Check     CheckCmd     `cmd:"" help:"Check where a single ISBN can be obtained"`
	Sources   SourcesCmd   `cmd:"" help:"List availability sources"`
	Profile   ProfileCmd   `cmd:"" help:"Manage reader profiles"`
	Cache     CacheCmd     `cmd:"" help:"Inspect and manage a running server's availability cache"`
	Serve     ServeCmd     `cmd:"" help:"Run the HTTP API"`
}

// runContext is bound into every command's Run method.
type runContext struct {
	ctx context.Context
	out io.Writer
}

// Execute runs the Kong-based CLI
func Execute() {
	var cli CLI

	kctx := kong.Parse(&cli,
		kong.Name("bookhound"),
		kong.Description("Find book recommendations you can actually get, within your price and format limits."),
		kong.UsageOnError(),
	)

	initLogging(os.Stderr, cli.Verbose)

	if err := initConfig(cli.ConfigFile); err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Update global config based on parsed flags
	updateGlobalConfig(&cli)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kctx.Run(&runContext{ctx: ctx, out: os.Stdout}); err != nil {
		slog.Error("Command failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func initConfig(path string) error {
	config.SetDefaults()
	config.BindEnv()

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			slog.Debug("Config file not found, using defaults")
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	slog.Debug("Loaded config file", "path", viper.ConfigFileUsed())
	return nil
}

func updateGlobalConfig(cli *CLI) {
	// Flags only override when given
	if cli.CacheTTLHours > 0 {
		viper.Set(config.KeyCacheTTLHours, cli.CacheTTLHours)
	}
	if len(cli.EnableSource) > 0 {
		viper.Set(config.KeySourcesEnabled, cli.EnableSource)
	}
	if cli.ParallelSource {
		viper.Set(config.KeyParallelSources, true)
	}
	if cli.ProfileDB != "" {
		viper.Set(config.KeyProfileDBFile, cli.ProfileDB)
	}
}

func initLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	// Create a human-readable handler for logging
	handler := humanlog.NewHandler(w, &humanlog.Options{
		Level: level,
	})

	// Set the default logger
	slog.SetDefault(slog.New(handler))
}
