// Package main is the entry point for the text summarizer API.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
//  1. Read configuration (flags, environment, .env)
//  2. Create the logger
//  3. Build the server and run it until a signal arrives
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// COMMANDS:
//
//	summarizer            → same as "serve"
//	summarizer serve      → run the HTTP API
//	summarizer config     → print the effective configuration (secrets masked)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sakif/text-summarizer/internal/config"
	"github.com/sakif/text-summarizer/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree around a single viper instance.
//
// FLAGS VS ENVIRONMENT:
// Each flag is bound to the same viper key its environment variable uses, so
// "--port 9000" and "PORT=9000" are interchangeable. A flag only wins when it
// was set explicitly.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "summarizer",
		Short:         "AI text and document summarizer API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real environment variables take precedence.
			_ = godotenv.Load()
			return config.SetDefaults(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	flags := root.PersistentFlags()
	flags.Int("port", 8000, "HTTP port (PORT)")
	flags.String("env", "development", "environment name (APP_ENV)")
	flags.String("db-path", "data/summarizer.db", "SQLite database file (DB_PATH)")

	for key, flag := range map[string]string{
		"port":    "port",
		"env":     "env",
		"db_path": "db-path",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), v)
			},
		},
		&cobra.Command{
			Use:   "config",
			Short: "Print the effective configuration with secrets masked",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := config.Load(v)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
				return nil
			},
		},
	)

	return root
}

func runServe(ctx context.Context, v *viper.Viper) error {
	// === 1. LOAD CONFIGURATION ===
	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return err
	}

	// === 2. SET UP LOGGING ===
	// LOG_FORMAT picks text or JSON output; LOG_LEVEL the minimum level.
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", slog.String("config", cfg.String()))

	// === 3. DATABASE DIRECTORY ===
	// os.MkdirAll is a no-op when the directory already exists.
	if cfg.DBPath != ":memory:" {
		dbDir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", dbDir),
				slog.String("error", err.Error()),
			)
			return err
		}
	}

	// === 4. SIGNALS ===
	// The context is cancelled on Ctrl+C or SIGTERM, which starts the
	// graceful shutdown inside Server.Start.
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		return err
	}

	// Start blocks until the server is shut down.
	if err := srv.Start(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return err
	}
	return nil
}
