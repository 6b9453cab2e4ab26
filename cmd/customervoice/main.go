// Command customervoice runs the feedback API and its maintenance tasks.
//
//	customervoice serve              # HTTP server
//	customervoice digest --dry-run   # print a digest without storing it
//	customervoice migrate            # create or upgrade the schema
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/customer-voice-api/internal/classifier"
	"github.com/tbourn/customer-voice-api/internal/config"
	"github.com/tbourn/customer-voice-api/internal/observability"
	"github.com/tbourn/customer-voice-api/internal/repo"
	"github.com/tbourn/customer-voice-api/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "customervoice",
		Short:         "Customer feedback ingestion and analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       appVersion(),
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(digestCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func appVersion() string {
	return sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
}

// loadConfig reads the dotenv file, then the environment, and sets up the
// global logger.
func loadConfig() (config.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)
	return cfg, nil
}

// openStore opens the configured database and applies migrations.
func openStore(cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenDatabase(repo.Options{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		Tracing:      cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeStore(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeStore(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// loadClassifier returns the built-in classifier or one built from the
// configured YAML lexicon.
func loadClassifier(cfg config.Config) (classifier.Classifier, error) {
	if cfg.LexiconPath == "" {
		return classifier.Default(), nil
	}
	lex, err := classifier.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", cfg.LexiconPath, err)
	}
	k, err := classifier.New(lex)
	if err != nil {
		return nil, fmt.Errorf("lexicon %s: %w", cfg.LexiconPath, err)
	}
	log.Info().Str("path", cfg.LexiconPath).Msg("custom lexicon loaded")
	return k, nil
}

// startTracing installs tracing and returns its shutdown hook.
func startTracing(ctx context.Context, cfg config.Config) observability.ShutdownFunc {
	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion())
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		return func(context.Context) error { return nil }
	}
	return shutdown
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer closeStore(db)
			log.Info().Str("backend", backendName(db)).Msg("schema up to date")
			return nil
		},
	}
}

func backendName(db *gorm.DB) string {
	if repo.IsPostgres(db) {
		return "postgres"
	}
	return "sqlite"
}
