package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/solatis/approvalgate/internal/core/config"
	"github.com/solatis/approvalgate/internal/core/db"
)

// Version is the approvalgate release version.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "approvalgate",
	Short:         "Approval rule engine",
	Long:          `approvalgate decides whether a record needs approval by matching it against prioritized, condition-based rules.`,
	Version:       Version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real environment variables take precedence
		_ = godotenv.Load(".env")

		l, err := newLogger(logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds a zap logger writing to stderr.
// json uses the production encoder, text the development console encoder.
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	var cfg zap.Config
	switch format {
	case "json":
		cfg = zap.NewProductionConfig()
	case "text":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected json or text)", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// loadConfig loads configuration and applies the --db-url flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	return cfg, nil
}

// openDatabase opens the configured database.
func openDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("--db-url or %s_DATABASE_URL required", config.EnvPrefix)
	}
	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// openStore opens a migrated database and returns the rule store over it.
// The caller closes the returned database.
func openStore(ctx context.Context) (*sqlx.DB, *db.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RequireMigrated(ctx, database); err != nil {
		database.Close()
		return nil, nil, err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, db.NewStore(queries, logger), nil
}
