package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/approvalgate/internal/core/api"
	"github.com/solatis/approvalgate/internal/core/auth"
	"github.com/solatis/approvalgate/internal/core/config"
	"github.com/solatis/approvalgate/internal/core/db"
	"github.com/solatis/approvalgate/internal/core/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start gRPC approval API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}

	database, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RequireMigrated(ctx, database); err != nil {
		return err
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	store := db.NewStore(queries, logger)

	service, err := api.NewApprovalService(func(tenantID string) api.TenantRepository {
		return store.ForTenant(tenantID)
	}, cfg.Rules.Limits(), logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	authenticator := auth.NewAuthenticator(secrets, queries, logger)
	grpcServer, err := server.NewGRPCServer(cfg.Server, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting approvalgate",
		zap.String("version", Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("max_condition_depth", cfg.Rules.MaxConditionDepth),
		zap.Int("max_condition_cost", cfg.Rules.MaxConditionCost),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	}
}
