package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/approvalgate/internal/core/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := db.MigrateUp(ctx, database, logger); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations up to date")
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		database, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		statuses, err := db.MigrateStatus(ctx, database)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MIGRATION\tSTATUS\tAPPLIED AT")
		for _, s := range statuses {
			state, appliedAt := "pending", "-"
			if s.Applied {
				state = "applied"
			}
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, state, appliedAt)
		}
		return w.Flush()
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}
