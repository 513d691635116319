package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/solatis/approvalgate/internal/core/auth"
	"github.com/solatis/approvalgate/internal/core/config"
	"github.com/solatis/approvalgate/internal/core/db"
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue an API key for a tenant",
	Long: `Issue an API key for a tenant. The key is printed once and only its
HMAC is stored. --secret-id selects the HMAC secret when several are configured.`,
	Args: cobra.NoArgs,
	RunE: runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke <api-key-id>",
	Short: "Revoke an API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := store.RevokeAPIKey(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "revoked api key %s\n", args[0])
		return nil
	},
}

func init() {
	f := apikeyCreateCmd.Flags()
	f.String("tenant", "", "tenant the key authenticates as")
	f.String("name", "", "human-readable key name")
	f.String("secret-id", "", "HMAC secret id to sign with")
	_ = apikeyCreateCmd.MarkFlagRequired("tenant")

	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	rootCmd.AddCommand(apikeyCmd)
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	tenant, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	secretID, _ := cmd.Flags().GetString("secret-id")

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	secretID, err = selectSecret(secrets, secretID)
	if err != nil {
		return err
	}

	key, hash, err := auth.GenerateAPIKey(secretID, secrets[secretID])
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	id, err := store.CreateAPIKey(ctx, db.APIKey{
		TenantID: tenant,
		Name:     name,
		SecretID: secretID,
		KeyHash:  hash,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "api key id: %s\n", id)
	fmt.Fprintf(out, "api key:    %s\n", key)
	fmt.Fprintln(out, "store this key now; it cannot be shown again")
	return nil
}

// selectSecret picks the secret to sign with: the requested one, or the
// only configured one.
func selectSecret(secrets map[string][]byte, requested string) (string, error) {
	if len(secrets) == 0 {
		return "", fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}
	if requested != "" {
		if _, ok := secrets[requested]; !ok {
			return "", fmt.Errorf("secret id %s is not configured", requested)
		}
		return requested, nil
	}
	if len(secrets) > 1 {
		ids := make([]string, 0, len(secrets))
		for id := range secrets {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return "", fmt.Errorf("several HMAC secrets configured, choose one with --secret-id: %v", ids)
	}
	for id := range secrets {
		return id, nil
	}
	return "", nil
}
