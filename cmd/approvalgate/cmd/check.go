package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/solatis/approvalgate/internal/core/config"
	"github.com/solatis/approvalgate/internal/rules"
	"github.com/solatis/approvalgate/internal/types"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate a record against a rules file offline",
	Long: `Evaluate a record against rules read from a JSON file, without a database.

The rules file is a JSON array of rules. Rules default to active, and rules
without a classification_key take the --key value. Rules are evaluated in
file order among equal priorities. The record file is a JSON object; "-"
reads it from stdin.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.String("rules", "", "rules JSON file")
	f.String("record", "-", "record JSON file, - for stdin")
	f.String("key", "", "classification key to match")
	_ = checkCmd.MarkFlagRequired("rules")
	_ = checkCmd.MarkFlagRequired("key")
	rootCmd.AddCommand(checkCmd)
}

// checkResult is the JSON printed by check.
type checkResult struct {
	NeedsApproval bool        `json:"needs_approval"`
	Rule          *types.Rule `json:"rule"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	rulesPath, _ := cmd.Flags().GetString("rules")
	recordPath, _ := cmd.Flags().GetString("record")
	key, _ := cmd.Flags().GetString("key")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rulesData, err := os.ReadFile(rulesPath)
	if err != nil {
		return fmt.Errorf("failed to read rules: %w", err)
	}
	ruleSet, err := decodeRules(rulesData, types.ClassificationKey(key))
	if err != nil {
		return err
	}

	var recordData []byte
	if recordPath == "-" {
		recordData, err = io.ReadAll(cmd.InOrStdin())
	} else {
		recordData, err = os.ReadFile(recordPath)
	}
	if err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}
	var record types.Record
	if err := json.Unmarshal(recordData, &record); err != nil {
		return fmt.Errorf("record must be a JSON object: %w", err)
	}

	result, err := check(cmd.Context(), cfg, ruleSet, types.ClassificationKey(key), record)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// decodeRules reads a JSON array of rules, defaulting each to active and
// to the given classification key.
func decodeRules(data []byte, key types.ClassificationKey) ([]types.Rule, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("rules must be a JSON array: %w", err)
	}

	out := make([]types.Rule, 0, len(raw))
	for i, doc := range raw {
		rule := types.Rule{Active: true}
		if err := json.Unmarshal(doc, &rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.ClassificationKey == "" {
			rule.ClassificationKey = key
		}
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i)
		}
		out = append(out, rule)
	}
	return out, nil
}

func check(ctx context.Context, cfg *config.Config, ruleSet []types.Rule, key types.ClassificationKey, record types.Record) (checkResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	engine := rules.NewEngine(rules.NewMemoryRepository(ruleSet...),
		rules.WithEvaluator(rules.NewEvaluator(cfg.Rules.Limits())),
		rules.WithViolationHandler(func(rule types.Rule, err error) {
			logger.Warn("rule condition exceeds limits, treated as no match",
				zap.String("rule_name", rule.Name),
				zap.Error(err),
			)
		}),
	)

	match, err := engine.FindMatchingRule(ctx, key, record)
	if err != nil {
		return checkResult{}, err
	}
	if match == nil {
		return checkResult{}, nil
	}
	return checkResult{NeedsApproval: true, Rule: &match.Rule}, nil
}
