package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solatis/approvalgate/internal/types"
)

var ruleTenant string

var ruleCmd = &cobra.Command{
	Use:   "rule",
	Short: "Manage approval rules",
}

var ruleAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an approval rule",
	Args:  cobra.NoArgs,
	RunE:  runRuleAdd,
}

var ruleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List rules, optionally for one classification key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		database, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		key, _ := cmd.Flags().GetString("key")
		rs, err := store.ForTenant(ruleTenant).ListRules(ctx, types.ClassificationKey(key))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tPRIORITY\tACTIVE\tTYPE\tNAME")
		for _, r := range rs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\t%s\n", r.ID, r.ClassificationKey, r.Priority, r.Active, r.ApprovalType, r.Name)
		}
		return w.Flush()
	},
}

var ruleEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Activate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleActive(cmd, args[0], true)
	},
}

var ruleDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Deactivate a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleActive(cmd, args[0], false)
	},
}

var ruleDeleteCmd = &cobra.Command{
	Use:   "delete <rule-id>",
	Short: "Delete a rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseRuleID(args[0])
		if err != nil {
			return fmt.Errorf("invalid rule id: %w", err)
		}
		ctx := context.Background()
		database, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := store.ForTenant(ruleTenant).DeleteRule(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted rule %s\n", id)
		return nil
	},
}

func init() {
	ruleCmd.PersistentFlags().StringVar(&ruleTenant, "tenant", "", "tenant owning the rules")
	_ = ruleCmd.MarkPersistentFlagRequired("tenant")

	f := ruleAddCmd.Flags()
	f.String("key", "", "classification key the rule applies to")
	f.String("name", "", "rule name")
	f.String("description", "", "rule description")
	f.Int("priority", 0, "priority; higher is evaluated first")
	f.String("conditions", "", "condition document as JSON, or @file to read it from a file")
	f.String("approval-type", string(types.ApprovalSequential), "approval type (sequential, parallel, any)")
	f.Int("sla-hours", 0, "approval SLA in hours")
	f.Bool("require-comments", false, "approvers must comment")
	f.Bool("inactive", false, "create the rule disabled")
	_ = ruleAddCmd.MarkFlagRequired("key")
	_ = ruleAddCmd.MarkFlagRequired("name")

	ruleListCmd.Flags().String("key", "", "only list rules for this classification key")

	ruleCmd.AddCommand(ruleAddCmd, ruleListCmd, ruleEnableCmd, ruleDisableCmd, ruleDeleteCmd)
	rootCmd.AddCommand(ruleCmd)
}

func runRuleAdd(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	key, _ := f.GetString("key")
	name, _ := f.GetString("name")
	description, _ := f.GetString("description")
	priority, _ := f.GetInt("priority")
	conditions, _ := f.GetString("conditions")
	approvalType, _ := f.GetString("approval-type")
	slaHours, _ := f.GetInt("sla-hours")
	requireComments, _ := f.GetBool("require-comments")
	inactive, _ := f.GetBool("inactive")

	cond, err := parseConditionArg(conditions)
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	rule, err := store.ForTenant(ruleTenant).CreateRule(ctx, types.Rule{
		ClassificationKey: types.ClassificationKey(key),
		Name:              name,
		Description:       description,
		Priority:          priority,
		Active:            !inactive,
		Condition:         cond,
		ApprovalType:      types.ApprovalType(approvalType),
		SLAHours:          slaHours,
		RequireComments:   requireComments,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created rule %s\n", rule.ID)
	return nil
}

// parseConditionArg decodes an inline JSON condition or @path to a JSON file.
// An empty argument yields a rule that always matches.
func parseConditionArg(arg string) (*types.Condition, error) {
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read conditions: %w", err)
		}
	}
	return types.ParseCondition(data)
}

func setRuleActive(cmd *cobra.Command, rawID string, active bool) error {
	id, err := types.ParseRuleID(rawID)
	if err != nil {
		return fmt.Errorf("invalid rule id: %w", err)
	}
	ctx := context.Background()
	database, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := store.ForTenant(ruleTenant).SetRuleActive(ctx, id, active); err != nil {
		return err
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s rule %s\n", state, id)
	return nil
}
