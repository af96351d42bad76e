package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ledger/internal/cli"
)

func init() {
	rootCmd.AddCommand(recurringCmd)
	recurringCmd.AddCommand(recurringDueCmd)
	recurringCmd.AddCommand(recurringRunCmd)

	recurringCmd.PersistentFlags().String("date", "", "Processing date YYYY-MM-DD (default today)")
	recurringRunCmd.Flags().Bool("all", false, "Process every user with an active recurring definition")
}

var recurringCmd = &cobra.Command{
	Use:   "recurring",
	Short: "Inspect and materialize recurring transactions",
}

var recurringDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show what would be materialized for a user without writing",
	Args:  cobra.NoArgs,
	RunE:  runRecurringDue,
}

var recurringRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Materialize due recurring transactions",
	Long: `Materialize every due recurring definition of one user (--user) or of
all users (--all). Running twice on the same date creates nothing the
second time.`,
	Args: cobra.NoArgs,
	RunE: runRecurringRun,
}

func runRecurringDue(cmd *cobra.Command, args []string) error {
	userID, err := userFlag(cmd)
	if err != nil {
		return err
	}
	date, err := dateFlag(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	m, err := result.Processor.Preview(ctx, userID, date)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), m)
}

func runRecurringRun(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	date, err := dateFlag(cmd)
	if err != nil {
		return err
	}
	// A future run would push markers into a month that has not started.
	if today := todayFunc(); date.After(today.Time) {
		return fmt.Errorf("--date %s is after today (%s)", date, today)
	}

	var userID string
	if !all {
		if userID, err = userFlag(cmd); err != nil {
			return fmt.Errorf("%w (or pass --all)", err)
		}
	}

	ctx := cmd.Context()
	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	if all {
		created, err := result.Processor.ProcessAll(ctx, date)
		if perr := printJSON(cmd.OutOrStdout(), map[string]any{"date": date, "created": created}); perr != nil {
			return perr
		}
		return err
	}

	m, err := result.Processor.ProcessUser(ctx, userID, date)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), m)
}
