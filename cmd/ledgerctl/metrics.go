package main

import (
	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/core"
	"ledger/internal/session"
)

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().Int("months", 0, "Cash-flow window in months (default CASH_FLOW_MONTHS)")
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print a user's dashboard metrics",
	Long: `Load every collection of a user and print the KPI record, the
cash-flow window and expenses by category. Recurring transactions are
not materialized; run 'ledgerctl recurring run' for that.`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

type metricsReport struct {
	Degraded           bool                  `json:"degraded,omitempty"`
	Metrics            core.Metrics          `json:"metrics"`
	CashFlow           []core.MonthFlow      `json:"cash_flow"`
	ExpensesByCategory []core.CategoryAmount `json:"expenses_by_category"`
	LoadError          string                `json:"load_error,omitempty"`
}

func runMetrics(cmd *cobra.Command, args []string) error {
	userID, err := userFlag(cmd)
	if err != nil {
		return err
	}
	months, _ := cmd.Flags().GetInt("months")
	if months <= 0 {
		months = cfg.CashFlowMonths
	}

	ctx := cmd.Context()
	result, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer result.Cleanup()

	state, loadErr := session.NewLoader(result.Ledger).Load(ctx, userID)
	report := metricsReport{
		Metrics:            state.Metrics(),
		CashFlow:           state.CashFlow(todayFunc(), months),
		ExpensesByCategory: state.ExpensesByCategory(),
	}
	if loadErr != nil {
		report.Degraded = true
		report.LoadError = loadErr.Error()
		logger.Warn("Metrics computed from a partial load", "user_id", userID, "error", loadErr)
	}
	return printJSON(cmd.OutOrStdout(), report)
}
