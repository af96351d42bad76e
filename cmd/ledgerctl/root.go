package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ledger/internal/cli"
	"ledger/internal/config"
	"ledger/internal/core"
	"ledger/internal/log"
)

// Loaded by the root command before any subcommand runs.
var (
	cfg    *config.Config
	logger *log.Logger
)

var todayFunc = core.Today

var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Operate a ledger database from the command line",
	Long: `ledgerctl reads the same environment as the ledger server
(DATA_BACKEND, SQLITE_DB_PATH, RECURRING_DAY_POLICY, ...) and runs
maintenance tasks against it: schema migrations, recurring
materialization and metric snapshots.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cli.LoadEnvFile()
		loaded, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		cfg = loaded

		// Logs go to stderr so stdout stays machine readable.
		lc := log.DefaultConfig()
		lc.Component = log.ComponentCLI
		lc.Output = cmd.ErrOrStderr()
		lc.Format = cfg.LogFormat
		lc.Level, _ = log.ParseLevel(cfg.LogLevel)
		logger = log.New(lc)
		log.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("user", "", "User id (UUID) to operate on")
}

// userFlag returns the canonical form of the --user flag.
func userFlag(cmd *cobra.Command) (string, error) {
	raw, _ := cmd.Flags().GetString("user")
	if raw == "" {
		return "", fmt.Errorf("--user is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid --user %q: %w", raw, err)
	}
	return id.String(), nil
}

// dateFlag parses --date, defaulting to today.
func dateFlag(cmd *cobra.Command) (core.Date, error) {
	raw, _ := cmd.Flags().GetString("date")
	if raw == "" {
		return todayFunc(), nil
	}
	return core.ParseDate(raw)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
