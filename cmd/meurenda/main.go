// Command meurenda runs the API server, the spreadsheet export worker and
// the maintenance commands.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meurenda/internal/cli"
	"meurenda/internal/config"
	"meurenda/internal/log"
)

var (
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "meurenda",
		Short: "Income, expense and goal tracking for small sellers",
		Long: `meurenda records sales, expenses and investments, aggregates them into
period statistics and projects the daily pace needed to reach profit goals.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: initApp,
	}

	// Set by initApp before any subcommand runs.
	cfg    *config.Config
	logger *log.Logger
)

func init() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(migrateCmd())
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := cli.SignalContext(context.Background(), log.New(log.DefaultConfig()))
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initApp(_ *cobra.Command, _ []string) error {
	loaded, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	cfg = loaded
	logger = cli.SetupLogger(cfg)
	return nil
}
