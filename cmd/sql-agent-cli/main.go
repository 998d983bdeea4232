package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sql-agent-cli",
	Short: "Ask questions about a PostgreSQL database in plain language",
	Long: `sql-agent-cli runs the SQL agent workflow from a terminal.

By default the agent is assembled in-process from the same environment
variables the server reads. With --url the CLI talks to a running server.

Examples:
  sql-agent-cli ask "How many orders were placed last month?"
  sql-agent-cli chat --url http://localhost:9000
  sql-agent-cli config show`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("url", "", "Base URL of a running sql-agent server (default: run in-process)")
	rootCmd.PersistentFlags().Int("step-budget", 0, "Override the step budget for each run")
}
