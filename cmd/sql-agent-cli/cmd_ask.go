package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/janhq/sql-agent/internal/domain/ask"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Run one question and print every step",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().Bool("final-only", false, "Print only the final answer")
}

func runAsk(cmd *cobra.Command, args []string) error {
	finalOnly, _ := cmd.Flags().GetBool("final-only")

	agent, err := newAsker(cmd)
	if err != nil {
		return err
	}
	defer agent.Close()

	question := strings.Join(args, " ")
	answer, err := askOnce(cmd.Context(), agent, question, cmd.OutOrStdout(), !finalOnly)
	if err != nil {
		return err
	}
	if finalOnly {
		fmt.Fprintln(cmd.OutOrStdout(), answer.Final)
	}
	return nil
}

// askOnce runs question and optionally echoes each step's output to out.
func askOnce(ctx context.Context, agent asker, question string, out io.Writer, echo bool) (*ask.Answer, error) {
	answer, err := agent.Ask(ctx, question, func(ev ask.Event) {
		if echo && ev.Output != "" {
			fmt.Fprintln(out, ev.Output)
		}
	})
	if err != nil {
		if answer != nil {
			return answer, fmt.Errorf("run %s ended with status %s: %w", answer.RunID, answer.Status, err)
		}
		return nil, err
	}
	return answer, nil
}
