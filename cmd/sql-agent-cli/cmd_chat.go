package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long:  `Reads one question per line and streams the output of every step. Type q, exit or quit to leave.`,
	RunE:  runChat,
}

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "q", "exit", "quit":
		return true
	}
	return false
}

func runChat(cmd *cobra.Command, _ []string) error {
	agent, err := newAsker(cmd)
	if err != nil {
		return err
	}
	defer agent.Close()

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "User: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := scanner.Text()
		if isQuit(line) {
			fmt.Fprintln(out, "Goodbye!")
			return nil
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, err := askOnce(cmd.Context(), agent, line, out, true); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		if cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}
}
