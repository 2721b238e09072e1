// This file implements session management from the command line.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sessionsCmd manages chat sessions without entering the TUI.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
	Long: `List and manage chat sessions stored on the server.

Subcommands:
  list   - List all saved sessions
  delete - Delete a session by id`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all saved sessions",
	RunE:  runSessionsList,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsDeleteCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	a.gate.Restore(cmd.Context())
	if !a.gate.Authenticated() {
		fmt.Println("Not logged in. Run 'docchat login' first.")
		return nil
	}

	if err := a.coordinator.RefreshDirectory(cmd.Context()); err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := a.coordinator.Directory().Sessions()
	if len(sessions) == 0 {
		fmt.Println("No saved sessions found.")
		return nil
	}

	fmt.Println("📁 Saved Sessions")
	fmt.Println(strings.Repeat("─", 50))
	for i, s := range sessions {
		fmt.Printf("  %d. %s  (%d messages)\n     %s\n", i+1, s.Title, s.MessageCount, s.ID)
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Total: %d sessions\n", len(sessions))

	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	a.gate.Restore(cmd.Context())
	if !a.gate.Authenticated() {
		fmt.Println("Not logged in. Run 'docchat login' first.")
		return nil
	}

	sessionID := args[0]
	if err := a.coordinator.DeleteSession(cmd.Context(), sessionID); err != nil {
		logger.Warn("session delete failed", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}

	fmt.Printf("✓ Session %s deleted.\n", sessionID)
	return nil
}
