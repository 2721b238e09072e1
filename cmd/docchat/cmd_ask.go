// This file implements the one-shot ask command.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	askSessionID string
	askUpload    string
)

// askCmd sends one message and prints the reply, for scripting and quick
// questions without the TUI.
var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Send one message and print the reply",
	Long: `Send a single message and print the assistant's reply to stdout.

Without --session a new session is created (when logged in) or the message
is sent anonymously. With --upload the document is uploaded first and the
question is answered against it.

Examples:
  docchat ask "What is the capital of France?"
  docchat ask --upload report.pdf "Summarize the key findings"
  docchat ask --session 42 "And what about Q3?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "Continue an existing session by id")
	askCmd.Flags().StringVar(&askUpload, "upload", "", "Upload a document before asking")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a.gate.Restore(ctx)

	if askSessionID != "" {
		if err := a.coordinator.SelectSession(ctx, askSessionID); err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}

	if askUpload != "" {
		content, err := os.ReadFile(askUpload)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", askUpload, err)
		}
		name := filepath.Base(askUpload)
		binding, err := a.coordinator.UploadDocument(ctx, name, "", content)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		logger.Info("document uploaded",
			zap.String("name", binding.Name),
			zap.String("session_id", binding.BoundSessionID))
		fmt.Fprintf(os.Stderr, "✓ Uploaded %s (%s)\n", binding.Name, binding.DescribeExtent())
	}

	message := strings.Join(args, " ")
	result, err := a.coordinator.SendMessage(ctx, message)
	if err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	if result.Failed {
		// The failure text is in the transcript; surface it as the error.
		msgs := a.coordinator.Messages()
		if n := len(msgs); n > 0 {
			return fmt.Errorf("%s", msgs[n-1].Content)
		}
		return fmt.Errorf("send failed")
	}

	fmt.Println(result.Reply.Content)
	return nil
}
