// Package main provides the docchat CLI entry point.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docchat/internal/api"
	"docchat/internal/auth"
	"docchat/internal/config"
	"docchat/internal/convo"
	"docchat/internal/logging"
)

var (
	// Global flags
	verbose   bool
	serverURL string
	timeout   time.Duration

	// Logger for non-interactive commands; the TUI logs to category files.
	logger *zap.Logger
)

// rootCmd launches the interactive chat when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "docchat - chat with your documents from the terminal",
	Long: `docchat is a terminal client for a document-aware chat service.

Upload a PDF, spreadsheet or slide deck and ask questions about it, or just
chat. Sessions and documents live on the server; docchat keeps your login
token in ~/.docchat and reconciles everything else against the backend.

Run without arguments to start the interactive chat interface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dataDir, err := config.DataDir()
		if err == nil {
			_ = logging.Initialize(dataDir)
		}

		// The interactive UI has its own rendering; zap is for the
		// one-shot subcommands.
		if cmd.CalledAs() == "docchat" {
			return nil
		}
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Backend server URL (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (overrides config)")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(askCmd)
}

// app bundles the wired collaborators every subcommand and the TUI share.
type app struct {
	cfg         config.Config
	client      *api.Client
	gate        *auth.Gate
	coordinator *convo.Coordinator
}

// newApp wires the client, gate and coordinator from config plus flags.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if timeout > 0 {
		cfg.TimeoutSeconds = int(timeout.Seconds())
	}

	client := api.NewClient(cfg.ServerURL, api.WithTimeout(cfg.Timeout()))

	credPath, err := auth.DefaultCredentialPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential path: %w", err)
	}
	gate := auth.NewGate(client, auth.NewCredentialStore(credPath))
	coordinator := convo.NewCoordinator(client, gate)
	return &app{cfg: cfg, client: client, gate: gate, coordinator: coordinator}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
