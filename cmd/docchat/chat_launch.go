// This file launches the interactive chat interface.
package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"docchat/cmd/docchat/chat"
	"docchat/cmd/docchat/ui"
	"docchat/internal/logging"
)

func runInteractiveChat() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	logging.Boot("starting interactive chat against %s", a.cfg.ServerURL)

	// Restore the saved login and pull the session listing before the first
	// frame. Both are best-effort: an unreachable server or a stale token
	// drops to anonymous use, it does not block the UI.
	ctx := context.Background()
	a.gate.Restore(ctx)
	if err := a.coordinator.RefreshDirectory(ctx); err != nil {
		logging.SessionWarn("initial directory refresh failed: %v", err)
	}

	var theme ui.Theme
	switch a.cfg.Theme {
	case "light":
		theme = ui.LightTheme()
	case "dark":
		theme = ui.DarkTheme()
	default:
		theme = ui.DetectTheme()
	}

	p := tea.NewProgram(
		chat.New(a.coordinator, a.gate, theme),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat interface failed: %w", err)
	}
	return nil
}
