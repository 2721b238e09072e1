// This file contains the slash command table.
package chat

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

const helpText = `## Commands

| Command | Description |
|---|---|
| /new | Start a new chat session |
| /sessions | Browse and switch chat sessions (Ctrl+L) |
| /upload | Upload a document: PDF, CSV, XLSX, PPT, PPTX (Ctrl+U) |
| /clear | Clear the bound document (Ctrl+K) |
| /logout | Log out and clear local state |
| /help | Show this help |

Enter sends a message. Esc or Ctrl+C quits.`

func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	cmd, _, _ := strings.Cut(input, " ")
	switch cmd {
	case "/new":
		m.statusLine = "Creating a new chat..."
		return m, m.createSession()

	case "/sessions":
		m.syncSessionList()
		m.viewMode = SessionListView
		return m, m.refreshSessions()

	case "/upload":
		m.viewMode = FilePickerView
		return m, m.filepicker.Init()

	case "/clear":
		if m.coordinator.DocumentBinding() == nil {
			m.statusLine = "No document to clear."
			return m, nil
		}
		return m, m.clearDocument()

	case "/logout":
		if !m.gate.Authenticated() {
			m.statusLine = "Not logged in."
			return m, nil
		}
		return m, m.logout()

	case "/help":
		m.statusLine = ""
		m.viewport.SetContent(m.renderMarkdown(helpText))
		m.viewport.GotoTop()
		return m, nil

	default:
		m.statusLine = "Unknown command: " + cmd + " (try /help)"
		return m, nil
	}
}
