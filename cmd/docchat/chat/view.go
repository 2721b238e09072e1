// This file contains view rendering: transcript, header, footer.
package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"docchat/internal/convo"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Connecting..."
	}

	switch m.viewMode {
	case SessionListView:
		return m.styles.Content.Render(m.list.View())
	case FilePickerView:
		title := m.styles.Header.Render(" Select a document to upload ")
		return lipgloss.JoinVertical(lipgloss.Left, title, m.styles.Content.Render(m.filepicker.View()))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderDocumentLine(),
		m.renderComposer(),
		m.renderFooter(),
	)
}

func (m Model) renderHeader() string {
	title := "docchat"
	if m.gate.Authenticated() {
		user := m.gate.CurrentUser()
		title += "  ·  " + user.FullName
	} else {
		title += "  ·  not logged in"
	}
	return m.styles.Header.Render(title)
}

// renderDocumentLine shows the bound document chip, or nothing.
func (m Model) renderDocumentLine() string {
	binding := m.coordinator.DocumentBinding()
	if binding == nil {
		return ""
	}
	label := binding.Name
	if detail := binding.DescribeExtent(); detail != "" {
		label += " (" + detail + ")"
	}
	return m.styles.DocumentTag.Render("📄 "+label) + m.styles.Muted.Render("  Ctrl+K to clear")
}

func (m Model) renderComposer() string {
	if m.isLoading {
		return m.spinner.View() + m.styles.Muted.Render(" Thinking...")
	}
	if m.isListening {
		return m.styles.Error.Render("● ") + m.styles.Muted.Render("Listening... (Ctrl+T to stop)") + "\n" + m.textinput.View()
	}
	return m.textinput.View()
}

func (m Model) renderFooter() string {
	if m.statusLine != "" {
		return m.styles.Footer.Render(m.statusLine)
	}
	hints := "Ctrl+L sessions · Ctrl+N new · Ctrl+U upload"
	if m.recognizer.Available() {
		hints += " · Ctrl+T voice"
	}
	return m.styles.Footer.Render(hints)
}

func (m Model) renderHistory() string {
	msgs := m.coordinator.Messages()
	if len(msgs) == 0 {
		return m.styles.Muted.Render("\n  Start the conversation, or /help for commands.\n")
	}

	var sb strings.Builder
	for _, msg := range msgs {
		switch msg.Kind {
		case convo.KindUser:
			label := "You"
			if !msg.Confirmed() {
				label = "You …"
			}
			sb.WriteString(m.styles.UserLabel.Render(label))
			if !msg.Timestamp.IsZero() {
				sb.WriteString("  " + m.styles.Timestamp.Render(formatTimestamp(msg.Timestamp)))
			}
			sb.WriteString("\n")
			sb.WriteString(m.styles.UserInput.Render(msg.Content))
			sb.WriteString("\n")

		case convo.KindSystem:
			sb.WriteString("\n" + m.styles.SystemNote.Render("· "+msg.Content) + "\n")

		default: // bot
			label := "Assistant"
			if msg.HasDocumentContext {
				label += " 📄"
			}
			sb.WriteString(m.styles.BotLabel.Render(label) + "\n")
			sb.WriteString(m.renderMarkdown(msg.Content))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// renderMarkdown renders bot content with glamour, with panic recovery: a
// renderer failure must never take down the UI.
func (m Model) renderMarkdown(content string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			result = content
		}
	}()
	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content
}
