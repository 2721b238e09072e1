// This file contains the async commands: every network mutation runs in a
// tea.Cmd closure and reports back with a typed message. The coordinator owns
// the state; the model only re-renders from its snapshots.
package chat

import (
	"context"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/speech"
)

func (m Model) sendMessage(text string) tea.Cmd {
	return func() tea.Msg {
		result, err := m.coordinator.SendMessage(context.Background(), text)
		if err != nil {
			// Empty input and in-flight rejections are silent; the composer
			// already guards both.
			return sendDoneMsg{}
		}
		return sendDoneMsg{result: result}
	}
}

func (m Model) refreshSessions() tea.Cmd {
	return func() tea.Msg {
		err := m.coordinator.RefreshDirectory(context.Background())
		return sessionsRefreshedMsg{err: err}
	}
}

func (m Model) switchSession(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.coordinator.SelectSession(context.Background(), id)
		return sessionSwitchedMsg{id: id, err: err}
	}
}

func (m Model) createSession() tea.Cmd {
	return func() tea.Msg {
		id, err := m.coordinator.NewSession(context.Background())
		return sessionCreatedMsg{id: id, err: err}
	}
}

func (m Model) deleteSession(id string) tea.Cmd {
	return func() tea.Msg {
		err := m.coordinator.DeleteSession(context.Background(), id)
		return sessionDeletedMsg{id: id, err: err}
	}
}

func (m Model) uploadFile(path string) tea.Cmd {
	return func() tea.Msg {
		name := filepath.Base(path)
		content, err := os.ReadFile(path)
		if err != nil {
			return uploadDoneMsg{name: name, err: err}
		}
		// The declared type is unknown for local files; the extension
		// fallback decides.
		_, err = m.coordinator.UploadDocument(context.Background(), name, "", content)
		return uploadDoneMsg{name: name, err: err}
	}
}

func (m Model) clearDocument() tea.Cmd {
	return func() tea.Msg {
		_ = m.coordinator.ClearDocument(context.Background())
		return documentClearedMsg{}
	}
}

func (m Model) logout() tea.Cmd {
	return func() tea.Msg {
		m.gate.Logout(context.Background())
		m.coordinator.ResetLocal()
		return loggedOutMsg{}
	}
}

// listenSpeech waits for the next recognition event.
func (m Model) listenSpeech() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-m.recognizer.Results()
		if !ok {
			return speechEventMsg{result: speech.Result{Final: true}}
		}
		return speechEventMsg{result: result}
	}
}
