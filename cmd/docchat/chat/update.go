// This file contains the update loop: key handling and reconciliation of
// async command results into the view.
package chat

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"docchat/internal/logging"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.textinput.Width = msg.Width - 4
		m.list.SetSize(msg.Width, msg.Height-2)
		m.ready = true
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			if m.isListening {
				m.recognizer.Stop()
			}
			return m, tea.Quit

		case tea.KeyEsc:
			if m.viewMode != ChatView {
				m.viewMode = ChatView
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit
		}

		switch m.viewMode {
		case SessionListView:
			return m.updateSessionList(msg)
		case FilePickerView:
			return m.updateFilePicker(msg)
		}

		switch msg.Type {
		case tea.KeyCtrlL:
			m.syncSessionList()
			m.viewMode = SessionListView
			return m, m.refreshSessions()

		case tea.KeyCtrlN:
			m.statusLine = "Creating a new chat..."
			return m, m.createSession()

		case tea.KeyCtrlU:
			m.viewMode = FilePickerView
			return m, m.filepicker.Init()

		case tea.KeyCtrlK:
			if m.coordinator.DocumentBinding() == nil {
				m.statusLine = "No document to clear."
				return m, nil
			}
			return m, m.clearDocument()

		case tea.KeyCtrlT:
			return m.toggleVoiceInput()

		case tea.KeyEnter:
			return m.submitInput()
		}

	case sendDoneMsg:
		m.isLoading = false
		if msg.result.Discarded {
			m.statusLine = "A reply for a previous chat was discarded."
		} else {
			m.statusLine = ""
		}
		m.syncSessionList()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case sessionsRefreshedMsg:
		if msg.err != nil {
			m.statusLine = "Could not refresh sessions: " + msg.err.Error()
		}
		m.syncSessionList()
		return m, nil

	case sessionSwitchedMsg:
		if msg.err != nil {
			m.statusLine = "Could not load session: " + msg.err.Error()
		} else {
			m.statusLine = ""
			m.viewMode = ChatView
		}
		m.syncSessionList()
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			m.statusLine = "Could not create session: " + msg.err.Error()
		} else {
			m.statusLine = "Started a new chat."
			m.viewMode = ChatView
		}
		m.syncSessionList()
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case sessionDeletedMsg:
		if msg.err != nil {
			m.statusLine = "Could not delete session: " + msg.err.Error()
		} else {
			m.statusLine = "Session deleted."
		}
		m.syncSessionList()
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case uploadDoneMsg:
		if msg.err != nil {
			m.statusLine = "Upload failed: " + msg.err.Error()
		} else {
			m.statusLine = ""
		}
		m.viewMode = ChatView
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case documentClearedMsg:
		m.statusLine = ""
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	case loggedOutMsg:
		m.statusLine = "Logged out."
		m.syncSessionList()
		m.viewport.SetContent(m.renderHistory())
		return m, nil

	case speechEventMsg:
		return m.handleSpeechEvent(msg)

	case refreshViewMsg:
		m.viewport.SetContent(m.renderHistory())
		m.viewport.GotoBottom()
		return m, nil

	default:
		m.spinner, spCmd = m.spinner.Update(msg)
		if m.isLoading {
			// Keep the transcript current while a send is in flight so the
			// optimistic entry shows as soon as it is appended.
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoBottom()
		}
		if m.viewMode == FilePickerView {
			var fpCmd tea.Cmd
			m.filepicker, fpCmd = m.filepicker.Update(msg)
			return m, tea.Batch(spCmd, fpCmd)
		}
		return m, spCmd
	}

	m.textinput, tiCmd = m.textinput.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

// submitInput handles Enter in the composer: slash commands or a send.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	if strings.HasPrefix(input, "/") {
		m.textinput.Reset()
		return m.handleCommand(input)
	}
	if m.coordinator.Busy() {
		// The composer stays responsive, but only one send is in flight.
		m.statusLine = "Still waiting for the previous reply..."
		return m, nil
	}

	// Optimistic: the input clears immediately, the user message appears in
	// the transcript before the network call settles.
	m.textinput.Reset()
	m.isLoading = true
	cmd := m.sendMessage(input)

	// Render the optimistic append on the next frame.
	return m, tea.Batch(cmd, m.spinner.Tick, m.renderAfter())
}

// renderAfter re-renders the transcript once the coordinator has appended
// the optimistic entry.
func (m Model) renderAfter() tea.Cmd {
	return func() tea.Msg {
		return refreshViewMsg{}
	}
}

type refreshViewMsg struct{}

func (m Model) updateSessionList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		if item, ok := m.list.SelectedItem().(sessionItem); ok {
			m.statusLine = "Loading session..."
			return m, m.switchSession(item.id)
		}
		return m, nil
	case tea.KeyCtrlD:
		if item, ok := m.list.SelectedItem().(sessionItem); ok {
			return m, m.deleteSession(item.id)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) updateFilePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.filepicker, cmd = m.filepicker.Update(msg)
	if didSelect, path := m.filepicker.DidSelectFile(msg); didSelect {
		m.viewMode = ChatView
		m.statusLine = "Uploading " + path + "..."
		return m, tea.Batch(cmd, m.uploadFile(path))
	}
	return m, cmd
}

func (m Model) toggleVoiceInput() (tea.Model, tea.Cmd) {
	if !m.recognizer.Available() {
		m.statusLine = "Speech input is not available on this system."
		return m, nil
	}
	if m.isListening {
		// Explicit stop, distinct from the capture ending naturally.
		m.recognizer.Stop()
		m.isListening = false
		m.statusLine = ""
		logging.Speech("capture stopped")
		return m, nil
	}
	if err := m.recognizer.Start(context.Background()); err != nil {
		m.statusLine = "Could not start speech input: " + err.Error()
		return m, nil
	}
	logging.Speech("capture started")
	m.isListening = true
	m.statusLine = "Listening..."
	return m, m.listenSpeech()
}

func (m Model) handleSpeechEvent(msg speechEventMsg) (tea.Model, tea.Cmd) {
	if msg.result.Err != nil {
		m.isListening = false
		m.statusLine = "Speech input error: " + msg.result.Err.Error()
		return m, nil
	}
	if msg.result.Text != "" {
		m.textinput.SetValue(msg.result.Text)
	}
	if msg.result.Final {
		m.isListening = false
		m.statusLine = ""
		return m, nil
	}
	return m, m.listenSpeech()
}
