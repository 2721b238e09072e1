// Package chat provides the interactive TUI for the docchat client.
// This file contains the model, message types, and initialization.
package chat

import (
	"fmt"
	"time"

	"docchat/cmd/docchat/ui"
	"docchat/internal/auth"
	"docchat/internal/convo"
	"docchat/internal/speech"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

// ViewMode determines which component is focused.
type ViewMode int

const (
	ChatView ViewMode = iota
	SessionListView
	FilePickerView
)

// sessionItem is a list item for the session picker.
type sessionItem struct {
	id, title, desc string
}

func (i sessionItem) Title() string       { return i.title }
func (i sessionItem) Description() string { return i.desc }
func (i sessionItem) FilterValue() string { return i.title }

// Model is the bubbletea model for the interactive chat.
type Model struct {
	// UI components
	textinput  textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	list       list.Model
	filepicker filepicker.Model
	styles     ui.Styles
	renderer   *glamour.TermRenderer

	// Collaborators
	coordinator *convo.Coordinator
	gate        *auth.Gate
	recognizer  speech.Recognizer

	viewMode    ViewMode
	isLoading   bool
	isListening bool
	statusLine  string
	width       int
	height      int
	ready       bool
	quitting    bool
}

// Messages produced by async commands. Every network call runs inside a
// tea.Cmd and reports back with one of these.
type (
	sendDoneMsg struct {
		result convo.SendResult
	}
	sessionsRefreshedMsg struct {
		err error
	}
	sessionSwitchedMsg struct {
		id  string
		err error
	}
	sessionCreatedMsg struct {
		id  string
		err error
	}
	sessionDeletedMsg struct {
		id  string
		err error
	}
	uploadDoneMsg struct {
		name string
		err  error
	}
	documentClearedMsg struct{}
	loggedOutMsg       struct{}
	speechEventMsg     struct {
		result speech.Result
	}
)

// New builds the chat model. The gate should already be restored and the
// directory refreshed by the caller so the first frame is complete.
func New(coordinator *convo.Coordinator, gate *auth.Gate, theme ui.Theme) Model {
	styles := ui.NewStyles(theme)

	ti := textinput.New()
	ti.Placeholder = "Ask me anything... (Enter to send, Ctrl+C to quit)"
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	sessionList := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	sessionList.Title = "Chat History"
	sessionList.SetShowStatusBar(false)

	fp := filepicker.New()
	fp.AllowedTypes = []string{".pdf", ".csv", ".xlsx", ".ppt", ".pptx"}

	var renderer *glamour.TermRenderer
	if theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	} else {
		renderer, _ = glamour.NewTermRenderer(glamour.WithStylePath("light"), glamour.WithWordWrap(80))
	}

	m := Model{
		textinput:   ti,
		viewport:    vp,
		spinner:     sp,
		list:        sessionList,
		filepicker:  fp,
		styles:      styles,
		renderer:    renderer,
		coordinator: coordinator,
		gate:        gate,
		recognizer:  speech.Detect(),
	}
	m.syncSessionList()
	m.viewport.SetContent(m.renderHistory())
	return m
}

// Init starts the spinner tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// syncSessionList mirrors the coordinator's directory into the list widget.
func (m *Model) syncSessionList() {
	sessions := m.coordinator.Directory().Sessions()
	items := make([]list.Item, len(sessions))
	active := m.coordinator.ActiveSessionID()
	for i, s := range sessions {
		title := s.Title
		if s.ID == active {
			title = "* " + title
		}
		items[i] = sessionItem{
			id:    s.ID,
			title: title,
			desc:  fmt.Sprintf("%d messages · %s", s.MessageCount, formatTimestamp(s.UpdatedAt)),
		}
	}
	m.list.SetItems(items)
}

// formatTimestamp renders clock time for recent moments and the date
// otherwise.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if time.Since(t) < 24*time.Hour {
		return t.Format("15:04")
	}
	return t.Format("2006-01-02")
}
