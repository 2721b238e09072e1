package convo

import "time"

// Session is the client's projection of one server-side conversation thread.
// The server-assigned id is the sole identity; the client never invents ids.
type Session struct {
	ID           string
	Title        string
	MessageCount int
	UpdatedAt    time.Time
}

// Directory mirrors the server's session list for the current identity.
// Only the coordinator writes it.
type Directory struct {
	sessions []Session
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory { return &Directory{} }

// Sessions returns a snapshot of the listing, newest first as the server
// orders it.
func (d *Directory) Sessions() []Session {
	out := make([]Session, len(d.sessions))
	copy(out, d.sessions)
	return out
}

// Len returns the number of known sessions.
func (d *Directory) Len() int { return len(d.sessions) }

func (d *Directory) replaceAll(sessions []Session) {
	d.sessions = sessions
}

func (d *Directory) clear() {
	d.sessions = nil
}
