// Package convo holds the client-side conversation state and the
// reconciliation logic that merges backend responses into it: which session a
// message belongs to, which uploaded document is bound to that session, and
// how optimistic appends are confirmed against server truth.
package convo

import "time"

// Kind classifies a message in the transcript.
type Kind string

const (
	KindUser   Kind = "user"
	KindBot    Kind = "bot"
	KindSystem Kind = "system"
)

// Message is one transcript entry. Once appended it is immutable except for
// the optimistic-to-confirmed transition, which flips the flag on the same
// entry so the rendered content never moves or flickers.
type Message struct {
	Kind               Kind
	Content            string
	HasDocumentContext bool
	Timestamp          time.Time

	confirmed bool
}

// Confirmed reports whether the entry has been acknowledged by the server.
// Bot and system messages are confirmed from birth.
func (m *Message) Confirmed() bool { return m.confirmed }
