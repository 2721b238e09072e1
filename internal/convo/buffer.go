package convo

// Buffer is the ordered message log for the active session. Appends keep
// insertion order; nothing is ever removed or reordered except by a full
// replace or clear when the active session changes.
type Buffer struct {
	messages []*Message
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// AppendOptimistic appends a user message before any network round-trip and
// returns the entry so the coordinator can confirm it in place later.
func (b *Buffer) AppendOptimistic(msg Message) *Message {
	msg.confirmed = false
	entry := &msg
	b.messages = append(b.messages, entry)
	return entry
}

// AppendConfirmed appends a server-originated (bot/system) message.
func (b *Buffer) AppendConfirmed(msg Message) *Message {
	msg.confirmed = true
	entry := &msg
	b.messages = append(b.messages, entry)
	return entry
}

// Confirm marks an optimistic entry as server-acknowledged. The entry itself
// is flipped; content and position are untouched.
func (b *Buffer) Confirm(entry *Message) {
	if entry != nil {
		entry.confirmed = true
	}
}

// ReplaceAll swaps the whole log. Used only by session load and switch.
func (b *Buffer) ReplaceAll(msgs []Message) {
	replaced := make([]*Message, len(msgs))
	for i := range msgs {
		m := msgs[i]
		m.confirmed = true
		replaced[i] = &m
	}
	b.messages = replaced
}

// Clear empties the buffer.
func (b *Buffer) Clear() { b.messages = nil }

// Len returns the number of entries.
func (b *Buffer) Len() int { return len(b.messages) }

// Messages returns a snapshot copy for rendering.
func (b *Buffer) Messages() []Message {
	out := make([]Message, len(b.messages))
	for i, m := range b.messages {
		out[i] = *m
	}
	return out
}
