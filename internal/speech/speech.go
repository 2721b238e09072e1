// Package speech abstracts a speech-to-text capture capability. The client
// never depends on a recognizer existing; it only reacts to Available().
package speech

import (
	"context"
	"errors"
)

// ErrNotAvailable is returned by Start when no capture backend exists.
var ErrNotAvailable = errors.New("speech capture is not available on this system")

// Result is one recognition event. Final marks the recognizer ending
// naturally; an explicit Stop produces no further results.
type Result struct {
	Text  string
	Err   error
	Final bool
}

// Recognizer captures speech and delivers transcripts. Start begins a
// capture; Stop cancels it explicitly, which is distinct from the capture
// ending on its own.
type Recognizer interface {
	Available() bool
	Start(ctx context.Context) error
	Stop()
	Results() <-chan Result
}

// Unavailable is the recognizer used when no capture backend exists on this
// system. Available() is false and Start fails fast.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Start(ctx context.Context) error {
	return ErrNotAvailable
}

func (Unavailable) Stop() {}

func (Unavailable) Results() <-chan Result {
	ch := make(chan Result)
	close(ch)
	return ch
}

// Detect returns the best recognizer for this system. No terminal capture
// backend is bundled yet, so this is currently always Unavailable; the TUI
// hides the mic control accordingly.
func Detect() Recognizer {
	return Unavailable{}
}
