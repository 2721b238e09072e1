package convo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/api"
	"docchat/internal/logging"
)

// Backend is the slice of the API client the coordinator needs. *api.Client
// satisfies it; tests substitute a scripted fake.
type Backend interface {
	ListSessions(ctx context.Context, token string) ([]api.SessionSummary, error)
	LoadSession(ctx context.Context, token, sessionID string) (api.SessionHistoryResponse, error)
	CreateSession(ctx context.Context, token string) (api.NewSessionResponse, error)
	DeleteSession(ctx context.Context, token, sessionID string) error
	SendMessage(ctx context.Context, token string, req api.ChatRequest) (api.ChatResponse, error)
	UploadDocument(ctx context.Context, token, sessionID, filename string, content io.Reader) (api.UploadResponse, error)
	ClearDocument(ctx context.Context, token, sessionID string) error
}

// TokenSource supplies the current auth token. *auth.Gate satisfies it.
type TokenSource interface {
	Token() string
	Authenticated() bool
}

// SendState is the coordinator's message-send state machine. Failed behaves
// identically to Idle for the next attempt.
type SendState int

const (
	StateIdle SendState = iota
	StateSending
	StateSettled
	StateFailed
)

var (
	// ErrEmptyMessage rejects a blank send: no state change, no network call.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSendInFlight rejects a second send while one is outstanding. The UI
	// disables the composer during Sending, so hitting this means a caller
	// bypassed Busy().
	ErrSendInFlight = errors.New("a send is already in flight")
)

// inflight tags one outstanding send with the session the buffer showed when
// it was issued. A response whose tag no longer matches the active session is
// discarded instead of being applied to whichever buffer is current.
type inflight struct {
	id            string // correlation id, for logs
	issuedAgainst string // active session id at issue time ("" = none)
}

// Coordinator orchestrates every network mutation and reconciles the results
// into the directory, buffer and binding. It is their sole writer.
type Coordinator struct {
	mu sync.Mutex

	backend Backend
	tokens  TokenSource

	dir     *Directory
	buf     *Buffer
	binding *Binding

	activeSessionID string
	state           SendState
	pending         *inflight
}

// NewCoordinator wires the coordinator to its backend and token source.
func NewCoordinator(backend Backend, tokens TokenSource) *Coordinator {
	return &Coordinator{
		backend: backend,
		tokens:  tokens,
		dir:     NewDirectory(),
		buf:     NewBuffer(),
	}
}

// Directory exposes the session listing for rendering.
func (c *Coordinator) Directory() *Directory { return c.dir }

// Messages returns a snapshot of the active buffer.
func (c *Coordinator) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Messages()
}

// ActiveSessionID returns the current session id, or "" when none is active.
func (c *Coordinator) ActiveSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeSessionID
}

// DocumentBinding returns a copy of the active binding, or nil.
func (c *Coordinator) DocumentBinding() *Binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.binding == nil {
		return nil
	}
	b := *c.binding
	return &b
}

// Busy reports whether a send is outstanding. The composer is disabled while
// true, so at most one send is ever in flight from the UI.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateSending
}

// resolveSessionID is the single session-attribution rule shared by message
// send and document upload: the active session wins; failing that, the
// session a document was uploaded to (covers an upload that implicitly
// created a session the directory has not been told about yet).
func (c *Coordinator) resolveSessionID() string {
	if c.activeSessionID != "" {
		return c.activeSessionID
	}
	if c.binding != nil && c.binding.BoundSessionID != "" {
		return c.binding.BoundSessionID
	}
	return ""
}

// EnsureActiveSession returns the session id to attribute the next operation
// to, creating one server-side when none exists. created reports whether a
// creation call was made.
func (c *Coordinator) EnsureActiveSession(ctx context.Context) (id string, created bool, err error) {
	c.mu.Lock()
	if id = c.resolveSessionID(); id != "" {
		c.activeSessionID = id
		c.mu.Unlock()
		return id, false, nil
	}
	c.mu.Unlock()

	resp, err := c.backend.CreateSession(ctx, c.tokens.Token())
	if err != nil {
		return "", false, fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	c.activeSessionID = resp.SessionID
	c.mu.Unlock()
	logging.Session("implicitly created session %s", resp.SessionID)
	return resp.SessionID, true, nil
}

// SendResult reports how a send settled.
type SendResult struct {
	// Reply is the confirmed bot message. Zero when Failed or Discarded.
	Reply Message
	// Failed is set when the call errored; the failure text was appended to
	// the buffer as a visible message and the coordinator is retryable.
	Failed bool
	// Discarded is set when the response landed after the active session
	// changed; nothing was applied.
	Discarded bool
}

// SendMessage runs the send state machine: optimistic append, network call,
// reconciliation. Errors never propagate past this boundary; transport and
// server failures become a visible transcript message and a Failed result.
// The only errors returned are ErrEmptyMessage and ErrSendInFlight.
func (c *Coordinator) SendMessage(ctx context.Context, text string) (SendResult, error) {
	trimmed := trimMessage(text)
	if trimmed == "" {
		return SendResult{}, ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state == StateSending {
		c.mu.Unlock()
		return SendResult{}, ErrSendInFlight
	}
	c.state = StateSending

	submitID := c.resolveSessionID()
	tag := &inflight{id: uuid.NewString(), issuedAgainst: c.activeSessionID}
	c.pending = tag

	userEntry := c.buf.AppendOptimistic(Message{
		Kind:               KindUser,
		Content:            trimmed,
		HasDocumentContext: c.binding != nil && c.binding.BoundSessionID == submitID && submitID != "",
		Timestamp:          time.Now(),
	})
	c.mu.Unlock()

	logging.Sync("send %s: session=%q", tag.id, submitID)
	resp, err := c.backend.SendMessage(ctx, c.tokens.Token(), api.ChatRequest{
		Message:   trimmed,
		SessionID: submitID,
	})

	c.mu.Lock()
	if c.pending != tag || c.activeSessionID != tag.issuedAgainst {
		// The session changed (or was cleared) while the request was out.
		// Applying the response now would attribute it to the wrong buffer.
		// Settle only our own tag: after a reset a newer send may already be
		// in flight, and its state is not ours to touch.
		if c.pending == tag {
			c.pending = nil
			c.state = StateSettled
		}
		c.mu.Unlock()
		logging.SyncWarn("send %s: response discarded, active session changed", tag.id)
		return SendResult{Discarded: true}, nil
	}
	c.pending = nil

	if err != nil {
		c.buf.AppendConfirmed(Message{
			Kind:      KindBot,
			Content:   fmt.Sprintf("Sorry, I encountered an error: %s", errorText(err)),
			Timestamp: time.Now(),
		})
		c.state = StateFailed
		c.mu.Unlock()
		logging.SyncWarn("send %s: failed: %v", tag.id, err)
		return SendResult{Failed: true}, nil
	}

	c.buf.Confirm(userEntry)
	reply := c.buf.AppendConfirmed(Message{
		Kind:               KindBot,
		Content:            resp.Response,
		HasDocumentContext: resp.HasDocumentContext,
		Timestamp:          time.Now(),
	})
	if c.activeSessionID == "" {
		// Server created the session; adopt its id so the next message and
		// any document upload attach to the same thread.
		c.activeSessionID = resp.SessionID
	}
	c.state = StateSettled
	result := SendResult{Reply: *reply}
	c.mu.Unlock()

	// Session metadata (title, counts, timestamps) changes server-side on
	// every turn.
	if c.tokens.Authenticated() {
		if err := c.RefreshDirectory(ctx); err != nil {
			logging.SessionWarn("directory refresh after send: %v", err)
		}
	}
	return result, nil
}

// RefreshDirectory fetches the session list. A no-op (empty list, no error)
// when unauthenticated.
func (c *Coordinator) RefreshDirectory(ctx context.Context) error {
	if !c.tokens.Authenticated() {
		c.mu.Lock()
		c.dir.clear()
		c.mu.Unlock()
		return nil
	}

	listing, err := c.backend.ListSessions(ctx, c.tokens.Token())
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]Session, len(listing))
	for i, s := range listing {
		sessions[i] = Session{
			ID:           s.SessionID,
			Title:        s.Title,
			MessageCount: s.MessageCount,
			UpdatedAt:    parseServerTime(s.UpdatedAt),
		}
	}

	c.mu.Lock()
	c.dir.replaceAll(sessions)
	c.mu.Unlock()
	return nil
}

// SelectSession loads a session's history and replaces the buffer wholesale.
// Any document binding is dropped: a freshly loaded session carries no
// client-known document state until re-established.
func (c *Coordinator) SelectSession(ctx context.Context, sessionID string) error {
	hist, err := c.backend.LoadSession(ctx, c.tokens.Token(), sessionID)
	if err != nil {
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}

	msgs := make([]Message, len(hist.Messages))
	for i, m := range hist.Messages {
		msgs[i] = Message{
			Kind:               Kind(m.Type),
			Content:            m.Content,
			HasDocumentContext: m.HasDocumentContext,
			Timestamp:          parseServerTime(m.Timestamp),
		}
	}

	c.mu.Lock()
	c.activeSessionID = sessionID
	c.buf.ReplaceAll(msgs)
	c.binding = nil
	c.mu.Unlock()
	logging.Session("switched to session %s (%d messages)", sessionID, len(msgs))
	return nil
}

// NewSession asks the server for a fresh session and starts a clean slate.
func (c *Coordinator) NewSession(ctx context.Context) (string, error) {
	resp, err := c.backend.CreateSession(ctx, c.tokens.Token())
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	c.activeSessionID = resp.SessionID
	c.buf.Clear()
	c.binding = nil
	c.mu.Unlock()

	if err := c.RefreshDirectory(ctx); err != nil {
		logging.SessionWarn("directory refresh after create: %v", err)
	}
	logging.Session("created session %s", resp.SessionID)
	return resp.SessionID, nil
}

// DeleteSession removes a session remotely. Deleting the active session
// clears the active id and empties the buffer; the directory is refreshed
// either way.
func (c *Coordinator) DeleteSession(ctx context.Context, sessionID string) error {
	if err := c.backend.DeleteSession(ctx, c.tokens.Token(), sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	c.mu.Lock()
	if c.activeSessionID == sessionID {
		c.activeSessionID = ""
		c.buf.Clear()
	}
	if c.binding != nil && c.binding.BoundSessionID == sessionID {
		c.binding = nil
	}
	c.mu.Unlock()

	if err := c.RefreshDirectory(ctx); err != nil {
		logging.SessionWarn("directory refresh after delete: %v", err)
	}
	logging.Session("deleted session %s", sessionID)
	return nil
}

// UploadDocument validates the file, ensures a session exists, uploads, and
// reconciles the binding. Server truth wins for the bound session id; when
// the server reports a different id than the one requested, the active
// session follows it so later messages are not misattributed.
func (c *Coordinator) UploadDocument(ctx context.Context, name, declaredType string, content []byte) (*Binding, error) {
	if err := ValidateUpload(name, declaredType); err != nil {
		return nil, err
	}

	requestedID, _, err := c.EnsureActiveSession(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.backend.UploadDocument(ctx, c.tokens.Token(), requestedID, name, bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}

	c.mu.Lock()
	effectiveID := resp.SessionID
	if effectiveID == "" {
		effectiveID = requestedID
	}
	if effectiveID == "" {
		effectiveID = c.activeSessionID
	}

	binding := &Binding{
		Name:           name,
		Preview:        resp.Preview,
		BoundSessionID: effectiveID,
		Kind:           DocumentKind(resp.Kind),
		Extent: Extent{
			Pages:   resp.Pages,
			Slides:  resp.Slides,
			Rows:    resp.Rows,
			Columns: resp.Columns,
		},
	}
	c.binding = binding
	if effectiveID != "" {
		c.activeSessionID = effectiveID
	}

	notice := fmt.Sprintf("Document %q uploaded successfully!", name)
	if detail := binding.DescribeExtent(); detail != "" {
		notice += " (" + detail + ")"
	}
	notice += " You can now ask questions about the document."
	c.buf.AppendConfirmed(Message{Kind: KindSystem, Content: notice, Timestamp: time.Now()})
	snapshot := *binding
	c.mu.Unlock()

	logging.Upload("bound %q (%s) to session %s", name, resp.Kind, effectiveID)
	return &snapshot, nil
}

// ClearDocument drops the local binding and notifies the server with the
// bound session id on a best-effort basis; a network failure does not keep
// the binding alive locally.
func (c *Coordinator) ClearDocument(ctx context.Context) error {
	c.mu.Lock()
	if c.binding == nil {
		c.mu.Unlock()
		return nil
	}
	boundID := c.binding.BoundSessionID
	c.binding = nil
	c.buf.AppendConfirmed(Message{
		Kind:      KindSystem,
		Content:   "Document cleared. You can now chat normally or upload a new document.",
		Timestamp: time.Now(),
	})
	c.mu.Unlock()

	if err := c.backend.ClearDocument(ctx, c.tokens.Token(), boundID); err != nil {
		logging.Upload("remote clear failed (ignored): %v", err)
	}
	return nil
}

// ResetLocal clears everything scoped to the current identity: directory,
// buffer, binding and active session. Called on logout and on a stale token,
// so a later user never sees a prior user's messages.
func (c *Coordinator) ResetLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dir.clear()
	c.buf.Clear()
	c.binding = nil
	c.activeSessionID = ""
	c.pending = nil
	c.state = StateIdle
}

func trimMessage(text string) string {
	return strings.TrimSpace(text)
}

func errorText(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

// parseServerTime decodes the backend's timestamps. Unparseable values fall
// back to the zero time rather than failing the whole load.
func parseServerTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
