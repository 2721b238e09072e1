package convo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"docchat/internal/api"
)

// fakeBackend is a scripted backend. Zero-value behavior is a healthy server;
// tests override individual funcs to inject failures or delays.
type fakeBackend struct {
	mu     sync.Mutex
	counts map[string]int

	sendFn   func(req api.ChatRequest) (api.ChatResponse, error)
	createFn func() (api.NewSessionResponse, error)
	uploadFn func(sessionID, filename string) (api.UploadResponse, error)
	loadFn   func(sessionID string) (api.SessionHistoryResponse, error)
	listFn   func() ([]api.SessionSummary, error)
	deleteFn func(sessionID string) error
	clearFn  func(sessionID string) error

	lastUploadSessionID string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{counts: map[string]int{}}
}

func (f *fakeBackend) bump(op string) {
	f.mu.Lock()
	f.counts[op]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op]
}

func (f *fakeBackend) ListSessions(ctx context.Context, token string) ([]api.SessionSummary, error) {
	f.bump("list")
	if f.listFn != nil {
		return f.listFn()
	}
	return nil, nil
}

func (f *fakeBackend) LoadSession(ctx context.Context, token, sessionID string) (api.SessionHistoryResponse, error) {
	f.bump("load")
	if f.loadFn != nil {
		return f.loadFn(sessionID)
	}
	return api.SessionHistoryResponse{}, nil
}

func (f *fakeBackend) CreateSession(ctx context.Context, token string) (api.NewSessionResponse, error) {
	f.bump("create")
	if f.createFn != nil {
		return f.createFn()
	}
	return api.NewSessionResponse{SessionID: fmt.Sprintf("srv-%d", f.count("create"))}, nil
}

func (f *fakeBackend) DeleteSession(ctx context.Context, token, sessionID string) error {
	f.bump("delete")
	if f.deleteFn != nil {
		return f.deleteFn(sessionID)
	}
	return nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, token string, req api.ChatRequest) (api.ChatResponse, error) {
	f.bump("send")
	if f.sendFn != nil {
		return f.sendFn(req)
	}
	id := req.SessionID
	if id == "" {
		id = "srv-implicit"
	}
	return api.ChatResponse{Response: "reply to: " + req.Message, SessionID: id}, nil
}

func (f *fakeBackend) UploadDocument(ctx context.Context, token, sessionID, filename string, content io.Reader) (api.UploadResponse, error) {
	f.bump("upload")
	f.mu.Lock()
	f.lastUploadSessionID = sessionID
	f.mu.Unlock()
	if f.uploadFn != nil {
		return f.uploadFn(sessionID, filename)
	}
	return api.UploadResponse{SessionID: sessionID, Preview: "...", Kind: "pdf", Pages: 1}, nil
}

func (f *fakeBackend) ClearDocument(ctx context.Context, token, sessionID string) error {
	f.bump("clear")
	if f.clearFn != nil {
		return f.clearFn(sessionID)
	}
	return nil
}

// fakeTokens is authenticated when token is non-empty.
type fakeTokens struct{ token string }

func (f fakeTokens) Token() string       { return f.token }
func (f fakeTokens) Authenticated() bool { return f.token != "" }

// transcript reduces a buffer snapshot to comparable (kind, content) pairs.
type entry struct {
	Kind    Kind
	Content string
}

func transcript(msgs []Message) []entry {
	out := make([]entry, len(msgs))
	for i, m := range msgs {
		out[i] = entry{Kind: m.Kind, Content: m.Content}
	}
	return out
}

func TestSendMessage_EmptyInput(t *testing.T) {
	backend := newFakeBackend()
	c := NewCoordinator(backend, fakeTokens{})

	for _, text := range []string{"", "   ", "\n\t "} {
		_, err := c.SendMessage(context.Background(), text)
		if !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("SendMessage(%q) err = %v, want ErrEmptyMessage", text, err)
		}
	}
	if backend.count("send") != 0 {
		t.Fatalf("send calls = %d, want 0", backend.count("send"))
	}
	if len(c.Messages()) != 0 {
		t.Fatalf("buffer has %d messages, want 0", len(c.Messages()))
	}
	if c.Busy() {
		t.Fatal("coordinator busy after rejected send")
	}
}

func TestSendMessage_AppendsUserThenBot(t *testing.T) {
	backend := newFakeBackend()
	c := NewCoordinator(backend, fakeTokens{token: "tok"})

	res, err := c.SendMessage(context.Background(), "  hello  ")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	want := []entry{
		{Kind: KindUser, Content: "hello"},
		{Kind: KindBot, Content: "reply to: hello"},
	}
	if diff := cmp.Diff(want, transcript(c.Messages())); diff != "" {
		t.Fatalf("transcript mismatch (-want +got):\n%s", diff)
	}
	if res.Reply.Content != "reply to: hello" {
		t.Fatalf("reply = %q", res.Reply.Content)
	}
	msgs := c.Messages()
	if !msgs[0].Confirmed() {
		t.Fatal("user message not confirmed after settle")
	}
	// No session was active; the server-assigned id is adopted.
	if got := c.ActiveSessionID(); got != "srv-implicit" {
		t.Fatalf("active session = %q, want srv-implicit", got)
	}
	// Authenticated, so the directory refreshes after the turn.
	if backend.count("list") != 1 {
		t.Fatalf("list calls = %d, want 1", backend.count("list"))
	}
	if backend.count("create") != 0 {
		t.Fatalf("create calls = %d, want 0 (server creates implicitly on send)", backend.count("create"))
	}
}

func TestSendMessage_FailureIsVisibleAndRetryable(t *testing.T) {
	backend := newFakeBackend()
	boom := errors.New("connection refused")
	backend.sendFn = func(req api.ChatRequest) (api.ChatResponse, error) {
		return api.ChatResponse{}, boom
	}
	c := NewCoordinator(backend, fakeTokens{})

	res, err := c.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, res.Failed)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, KindUser, msgs[0].Kind)
	require.False(t, msgs[0].Confirmed(), "optimistic message must stay unconfirmed on failure")
	require.Equal(t, KindBot, msgs[1].Kind)
	require.Contains(t, msgs[1].Content, "connection refused")

	// Failed behaves like Idle for the next attempt.
	backend.sendFn = nil
	res, err = c.SendMessage(context.Background(), "again")
	require.NoError(t, err)
	require.False(t, res.Failed)
	require.Len(t, c.Messages(), 4)
}

func TestSendMessage_ServerErrorTextSurfaces(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(req api.ChatRequest) (api.ChatResponse, error) {
		return api.ChatResponse{}, &api.StatusError{Code: 500, Message: "Model error: quota exceeded"}
	}
	c := NewCoordinator(backend, fakeTokens{})

	res, err := c.SendMessage(context.Background(), "hi")
	require.NoError(t, err)
	require.True(t, res.Failed)
	msgs := c.Messages()
	require.Contains(t, msgs[len(msgs)-1].Content, "Model error: quota exceeded")
}

func TestSendMessage_RejectsConcurrentSend(t *testing.T) {
	backend := newFakeBackend()
	entered := make(chan struct{})
	release := make(chan struct{})
	backend.sendFn = func(req api.ChatRequest) (api.ChatResponse, error) {
		close(entered)
		<-release
		return api.ChatResponse{Response: "ok", SessionID: "s-1"}, nil
	}
	c := NewCoordinator(backend, fakeTokens{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.SendMessage(context.Background(), "first")
	}()

	<-entered
	if !c.Busy() {
		t.Fatal("coordinator not busy with a send in flight")
	}
	_, err := c.SendMessage(context.Background(), "second")
	if !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("err = %v, want ErrSendInFlight", err)
	}
	close(release)
	<-done
}

func TestSendMessage_LateResponseDiscardedAfterSwitch(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	inFlight := make(chan struct{})
	release := make(chan struct{})
	backend.sendFn = func(req api.ChatRequest) (api.ChatResponse, error) {
		close(inFlight)
		<-release
		return api.ChatResponse{Response: "stale reply", SessionID: "session-a"}, nil
	}
	backend.loadFn = func(sessionID string) (api.SessionHistoryResponse, error) {
		return api.SessionHistoryResponse{Messages: []api.StoredMessage{
			{Type: "user", Content: "old question"},
			{Type: "bot", Content: "old answer"},
		}}, nil
	}
	c := NewCoordinator(backend, fakeTokens{})

	results := make(chan SendResult, 1)
	go func() {
		res, err := c.SendMessage(context.Background(), "question for A")
		if err != nil {
			t.Errorf("SendMessage: %v", err)
		}
		results <- res
	}()

	<-inFlight
	// The user switches sessions while the send is outstanding.
	if err := c.SelectSession(context.Background(), "session-b"); err != nil {
		t.Fatalf("SelectSession: %v", err)
	}
	close(release)

	res := <-results
	if !res.Discarded {
		t.Fatal("late response was applied, want discarded")
	}
	want := []entry{
		{Kind: KindUser, Content: "old question"},
		{Kind: KindBot, Content: "old answer"},
	}
	if diff := cmp.Diff(want, transcript(c.Messages())); diff != "" {
		t.Fatalf("session B buffer polluted by stale send (-want +got):\n%s", diff)
	}
	if got := c.ActiveSessionID(); got != "session-b" {
		t.Fatalf("active session = %q, want session-b", got)
	}
}

func TestSendMessage_StaleResponseAfterLogoutKeepsNewSendInFlight(t *testing.T) {
	defer goleak.VerifyNone(t)

	backend := newFakeBackend()
	type gate struct{ entered, release chan struct{} }
	first := gate{make(chan struct{}), make(chan struct{})}
	second := gate{make(chan struct{}), make(chan struct{})}
	var mu sync.Mutex
	calls := 0
	backend.sendFn = func(req api.ChatRequest) (api.ChatResponse, error) {
		mu.Lock()
		calls++
		g := first
		if calls == 2 {
			g = second
		}
		mu.Unlock()
		close(g.entered)
		<-g.release
		return api.ChatResponse{Response: "reply to: " + req.Message, SessionID: "s-1"}, nil
	}
	c := NewCoordinator(backend, fakeTokens{})

	firstDone := make(chan SendResult, 1)
	go func() {
		res, _ := c.SendMessage(context.Background(), "before logout")
		firstDone <- res
	}()
	<-first.entered

	// Logout cascade while the send is still outstanding.
	c.ResetLocal()

	secondDone := make(chan SendResult, 1)
	go func() {
		res, _ := c.SendMessage(context.Background(), "after logout")
		secondDone <- res
	}()
	<-second.entered

	// The stale response lands now. It must be discarded without touching
	// the newer send's state.
	close(first.release)
	res := <-firstDone
	if !res.Discarded {
		t.Fatal("stale response was applied, want discarded")
	}
	if !c.Busy() {
		t.Fatal("coordinator reports idle while the newer send is still in flight")
	}
	if _, err := c.SendMessage(context.Background(), "third"); !errors.Is(err, ErrSendInFlight) {
		t.Fatalf("err = %v, want ErrSendInFlight while the newer send is outstanding", err)
	}

	close(second.release)
	res = <-secondDone
	if res.Discarded || res.Failed {
		t.Fatalf("newer send result = %+v, want settled", res)
	}
	want := []entry{
		{Kind: KindUser, Content: "after logout"},
		{Kind: KindBot, Content: "reply to: after logout"},
	}
	if diff := cmp.Diff(want, transcript(c.Messages())); diff != "" {
		t.Fatalf("transcript polluted by the stale send (-want +got):\n%s", diff)
	}
}

func TestUploadDocument_DisallowedType(t *testing.T) {
	backend := newFakeBackend()
	c := NewCoordinator(backend, fakeTokens{})

	_, err := c.UploadDocument(context.Background(), "notes.exe", "application/octet-stream", []byte("MZ"))
	var te *UploadTypeError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *UploadTypeError", err)
	}
	if backend.count("upload") != 0 || backend.count("create") != 0 {
		t.Fatal("rejected upload must not reach the network")
	}
	if c.DocumentBinding() != nil {
		t.Fatal("rejected upload must not mutate the binding")
	}
}

func TestUploadDocument_ImplicitSessionCreation(t *testing.T) {
	backend := newFakeBackend()
	backend.createFn = func() (api.NewSessionResponse, error) {
		return api.NewSessionResponse{SessionID: "fresh-1"}, nil
	}
	c := NewCoordinator(backend, fakeTokens{})

	binding, err := c.UploadDocument(context.Background(), "report.pdf", "application/pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if backend.count("create") != 1 {
		t.Fatalf("create calls = %d, want exactly 1", backend.count("create"))
	}
	if backend.lastUploadSessionID != "fresh-1" {
		t.Fatalf("upload carried session %q, want fresh-1", backend.lastUploadSessionID)
	}
	if binding.BoundSessionID != "fresh-1" {
		t.Fatalf("binding bound to %q, want fresh-1", binding.BoundSessionID)
	}
	if got := c.ActiveSessionID(); got != "fresh-1" {
		t.Fatalf("active session = %q, want fresh-1", got)
	}

	// The next message is attributed to the document's session and claims
	// document context.
	backend.sendFn = func(req api.ChatRequest) (api.ChatResponse, error) {
		if req.SessionID != "fresh-1" {
			t.Errorf("send session = %q, want fresh-1", req.SessionID)
		}
		return api.ChatResponse{Response: "doc answer", HasDocumentContext: true, SessionID: "fresh-1"}, nil
	}
	if _, err := c.SendMessage(context.Background(), "what does it say?"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	msgs := c.Messages()
	user := msgs[len(msgs)-2]
	bot := msgs[len(msgs)-1]
	if !user.HasDocumentContext || !bot.HasDocumentContext {
		t.Fatalf("messages after upload should carry document context (user=%v bot=%v)",
			user.HasDocumentContext, bot.HasDocumentContext)
	}
	if backend.count("create") != 1 {
		t.Fatalf("create calls after send = %d, want still 1", backend.count("create"))
	}
}

func TestUploadDocument_ServerSessionIDWins(t *testing.T) {
	backend := newFakeBackend()
	backend.uploadFn = func(sessionID, filename string) (api.UploadResponse, error) {
		// Server re-scoped the document to a session of its own making.
		return api.UploadResponse{SessionID: "server-side", Preview: "p", Kind: "tabular", Rows: 10, Columns: 4}, nil
	}
	c := NewCoordinator(backend, fakeTokens{})
	c.activeSessionID = "local-1"

	binding, err := c.UploadDocument(context.Background(), "data.csv", "text/csv", []byte("a,b"))
	if err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if binding.BoundSessionID != "server-side" {
		t.Fatalf("binding bound to %q, want server-side", binding.BoundSessionID)
	}
	if got := c.ActiveSessionID(); got != "server-side" {
		t.Fatalf("active session = %q, want server-side (otherwise later messages are misattributed)", got)
	}
}

func TestSelectSession_RoundTripKeepsHistoryIntact(t *testing.T) {
	backend := newFakeBackend()
	histories := map[string][]api.StoredMessage{
		"A": {
			{Type: "user", Content: "q1"},
			{Type: "bot", Content: "a1"},
			{Type: "user", Content: "q2"},
		},
		"B": {},
	}
	backend.loadFn = func(sessionID string) (api.SessionHistoryResponse, error) {
		return api.SessionHistoryResponse{Messages: histories[sessionID]}, nil
	}
	c := NewCoordinator(backend, fakeTokens{token: "tok"})

	for _, id := range []string{"A", "B", "A"} {
		if err := c.SelectSession(context.Background(), id); err != nil {
			t.Fatalf("SelectSession(%s): %v", id, err)
		}
	}

	want := []entry{
		{Kind: KindUser, Content: "q1"},
		{Kind: KindBot, Content: "a1"},
		{Kind: KindUser, Content: "q2"},
	}
	if diff := cmp.Diff(want, transcript(c.Messages())); diff != "" {
		t.Fatalf("A's history changed across switches (-want +got):\n%s", diff)
	}
}

func TestSelectSession_ClearsBinding(t *testing.T) {
	backend := newFakeBackend()
	c := NewCoordinator(backend, fakeTokens{})

	if _, err := c.UploadDocument(context.Background(), "deck.pptx", "", []byte("pk")); err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if c.DocumentBinding() == nil {
		t.Fatal("binding not established")
	}
	if err := c.SelectSession(context.Background(), "other"); err != nil {
		t.Fatalf("SelectSession: %v", err)
	}
	if c.DocumentBinding() != nil {
		t.Fatal("binding must be cleared on session switch")
	}
}

func TestDeleteSession(t *testing.T) {
	backend := newFakeBackend()
	backend.loadFn = func(sessionID string) (api.SessionHistoryResponse, error) {
		return api.SessionHistoryResponse{Messages: []api.StoredMessage{{Type: "user", Content: "kept"}}}, nil
	}
	c := NewCoordinator(backend, fakeTokens{token: "tok"})

	if err := c.SelectSession(context.Background(), "active"); err != nil {
		t.Fatalf("SelectSession: %v", err)
	}

	// Deleting a non-active session leaves the buffer untouched.
	if err := c.DeleteSession(context.Background(), "other"); err != nil {
		t.Fatalf("DeleteSession(other): %v", err)
	}
	if len(c.Messages()) != 1 || c.ActiveSessionID() != "active" {
		t.Fatal("deleting a non-active session must not touch the active buffer")
	}
	if backend.count("list") == 0 {
		t.Fatal("directory must refresh after delete")
	}

	// Deleting the active session clears the active id and the buffer.
	if err := c.DeleteSession(context.Background(), "active"); err != nil {
		t.Fatalf("DeleteSession(active): %v", err)
	}
	if c.ActiveSessionID() != "" {
		t.Fatalf("active session = %q, want cleared", c.ActiveSessionID())
	}
	if len(c.Messages()) != 0 {
		t.Fatal("buffer must be empty after deleting the active session")
	}
}

func TestNewSession_StartsCleanSlate(t *testing.T) {
	backend := newFakeBackend()
	c := NewCoordinator(backend, fakeTokens{token: "tok"})

	if _, err := c.SendMessage(context.Background(), "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if _, err := c.UploadDocument(context.Background(), "x.pdf", "application/pdf", nil); err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}

	id, err := c.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if id == "" || c.ActiveSessionID() != id {
		t.Fatalf("active = %q, want %q", c.ActiveSessionID(), id)
	}
	if len(c.Messages()) != 0 {
		t.Fatal("buffer must be empty in a new session")
	}
	if c.DocumentBinding() != nil {
		t.Fatal("a new session starts without document context")
	}
}

func TestEnsureActiveSession_Precedence(t *testing.T) {
	t.Run("active id wins", func(t *testing.T) {
		backend := newFakeBackend()
		c := NewCoordinator(backend, fakeTokens{})
		c.activeSessionID = "act-1"

		id, created, err := c.EnsureActiveSession(context.Background())
		if err != nil || created || id != "act-1" {
			t.Fatalf("got (%q, %v, %v), want (act-1, false, nil)", id, created, err)
		}
		if backend.count("create") != 0 {
			t.Fatal("must not create when a session is active")
		}
	})

	t.Run("bound document second", func(t *testing.T) {
		backend := newFakeBackend()
		c := NewCoordinator(backend, fakeTokens{})
		c.binding = &Binding{Name: "r.pdf", BoundSessionID: "doc-1"}

		id, created, err := c.EnsureActiveSession(context.Background())
		if err != nil || created || id != "doc-1" {
			t.Fatalf("got (%q, %v, %v), want (doc-1, false, nil)", id, created, err)
		}
		if c.ActiveSessionID() != "doc-1" {
			t.Fatal("resolved document session must become active")
		}
	})

	t.Run("create last", func(t *testing.T) {
		backend := newFakeBackend()
		c := NewCoordinator(backend, fakeTokens{})

		id, created, err := c.EnsureActiveSession(context.Background())
		if err != nil || !created || id == "" {
			t.Fatalf("got (%q, %v, %v), want creation", id, created, err)
		}
		if backend.count("create") != 1 {
			t.Fatalf("create calls = %d, want 1", backend.count("create"))
		}
	})
}

func TestRefreshDirectory_NoopWhenUnauthenticated(t *testing.T) {
	backend := newFakeBackend()
	c := NewCoordinator(backend, fakeTokens{})

	if err := c.RefreshDirectory(context.Background()); err != nil {
		t.Fatalf("RefreshDirectory: %v", err)
	}
	if backend.count("list") != 0 {
		t.Fatal("unauthenticated refresh must not call the network")
	}
	if c.Directory().Len() != 0 {
		t.Fatal("directory must stay empty")
	}
}

func TestRefreshDirectory_ProjectsServerListing(t *testing.T) {
	backend := newFakeBackend()
	backend.listFn = func() ([]api.SessionSummary, error) {
		return []api.SessionSummary{
			{SessionID: "s1", Title: "First", MessageCount: 4, UpdatedAt: "2026-08-27T10:00:00Z"},
			{SessionID: "s2", Title: "Second", MessageCount: 0, UpdatedAt: "bogus"},
		}, nil
	}
	c := NewCoordinator(backend, fakeTokens{token: "tok"})

	require.NoError(t, c.RefreshDirectory(context.Background()))
	sessions := c.Directory().Sessions()
	require.Len(t, sessions, 2)
	require.Equal(t, "First", sessions[0].Title)
	require.Equal(t, 4, sessions[0].MessageCount)
	require.False(t, sessions[0].UpdatedAt.IsZero())
	require.True(t, sessions[1].UpdatedAt.IsZero(), "unparseable timestamps fall back to zero")
}

func TestClearDocument_BestEffort(t *testing.T) {
	backend := newFakeBackend()
	backend.clearFn = func(sessionID string) error {
		return errors.New("backend down")
	}
	c := NewCoordinator(backend, fakeTokens{})

	if _, err := c.UploadDocument(context.Background(), "r.pdf", "application/pdf", nil); err != nil {
		t.Fatalf("UploadDocument: %v", err)
	}
	if err := c.ClearDocument(context.Background()); err != nil {
		t.Fatalf("ClearDocument: %v", err)
	}
	if c.DocumentBinding() != nil {
		t.Fatal("local binding must clear even when the remote call fails")
	}
	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	if last.Kind != KindSystem || !strings.Contains(last.Content, "Document cleared") {
		t.Fatalf("expected a system notice, got %+v", last)
	}
}

func TestResetLocal_ClearsEverything(t *testing.T) {
	backend := newFakeBackend()
	backend.listFn = func() ([]api.SessionSummary, error) {
		return []api.SessionSummary{{SessionID: "s1", Title: "t"}}, nil
	}
	c := NewCoordinator(backend, fakeTokens{token: "tok"})

	require.NoError(t, c.RefreshDirectory(context.Background()))
	_, err := c.SendMessage(context.Background(), "hello")
	require.NoError(t, err)
	_, err = c.UploadDocument(context.Background(), "r.pdf", "application/pdf", nil)
	require.NoError(t, err)

	c.ResetLocal()

	require.Zero(t, c.Directory().Len())
	require.Empty(t, c.Messages())
	require.Nil(t, c.DocumentBinding())
	require.Empty(t, c.ActiveSessionID())
	require.False(t, c.Busy())
}
