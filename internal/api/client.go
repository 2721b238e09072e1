package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"docchat/internal/logging"
)

// Client talks to one docchat backend. Methods are safe for sequential use
// from the TUI's update loop; every call takes a context and honors its
// deadline on top of the client-wide timeout.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (used by tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = d }
}

// NewClient returns a client for the backend at baseURL, e.g.
// "http://localhost:5000". The "/api" prefix is appended here.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api",
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckSession asks the backend whether the token is still valid.
func (c *Client) CheckSession(ctx context.Context, token string) (CheckSessionResponse, error) {
	var out CheckSessionResponse
	err := c.do(ctx, http.MethodGet, "/auth/check-session", token, nil, &out)
	return out, err
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", "", req, &out)
	return out, err
}

// Signup registers a new account. The caller still has to log in afterwards.
func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	return c.do(ctx, http.MethodPost, "/auth/signup", "", req, nil)
}

// Logout invalidates the token server-side. Callers treat failure as
// non-fatal; local state is purged regardless.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

// ListSessions returns the session directory for the token's account, or the
// anonymous sessions when token is empty.
func (c *Client) ListSessions(ctx context.Context, token string) ([]SessionSummary, error) {
	var out []SessionSummary
	err := c.do(ctx, http.MethodGet, "/chat/sessions", token, nil, &out)
	return out, err
}

// LoadSession fetches the full message history of one session.
func (c *Client) LoadSession(ctx context.Context, token, sessionID string) (SessionHistoryResponse, error) {
	var out SessionHistoryResponse
	err := c.do(ctx, http.MethodGet, "/chat/sessions/"+url.PathEscape(sessionID), token, nil, &out)
	return out, err
}

// CreateSession asks the server for a fresh session id.
func (c *Client) CreateSession(ctx context.Context, token string) (NewSessionResponse, error) {
	var out NewSessionResponse
	err := c.do(ctx, http.MethodPost, "/chat/new-session", token, nil, &out)
	return out, err
}

// DeleteSession removes a session and its history.
func (c *Client) DeleteSession(ctx context.Context, token, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/chat/sessions/"+url.PathEscape(sessionID), token, nil, nil)
}

// SendMessage submits one user message and returns the reply.
func (c *Client) SendMessage(ctx context.Context, token string, req ChatRequest) (ChatResponse, error) {
	var out ChatResponse
	err := c.do(ctx, http.MethodPost, "/chat", token, req, &out)
	return out, err
}

// UploadDocument uploads a file as multipart form data. sessionID may be
// empty; the server then scopes the document to a session of its own making.
func (c *Client) UploadDocument(ctx context.Context, token, sessionID, filename string, content io.Reader) (UploadResponse, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResponse{}, fmt.Errorf("read upload content: %w", err)
	}
	if sessionID != "" {
		if err := w.WriteField("session_id", sessionID); err != nil {
			return UploadResponse{}, fmt.Errorf("build multipart body: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return UploadResponse{}, fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload-file", &body)
	if err != nil {
		return UploadResponse{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	var out UploadResponse
	if err := c.send(req, &out); err != nil {
		return UploadResponse{}, err
	}
	return out, nil
}

// ClearDocument drops the document bound to sessionID server-side.
func (c *Client) ClearDocument(ctx context.Context, token, sessionID string) error {
	payload := map[string]string{"session_id": sessionID}
	return c.do(ctx, http.MethodPost, "/clear-document", token, payload, nil)
}

// do issues a JSON request and decodes the response into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		// The backend reads the raw token from the Authorization header,
		// no "Bearer" prefix.
		req.Header.Set("Authorization", token)
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		logging.API("%s %s failed: %v", req.Method, req.URL.Path, err)
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()
	logging.API("%s %s -> %d", req.Method, req.URL.Path, resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

// statusError extracts the server's {"error": ...} message when present and
// falls back to the HTTP status text.
func statusError(code int, body []byte) *StatusError {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &StatusError{Code: code, Message: payload.Error}
	}
	return &StatusError{Code: code, Message: http.StatusText(code)}
}
