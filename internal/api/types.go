// Package api implements the typed HTTP client for the docchat backend.
// All request and response shapes are defined here; the rest of the client
// never touches raw JSON. Field names follow the session-scoped contract
// (session_id, response, has_document_context).
package api

import "fmt"

// User identifies the authenticated account.
type User struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FullName  string `json:"full_name"`
}

// CheckSessionResponse is returned by GET /auth/check-session.
type CheckSessionResponse struct {
	Authenticated bool `json:"authenticated"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the new session token and the account it belongs to.
type LoginResponse struct {
	SessionToken string `json:"session_token"`
	User         User   `json:"user"`
}

// SignupRequest is the body of POST /auth/signup. Signup does not log in.
type SignupRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// SessionSummary is one entry of the session directory listing.
type SessionSummary struct {
	SessionID    string `json:"session_id"`
	Title        string `json:"title"`
	MessageCount int    `json:"message_count"`
	UpdatedAt    string `json:"updated_at"`
}

// StoredMessage is a persisted message as the backend returns it on session load.
type StoredMessage struct {
	Type               string `json:"type"` // "user", "bot" or "system"
	Content            string `json:"content"`
	HasDocumentContext bool   `json:"has_document_context"`
	Timestamp          string `json:"timestamp"`
}

// SessionHistoryResponse is returned by GET /chat/sessions/{id}.
type SessionHistoryResponse struct {
	Session  SessionSummary  `json:"session"`
	Messages []StoredMessage `json:"messages"`
}

// NewSessionResponse is returned by POST /chat/new-session.
type NewSessionResponse struct {
	SessionID string `json:"session_id"`
}

// ChatRequest is the body of POST /chat. SessionID may be empty; the server
// then creates a session and reports its id in the response.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is the reply to a sent message. SessionID is always set.
type ChatResponse struct {
	Response           string `json:"response"`
	HasDocumentContext bool   `json:"has_document_context"`
	SessionID          string `json:"session_id"`
}

// UploadResponse describes an accepted document upload. Exactly one of the
// extent fields is meaningful depending on Kind.
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Preview   string `json:"preview"`
	Kind      string `json:"kind"` // "pdf", "tabular" or "slideshow"
	Pages     int    `json:"pages,omitempty"`
	Slides    int    `json:"slides,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Columns   int    `json:"columns,omitempty"`
}

// StatusError is a server-reported failure: a non-2xx status whose body
// carried an error message. It is distinct from transport errors so callers
// can surface the server's own wording.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.Code, e.Message)
}
