// Package auth owns the authentication token and the current-user identity.
// It is the only writer of the persisted credential pair; everything else
// reads the token through the Gate.
package auth

import (
	"context"

	"docchat/internal/api"
	"docchat/internal/logging"
)

// Backend is the slice of the API client the gate needs.
type Backend interface {
	CheckSession(ctx context.Context, token string) (api.CheckSessionResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (api.LoginResponse, error)
	Signup(ctx context.Context, req api.SignupRequest) error
	Logout(ctx context.Context, token string) error
}

// Identity is the active token plus the account it belongs to.
type Identity struct {
	Token string
	User  api.User
}

// Gate holds the single identity slot and its persisted mirror.
type Gate struct {
	backend Backend
	store   *CredentialStore

	identity *Identity
}

// NewGate wires a gate to its backend and credential store.
func NewGate(backend Backend, store *CredentialStore) *Gate {
	return &Gate{backend: backend, store: store}
}

// Authenticated reports whether an identity is active.
func (g *Gate) Authenticated() bool { return g.identity != nil }

// Token returns the active token, or "" when unauthenticated. Anonymous use
// is allowed; callers pass the empty token through to the backend.
func (g *Gate) Token() string {
	if g.identity == nil {
		return ""
	}
	return g.identity.Token
}

// CurrentUser returns the active account, or the zero User when anonymous.
func (g *Gate) CurrentUser() api.User {
	if g.identity == nil {
		return api.User{}
	}
	return g.identity.User
}

// Restore loads the persisted credential pair and validates it with the
// backend. Any failure, a stale token, a network error or a corrupt file,
// purges the pair and leaves the gate unauthenticated. Staleness is silent:
// no error is returned for it (the UI simply starts logged out).
func (g *Gate) Restore(ctx context.Context) {
	creds, ok, err := g.store.Load()
	if err != nil {
		logging.Auth("credential file unreadable, purging: %v", err)
		_ = g.store.Delete()
		return
	}
	if !ok {
		return
	}

	resp, err := g.backend.CheckSession(ctx, creds.Token)
	if err != nil || !resp.Authenticated {
		// Fail closed: an unreachable backend is treated the same as a
		// rejected token.
		if err != nil {
			logging.Auth("session check failed: %v", err)
		}
		_ = g.store.Delete()
		return
	}

	g.identity = &Identity{Token: creds.Token, User: creds.User}
	logging.Auth("restored session for %s", creds.User.Email)
}

// Login validates the credentials locally, then exchanges them for a token.
// Local validation failures come back as *FieldError without any network call.
func (g *Gate) Login(ctx context.Context, email, password string) error {
	if err := ValidateLogin(email, password); err != nil {
		return err
	}

	resp, err := g.backend.Login(ctx, api.LoginRequest{Email: normalizeEmail(email), Password: password})
	if err != nil {
		return err
	}

	g.identity = &Identity{Token: resp.SessionToken, User: resp.User}
	if err := g.store.Save(Credentials{Token: resp.SessionToken, User: resp.User}); err != nil {
		// The session is live either way; persistence failure only costs
		// the next restore.
		logging.AuthWarn("could not persist credentials: %v", err)
	}
	logging.Auth("logged in as %s", resp.User.Email)
	return nil
}

// Signup registers a new account. It does not log in.
func (g *Gate) Signup(ctx context.Context, email, password, firstName, lastName string) error {
	if err := ValidateSignup(email, password, firstName, lastName); err != nil {
		return err
	}
	return g.backend.Signup(ctx, api.SignupRequest{
		Email:     normalizeEmail(email),
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	})
}

// Logout invalidates the token remotely on a best-effort basis and then
// unconditionally purges local state. The caller must cascade-clear all
// session-scoped state afterwards; a later user of this process must never
// see this user's messages.
func (g *Gate) Logout(ctx context.Context) {
	if g.identity != nil {
		if err := g.backend.Logout(ctx, g.identity.Token); err != nil {
			logging.Auth("remote logout failed (ignored): %v", err)
		}
	}
	g.identity = nil
	_ = g.store.Delete()
	logging.Auth("logged out")
}

// Invalidate drops the identity without a remote call. Used when the backend
// rejects the token mid-session (silent logout).
func (g *Gate) Invalidate() {
	g.identity = nil
	_ = g.store.Delete()
}
