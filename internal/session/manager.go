// Package session owns the authenticated user's token and identity claims.
//
// The Manager is the only writer of session state. It persists the session
// to a storage.Store so it survives restarts, drives the PKCE login flow and
// notifies subscribers whenever the session changes. Everything else reads
// the session through domain.SessionSource.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/fitness/internal/auth"
	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/observability"
	"example.com/fitness/internal/storage"
)

// Storage keys. The PKCE entries are transient and cleared before every login.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeyUserID       = "userId"
	KeyPKCEState    = "pkce_state"
	KeyPKCEVerifier = "pkce_code_verifier"
)

// State is the login state of the Manager.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateLoggingIn       State = "logging_in"
	StateAuthenticated   State = "authenticated"
)

// Session is the authenticated principal. The zero value is logged out.
type Session struct {
	Token  string       `json:"-"`
	Claims *auth.Claims `json:"claims,omitempty"`
	UserID string       `json:"userId,omitempty"`
}

// Authenticated reports whether the session carries a token.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// newSession derives UserID from the claims' subject.
func newSession(token string, claims *auth.Claims) Session {
	s := Session{Token: token, Claims: claims}
	if claims != nil {
		s.UserID = claims.Subject
	}
	return s
}

// Authorizer is the identity provider side of the PKCE flow.
type Authorizer interface {
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (auth.Token, error)
}

// Option configures optional behaviour for the Manager.
type Option func(*Manager)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClaimsConfig enables signature verification of received tokens.
func WithClaimsConfig(cfg auth.Config) Option {
	return func(m *Manager) {
		m.claimsConfig = cfg
	}
}

// WithLoginTimeout bounds how long a login may stay in progress. Once it
// has elapsed the next BeginLogin fails the stale attempt and starts over.
// Zero means no bound.
func WithLoginTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.loginTimeout = d
	}
}

// WithClock overrides the time source used for login deadlines.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager coordinates login, logout and persistence of the Session.
type Manager struct {
	store        storage.Store
	authorizer   Authorizer
	claimsConfig auth.Config
	logger       *slog.Logger
	loginTimeout time.Duration
	now          func() time.Time

	mu       sync.RWMutex
	state    State
	current  Session
	attempt  uint64
	deadline time.Time
	subs    map[uint64]func(Session)
	nextSub uint64
}

// NewManager constructs a Manager in the Unauthenticated state. Call Restore
// to load a persisted session. authorizer may be nil when no login will be
// attempted.
func NewManager(store storage.Store, authorizer Authorizer, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		authorizer: authorizer,
		logger:     slog.Default(),
		now:        time.Now,
		state:      StateUnauthenticated,
		subs:       make(map[uint64]func(Session)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the persisted session. Storage problems are logged and
// treated as a logged-out session.
func (m *Manager) Restore(ctx context.Context) Session {
	sess, err := m.load(ctx)
	if err != nil {
		m.logger.Warn("could not restore session", "error", err)
		sess = Session{}
	}

	m.mu.Lock()
	m.current = sess
	if sess.Authenticated() {
		m.state = StateAuthenticated
	} else {
		m.state = StateUnauthenticated
	}
	subs := m.subscribers()
	m.mu.Unlock()

	publish(subs, sess)
	return sess
}

func (m *Manager) load(ctx context.Context) (Session, error) {
	token, _, err := m.store.Get(ctx, KeyToken)
	if err != nil {
		return Session{}, err
	}
	if token == "" {
		return Session{}, nil
	}

	var claims *auth.Claims
	if raw, ok, err := m.store.Get(ctx, KeyUser); err != nil {
		return Session{}, err
	} else if ok && raw != "" && raw != "null" {
		var decoded auth.Claims
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			m.logger.Warn("ignoring unreadable stored claims", "error", err)
		} else {
			claims = &decoded
		}
	}

	userID, _, err := m.store.Get(ctx, KeyUserID)
	if err != nil {
		return Session{}, err
	}
	if claims == nil && userID != "" {
		claims = &auth.Claims{Subject: userID}
	}
	if claims != nil && claims.Subject == "" {
		claims.Subject = userID
	}
	return newSession(token, claims), nil
}

// Current returns the session as last published.
func (m *Manager) Current() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// State returns the login state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Principal implements domain.SessionSource.
func (m *Manager) Principal() (domain.Principal, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.Principal{Token: m.current.Token, UserID: m.current.UserID}, m.current.Authenticated()
}

// Subscribe registers fn to receive every published session. The returned
// func removes the subscription.
func (m *Manager) Subscribe(fn func(Session)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// BeginLogin starts the PKCE flow and returns the provider authorization URL.
// While a login is already in progress it returns domain.ErrLoginInProgress
// and does not start another, unless the previous attempt outlived the login
// timeout.
func (m *Manager) BeginLogin(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateLoggingIn && !m.deadline.IsZero() && !m.now().Before(m.deadline) {
		_ = m.failLocked("begin", context.DeadlineExceeded)
	}
	if m.state == StateLoggingIn {
		observability.RecordLogin("skipped")
		return "", domain.ErrLoginInProgress
	}
	if m.authorizer == nil {
		return "", &domain.AuthError{Op: "begin", Err: errors.New("no identity provider configured")}
	}

	m.state = StateLoggingIn
	m.attempt++
	m.deadline = time.Time{}
	if m.loginTimeout > 0 {
		m.deadline = m.now().Add(m.loginTimeout)
	}

	if err := m.store.Delete(ctx, KeyPKCEState, KeyPKCEVerifier); err != nil {
		return "", m.failLocked("begin", fmt.Errorf("clear previous login state: %w", err))
	}
	state := uuid.NewString()
	verifier := auth.NewVerifier()
	if err := m.store.Set(ctx, KeyPKCEState, state); err != nil {
		return "", m.failLocked("begin", err)
	}
	if err := m.store.Set(ctx, KeyPKCEVerifier, verifier); err != nil {
		return "", m.failLocked("begin", err)
	}

	observability.RecordLogin("started")
	m.logger.Info("login started")
	return m.authorizer.AuthCodeURL(state, verifier), nil
}

// HandleCallback finishes the flow from the provider's redirect parameters.
func (m *Manager) HandleCallback(ctx context.Context, params url.Values) (Session, error) {
	m.mu.RLock()
	state, attempt := m.state, m.attempt
	m.mu.RUnlock()
	if state != StateLoggingIn {
		return Session{}, &domain.AuthError{Op: "callback", Err: errors.New("no login in progress")}
	}

	if code := params.Get("error"); code != "" {
		msg := code
		if desc := params.Get("error_description"); desc != "" {
			msg = code + ": " + desc
		}
		return Session{}, m.FailLogin(ctx, "authorize", errors.New(msg))
	}

	wantState, _, err := m.store.Get(ctx, KeyPKCEState)
	if err != nil {
		return Session{}, m.FailLogin(ctx, "callback", err)
	}
	verifier, _, err := m.store.Get(ctx, KeyPKCEVerifier)
	if err != nil {
		return Session{}, m.FailLogin(ctx, "callback", err)
	}
	if wantState == "" || params.Get("state") != wantState {
		return Session{}, m.FailLogin(ctx, "callback", errors.New("state mismatch"))
	}
	code := params.Get("code")
	if code == "" {
		return Session{}, m.FailLogin(ctx, "callback", errors.New("missing authorization code"))
	}
	if err := m.store.Delete(ctx, KeyPKCEState, KeyPKCEVerifier); err != nil {
		m.logger.Warn("could not clear login state", "error", err)
	}

	tok, err := m.authorizer.Exchange(ctx, code, verifier)
	if err != nil {
		return Session{}, m.FailLogin(ctx, "token exchange", err)
	}
	raw := tok.IDToken
	if raw == "" {
		raw = tok.AccessToken
	}
	claims, err := auth.DecodeClaims(raw, m.claimsConfig)
	if err != nil {
		return Session{}, m.FailLogin(ctx, "decode claims", err)
	}

	m.mu.RLock()
	superseded := m.attempt != attempt || m.state != StateLoggingIn
	m.mu.RUnlock()
	if superseded {
		return Session{}, &domain.AuthError{Op: "callback", Err: errors.New("login was cancelled")}
	}
	return m.CompleteLogin(ctx, tok.AccessToken, claims)
}

// CompleteLogin persists token and claims, replacing any previous session,
// and publishes the result.
func (m *Manager) CompleteLogin(ctx context.Context, token string, claims *auth.Claims) (Session, error) {
	if token == "" {
		return Session{}, m.FailLogin(ctx, "complete", errors.New("empty token"))
	}
	sess := newSession(token, claims)

	if err := m.persist(ctx, sess); err != nil {
		return Session{}, m.FailLogin(ctx, "persist session", err)
	}

	m.mu.Lock()
	m.current = sess
	m.state = StateAuthenticated
	subs := m.subscribers()
	m.mu.Unlock()

	observability.RecordLogin("succeeded")
	m.logger.Info("login completed", "user_id", sess.UserID)
	publish(subs, sess)
	return sess, nil
}

// persist writes the session. A failed claims write removes the token again
// so Restore never sees a token without its identity.
func (m *Manager) persist(ctx context.Context, sess Session) error {
	if err := m.store.Set(ctx, KeyToken, sess.Token); err != nil {
		return err
	}
	if err := m.persistIdentity(ctx, sess); err != nil {
		if delErr := m.store.Delete(ctx, KeyToken); delErr != nil {
			m.logger.Warn("could not roll back token", "error", delErr)
		}
		return err
	}
	return nil
}

func (m *Manager) persistIdentity(ctx context.Context, sess Session) error {
	if sess.Claims == nil {
		return m.store.Delete(ctx, KeyUser, KeyUserID)
	}
	raw, err := json.Marshal(sess.Claims)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, KeyUser, string(raw)); err != nil {
		return err
	}
	if sess.UserID == "" {
		return m.store.Delete(ctx, KeyUserID)
	}
	return m.store.Set(ctx, KeyUserID, sess.UserID)
}

// FailLogin abandons the login in progress and returns the AuthError to show
// the user. Failures are never retried.
func (m *Manager) FailLogin(ctx context.Context, op string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(ctx, KeyPKCEState, KeyPKCEVerifier); err != nil {
		m.logger.Warn("could not clear login state", "error", err)
	}
	return m.failLocked(op, cause)
}

func (m *Manager) failLocked(op string, cause error) error {
	if m.state == StateLoggingIn {
		if m.current.Authenticated() {
			m.state = StateAuthenticated
		} else {
			m.state = StateUnauthenticated
		}
	}
	observability.RecordLogin("failed")
	m.logger.Warn("login failed", "op", op, "error", cause)
	return &domain.AuthError{Op: op, Err: cause}
}

// Logout clears the session from memory and storage. Logging out while
// logged out is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	was := m.current
	m.current = Session{}
	m.state = StateUnauthenticated
	m.attempt++
	subs := m.subscribers()
	m.mu.Unlock()

	err := m.store.Delete(ctx, KeyToken, KeyUser, KeyUserID, KeyPKCEState, KeyPKCEVerifier)
	if was.Authenticated() {
		m.logger.Info("logged out", "user_id", was.UserID)
		publish(subs, Session{})
	}
	return err
}

func (m *Manager) subscribers() []func(Session) {
	out := make([]func(Session), 0, len(m.subs))
	for _, fn := range m.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Session), sess Session) {
	for _, fn := range subs {
		fn(sess)
	}
}
