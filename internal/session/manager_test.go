package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"example.com/fitness/internal/auth"
	"example.com/fitness/internal/domain"
	"example.com/fitness/internal/storage"
)

type fakeAuthorizer struct {
	mu           sync.Mutex
	token        auth.Token
	err          error
	exchanges    int
	lastVerifier string
}

func (f *fakeAuthorizer) AuthCodeURL(state, verifier string) string {
	return "https://idp.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeAuthorizer) Exchange(_ context.Context, _ string, verifier string) (auth.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges++
	f.lastVerifier = verifier
	return f.token, f.err
}

func idToken(t *testing.T, sub, name string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "name": name}).SignedString([]byte("idp"))
	require.NoError(t, err)
	return raw
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func stateFromURL(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestCompleteLoginSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	m := NewManager(storage.NewFileStore(path), nil, WithLogger(quietLogger()))
	sess, err := m.CompleteLogin(ctx, "t1", &auth.Claims{Subject: "u1", Name: "Ada"})
	require.NoError(t, err)
	require.Equal(t, "u1", sess.UserID)
	require.Equal(t, StateAuthenticated, m.State())

	restarted := NewManager(storage.NewFileStore(path), nil, WithLogger(quietLogger()))
	restored := restarted.Restore(ctx)
	require.Equal(t, "t1", restored.Token)
	require.Equal(t, "u1", restored.UserID)
	require.Equal(t, "Ada", restored.Claims.Name)
	require.Equal(t, StateAuthenticated, restarted.State())

	p, ok := restarted.Principal()
	require.True(t, ok)
	require.Equal(t, domain.Principal{Token: "t1", UserID: "u1"}, p)
}

func TestRestoreRebuildsClaimsFromUserID(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyToken, "t1"))
	require.NoError(t, store.Set(ctx, KeyUserID, "u9"))

	sess := NewManager(store, nil).Restore(ctx)
	require.Equal(t, "u9", sess.UserID)
	require.NotNil(t, sess.Claims)
	require.Equal(t, "u9", sess.Claims.Subject)
}

func TestRestoreWithoutTokenIsLoggedOut(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, KeyUserID, "u1"))

	m := NewManager(store, nil)
	sess := m.Restore(ctx)
	require.False(t, sess.Authenticated())
	require.Equal(t, StateUnauthenticated, m.State())
	_, ok := m.Principal()
	require.False(t, ok)
}

func TestLogoutClearsStorageAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := NewManager(store, nil, WithLogger(quietLogger()))
	_, err := m.CompleteLogin(ctx, "t1", &auth.Claims{Subject: "u1"})
	require.NoError(t, err)

	require.NoError(t, m.Logout(ctx))
	require.NoError(t, m.Logout(ctx))

	for _, key := range []string{KeyToken, KeyUser, KeyUserID} {
		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.False(t, ok, key)
	}
	require.False(t, NewManager(store, nil).Restore(ctx).Authenticated())
	require.Equal(t, StateUnauthenticated, m.State())
}

func TestBeginLoginWhileInProgressIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := NewManager(store, &fakeAuthorizer{}, WithLogger(quietLogger()))

	authURL, err := m.BeginLogin(ctx)
	require.NoError(t, err)
	state := stateFromURL(t, authURL)
	require.NotEmpty(t, state)
	require.Equal(t, StateLoggingIn, m.State())

	_, err = m.BeginLogin(ctx)
	require.ErrorIs(t, err, domain.ErrLoginInProgress)

	stored, _, err := store.Get(ctx, KeyPKCEState)
	require.NoError(t, err)
	require.Equal(t, state, stored)
	verifier, ok, err := store.Get(ctx, KeyPKCEVerifier)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, verifier)
}

func TestBeginLoginRestartsAfterTimeout(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Date(2025, 10, 27, 20, 0, 0, 0, time.UTC)
	m := NewManager(store, &fakeAuthorizer{},
		WithLogger(quietLogger()),
		WithLoginTimeout(5*time.Minute),
		WithClock(func() time.Time { return now }),
	)

	first, err := m.BeginLogin(ctx)
	require.NoError(t, err)

	now = now.Add(4 * time.Minute)
	_, err = m.BeginLogin(ctx)
	require.ErrorIs(t, err, domain.ErrLoginInProgress)

	now = now.Add(time.Minute)
	second, err := m.BeginLogin(ctx)
	require.NoError(t, err)
	require.NotEqual(t, stateFromURL(t, first), stateFromURL(t, second))
	require.Equal(t, StateLoggingIn, m.State())

	stored, _, err := store.Get(ctx, KeyPKCEState)
	require.NoError(t, err)
	require.Equal(t, stateFromURL(t, second), stored)

	_, err = m.HandleCallback(ctx, url.Values{"code": {"c1"}, "state": {stateFromURL(t, first)}})
	var authErr *domain.AuthError
	require.ErrorAs(t, err, &authErr)
}

type failingStore struct {
	*storage.MemoryStore
	failKey string
}

func (f failingStore) Set(ctx context.Context, key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestCompleteLoginRollsBackTokenOnPartialWrite(t *testing.T) {
	ctx := context.Background()
	for _, key := range []string{KeyUser, KeyUserID} {
		t.Run(key, func(t *testing.T) {
			store := failingStore{MemoryStore: storage.NewMemoryStore(), failKey: key}
			m := NewManager(store, &fakeAuthorizer{}, WithLogger(quietLogger()))

			_, err := m.CompleteLogin(ctx, "t1", &auth.Claims{Subject: "u1"})
			var authErr *domain.AuthError
			require.ErrorAs(t, err, &authErr)

			_, ok, err := store.Get(ctx, KeyToken)
			require.NoError(t, err)
			require.False(t, ok)
			require.False(t, NewManager(store, nil, WithLogger(quietLogger())).Restore(ctx).Authenticated())
		})
	}
}

func TestHandleCallbackCompletesLogin(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	authorizer := &fakeAuthorizer{token: auth.Token{AccessToken: "access-1", IDToken: idToken(t, "u1", "Ada")}}
	m := NewManager(store, authorizer, WithLogger(quietLogger()))

	var published []Session
	cancel := m.Subscribe(func(s Session) { published = append(published, s) })
	defer cancel()

	authURL, err := m.BeginLogin(ctx)
	require.NoError(t, err)
	verifier, _, err := store.Get(ctx, KeyPKCEVerifier)
	require.NoError(t, err)

	sess, err := m.HandleCallback(ctx, url.Values{"code": {"c1"}, "state": {stateFromURL(t, authURL)}})
	require.NoError(t, err)
	require.Equal(t, "access-1", sess.Token)
	require.Equal(t, "u1", sess.UserID)
	require.Equal(t, "Ada", sess.Claims.DisplayName())
	require.Equal(t, verifier, authorizer.lastVerifier)
	require.Equal(t, StateAuthenticated, m.State())

	_, ok, err := store.Get(ctx, KeyPKCEState)
	require.NoError(t, err)
	require.False(t, ok)

	require.Len(t, published, 1)
	require.Equal(t, "u1", published[0].UserID)
}

func TestFailedLoginReturnsToUnauthenticated(t *testing.T) {
	ctx := context.Background()
	cases := map[string]struct {
		params     func(state string) url.Values
		authorizer *fakeAuthorizer
	}{
		"provider error": {
			params:     func(string) url.Values { return url.Values{"error": {"access_denied"}} },
			authorizer: &fakeAuthorizer{},
		},
		"state mismatch": {
			params:     func(string) url.Values { return url.Values{"code": {"c1"}, "state": {"forged"}} },
			authorizer: &fakeAuthorizer{},
		},
		"exchange failure": {
			params:     func(state string) url.Values { return url.Values{"code": {"c1"}, "state": {state}} },
			authorizer: &fakeAuthorizer{err: errors.New("invalid_grant")},
		},
		"token without subject": {
			params:     func(state string) url.Values { return url.Values{"code": {"c1"}, "state": {state}} },
			authorizer: &fakeAuthorizer{token: auth.Token{AccessToken: idToken(t, "", "nobody")}},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			m := NewManager(store, tc.authorizer, WithLogger(quietLogger()))

			authURL, err := m.BeginLogin(ctx)
			require.NoError(t, err)

			_, err = m.HandleCallback(ctx, tc.params(stateFromURL(t, authURL)))
			var aerr *domain.AuthError
			require.ErrorAs(t, err, &aerr)
			require.Equal(t, StateUnauthenticated, m.State())
			require.LessOrEqual(t, tc.authorizer.exchanges, 1)

			_, ok, err := store.Get(ctx, KeyToken)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestCallbackWithoutLoginIsRejected(t *testing.T) {
	authorizer := &fakeAuthorizer{}
	m := NewManager(storage.NewMemoryStore(), authorizer, WithLogger(quietLogger()))

	_, err := m.HandleCallback(context.Background(), url.Values{"code": {"c1"}, "state": {"s"}})
	var aerr *domain.AuthError
	require.ErrorAs(t, err, &aerr)
	require.Zero(t, authorizer.exchanges)
}

func TestLogoutDuringLoginCancelsIt(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemoryStore(), &fakeAuthorizer{}, WithLogger(quietLogger()))

	_, err := m.BeginLogin(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Logout(ctx))
	require.Equal(t, StateUnauthenticated, m.State())

	_, err = m.BeginLogin(ctx)
	require.NoError(t, err)
}

func TestCallbackServer(t *testing.T) {
	ctx := context.Background()
	authorizer := &fakeAuthorizer{token: auth.Token{AccessToken: idToken(t, "u1", "")}}
	m := NewManager(storage.NewMemoryStore(), authorizer, WithLogger(quietLogger()))

	authURL, err := m.BeginLogin(ctx)
	require.NoError(t, err)

	cs, err := NewCallbackServer(m, "http://127.0.0.1:0/callback")
	require.NoError(t, err)

	resp, err := http.Get(cs.URL() + "?code=c1&state=" + url.QueryEscape(stateFromURL(t, authURL)))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	sess, err := cs.Wait(waitCtx)
	require.NoError(t, err)
	require.Equal(t, "u1", sess.UserID)
}

func TestCallbackServerTimeoutFailsLogin(t *testing.T) {
	ctx := context.Background()
	m := NewManager(storage.NewMemoryStore(), &fakeAuthorizer{}, WithLogger(quietLogger()))
	_, err := m.BeginLogin(ctx)
	require.NoError(t, err)

	cs, err := NewCallbackServer(m, "http://127.0.0.1:0/callback")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = cs.Wait(waitCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, StateUnauthenticated, m.State())
}
