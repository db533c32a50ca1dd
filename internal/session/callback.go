package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

type callbackResult struct {
	session Session
	err     error
}

// CallbackServer listens on the redirect URI for a single provider callback
// and hands it to the Manager.
type CallbackServer struct {
	manager  *Manager
	listener net.Listener
	server   *http.Server
	path     string
	results  chan callbackResult
}

// NewCallbackServer binds the host and port of redirectURL immediately so the
// browser redirect cannot race the listener.
func NewCallbackServer(m *Manager, redirectURL string) (*CallbackServer, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("parse redirect url: %w", err)
	}
	if u.Scheme != "http" || u.Host == "" {
		return nil, fmt.Errorf("redirect url %q must be a loopback http address", redirectURL)
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}

	cs := &CallbackServer{
		manager:  m,
		listener: ln,
		path:     path,
		results:  make(chan callbackResult, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, cs.handle)
	cs.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := cs.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("callback listener stopped", "error", err)
		}
	}()
	return cs, nil
}

// URL returns the callback address actually bound, useful when the
// configured port was 0.
func (c *CallbackServer) URL() string {
	return "http://" + c.listener.Addr().String() + c.path
}

func (c *CallbackServer) handle(w http.ResponseWriter, r *http.Request) {
	sess, err := c.manager.HandleCallback(r.Context(), r.URL.Query())
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "%v\nYou can close this window.\n", err)
	} else {
		fmt.Fprintln(w, "Logged in. You can close this window and return to the terminal.")
	}
	select {
	case c.results <- callbackResult{session: sess, err: err}:
	default:
	}
}

// Wait blocks until a callback has been handled or ctx ends. A cancelled or
// timed out wait fails the login. The listener is closed on return.
func (c *CallbackServer) Wait(ctx context.Context) (Session, error) {
	defer c.Close()
	select {
	case res := <-c.results:
		return res.session, res.err
	case <-ctx.Done():
		return Session{}, c.manager.FailLogin(context.Background(), "callback", ctx.Err())
	}
}

// Close stops the listener.
func (c *CallbackServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return c.server.Shutdown(ctx)
}
