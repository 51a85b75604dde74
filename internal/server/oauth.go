// package server hosts the one-shot loopback HTTP server used to provision a
// Spotify refresh token via the authorization-code flow.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Exchanger trades an authorization code for a token.
// Satisfied by the Spotify client.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// Result is the outcome of one authorization flow.
type Result struct {
	Token *oauth2.Token
	Err   error
}

// CallbackServer handles a single OAuth2 callback request.
//
// The state token must be cryptographically random for CSRF protection;
// subsequent callback hits are rejected.
type CallbackServer struct {
	exchanger Exchanger
	state     string

	resultCh    chan Result
	once        sync.Once
	mu          sync.Mutex
	callbackHit bool
}

// NewCallbackServer creates a callback server expecting the given state token.
func NewCallbackServer(exchanger Exchanger, state string) *CallbackServer {
	return &CallbackServer{
		exchanger: exchanger,
		state:     state,
		resultCh:  make(chan Result, 1),
	}
}

// ServeHTTP handles the OAuth callback: validates state, exchanges the code,
// and delivers the result exactly once.
func (s *CallbackServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.callbackHit {
		s.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	s.callbackHit = true
	s.mu.Unlock()

	if state := r.URL.Query().Get("state"); state != s.state {
		s.send(Result{Err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		errDesc := r.URL.Query().Get("error_description")
		s.send(Result{Err: fmt.Errorf("authorization failed: %s - %s", errParam, errDesc)})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	token, err := s.exchanger.Exchange(r.Context(), code)
	if err != nil {
		s.send(Result{Err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusInternalServerError)
		return
	}

	s.send(Result{Token: token})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authorization Successful</title></head>
<body>
  <h1>Authorization successful</h1>
  <p>You can close this window and return to the terminal.</p>
</body>
</html>
`)
}

// send delivers the flow result (only once).
func (s *CallbackServer) send(result Result) {
	s.once.Do(func() {
		s.resultCh <- result
		close(s.resultCh)
	})
}

// ListenAndWait serves the /callback route on addr until the flow completes or
// ctx is done, then shuts the server down and returns the token.
func (s *CallbackServer) ListenAndWait(ctx context.Context, addr string) (*oauth2.Token, error) {
	mux := http.NewServeMux()
	mux.Handle("/callback", s)

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	select {
	case result := <-s.resultCh:
		return result.Token, result.Err
	case err := <-errCh:
		return nil, fmt.Errorf("callback server failed: %w", err)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
