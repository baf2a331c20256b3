// Package auth manages the Google OAuth2 session used for calendar
// mirroring. Holding a token is the only signed-in signal; the token is
// cached in a file and refreshed tokens are written back to it.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/harrisonrobin/planner/pkg/logging"
)

// SignInTimeout bounds how long SignInWithBrowser waits for the redirect.
const SignInTimeout = 5 * time.Minute

// Session holds the OAuth2 config and the cached token.
type Session struct {
	cfg       *oauth2.Config
	tokenPath string
	logger    *slog.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

// NewSession returns a session backed by tokenPath. An existing token file
// signs the session in; a missing one leaves it signed out.
func NewSession(cfg *oauth2.Config, tokenPath string, logger *slog.Logger) (*Session, error) {
	s := &Session{cfg: cfg, tokenPath: tokenPath, logger: logging.OrDefault(logger)}
	tok, err := readToken(tokenPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, &Error{Op: "load token", Err: err}
	default:
		s.token = tok
	}
	return s, nil
}

// SignedIn reports whether a token is present.
func (s *Session) SignedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != nil
}

// AuthURL returns the consent page URL. Offline access is requested so a
// refresh token is issued.
func (s *Session) AuthURL(state string) string {
	return s.cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades an authorization code for a token and stores it.
func (s *Session) Exchange(ctx context.Context, code string) error {
	tok, err := s.cfg.Exchange(ctx, code)
	if err != nil {
		return &Error{Op: "exchange code", Err: err}
	}
	return s.setToken(tok)
}

// SignInWithBrowser runs the authorization code flow: it listens on the
// redirect address, prints the consent URL to out and waits for the
// redirect for at most SignInTimeout.
func (s *Session) SignInWithBrowser(ctx context.Context, out io.Writer) error {
	u, err := url.Parse(s.cfg.RedirectURL)
	if err != nil {
		return &Error{Op: "parse redirect URL", Err: err}
	}
	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return &Error{Op: "listen for redirect", Err: fmt.Errorf("failed to start listener on %s: %w", u.Host, err)}
	}
	return s.signIn(ctx, ln, out)
}

type callback struct {
	code string
	err  error
}

func (s *Session) signIn(ctx context.Context, ln net.Listener, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, SignInTimeout)
	defer cancel()

	state := uuid.NewString()
	results := make(chan callback, 1)
	deliver := func(cb callback) {
		select {
		case results <- cb:
		default:
		}
	}

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if q.Get("state") != state {
				http.Error(w, "State mismatch", http.StatusBadRequest)
				return
			}
			if e := q.Get("error"); e != "" {
				http.Error(w, "Authorization denied", http.StatusForbidden)
				deliver(callback{err: fmt.Errorf("authorization denied: %s", e)})
				return
			}
			code := q.Get("code")
			if code == "" {
				http.Error(w, "Authorization code not found", http.StatusBadRequest)
				deliver(callback{err: errors.New("authorization code not found in redirect URL")})
				return
			}
			fmt.Fprintln(w, "Signed in to Google Calendar. You can close this window.")
			deliver(callback{code: code})
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deliver(callback{err: fmt.Errorf("redirect listener: %w", err)})
		}
	}()
	defer server.Close()

	fmt.Fprintf(out, "Open the following URL in your browser to connect Google Calendar:\n%s\n", s.AuthURL(state))
	s.logger.Info("waiting for OAuth redirect", "addr", ln.Addr().String())

	select {
	case cb := <-results:
		if cb.err != nil {
			return &Error{Op: "sign in", Err: cb.err}
		}
		return s.Exchange(ctx, cb.code)
	case <-ctx.Done():
		return &Error{Op: "sign in", Err: fmt.Errorf("authorization timed out: %w", ctx.Err())}
	}
}

// SignOut drops the token and removes the token file.
func (s *Session) SignOut() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
	if err := os.Remove(s.tokenPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &Error{Op: "remove token", Err: err}
	}
	return nil
}

// HTTPClient returns a client that authorizes requests with the session
// token, refreshing it as needed.
func (s *Session) HTTPClient(ctx context.Context) (*http.Client, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok == nil {
		return nil, ErrNotAuthenticated
	}

	src := &savingSource{session: s, base: s.cfg.TokenSource(ctx, tok), last: tok.AccessToken}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

func (s *Session) setToken(tok *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = tok
	if err := writeToken(s.tokenPath, tok); err != nil {
		return &Error{Op: "save token", Err: err}
	}
	return nil
}

// savingSource writes refreshed tokens back to the token file.
type savingSource struct {
	session *Session
	base    oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (t *savingSource) Token() (*oauth2.Token, error) {
	tok, err := t.base.Token()
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if tok.AccessToken != t.last {
		t.last = tok.AccessToken
		if err := t.session.setToken(tok); err != nil {
			t.session.logger.Warn("could not save refreshed token", logging.Err(err))
		}
	}
	return tok, nil
}

func readToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token from file %s: %w", path, err)
	}
	return tok, nil
}

func writeToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
