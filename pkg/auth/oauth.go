package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

const (
	// CallbackPort is the port of the local listener that captures the
	// OAuth redirect.
	CallbackPort = "6789"

	// CallbackPath is used when the client secrets carry the out-of-band
	// redirect.
	CallbackPath = "/oauth2callback"

	oobRedirect = "urn:ietf:wg:oauth:2.0:oob"
)

// Scopes requested by the planner. Only event read/write is needed.
var Scopes = []string{calendar.CalendarEventsScope}

// ErrNotAuthenticated is returned when a remote operation is attempted
// without a token.
var ErrNotAuthenticated = errors.New("not signed in to Google Calendar")

// Error reports a failed step of the sign-in flow or of token handling.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("google auth: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LoadConfig reads a Google client secrets file (as downloaded from the
// Cloud Console) and returns an oauth2 config for the calendar events
// scope.
func LoadConfig(credentialsPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, &Error{Op: "read client secrets", Err: err}
	}
	return ConfigFromJSON(b)
}

// ConfigFromJSON parses client secrets and points a localhost or
// out-of-band redirect at the local callback listener.
func ConfigFromJSON(b []byte) (*oauth2.Config, error) {
	cfg, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, &Error{Op: "parse client secrets", Err: err}
	}
	cfg.RedirectURL = normalizeRedirect(cfg.RedirectURL)
	return cfg, nil
}

func normalizeRedirect(redirect string) string {
	if redirect == oobRedirect {
		return "http://localhost:" + CallbackPort + CallbackPath
	}

	u, err := url.Parse(redirect)
	if err != nil {
		slog.Warn("could not parse redirect URL, using it as is", "redirect_url", redirect, "error", err)
		return redirect
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		slog.Warn("redirect URL is not a localhost callback", "redirect_url", redirect)
		return redirect
	}
	if port := u.Port(); port != "" && port != CallbackPort {
		slog.Warn("overriding redirect port", "configured", port, "using", CallbackPort)
	}
	u.Host = host + ":" + CallbackPort
	return u.String()
}
