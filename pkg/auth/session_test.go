package auth

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenServer serves a fixed token for every code or refresh grant.
func tokenServer(t *testing.T, accessToken string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(tokenURL, redirect string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		RedirectURL: redirect,
		Scopes:      Scopes,
	}
}

func TestConfigFromJSONNormalizesRedirect(t *testing.T) {
	tests := []struct {
		redirect string
		want     string
	}{
		{"http://localhost", "http://localhost:6789"},
		{"http://127.0.0.1:8080/cb", "http://127.0.0.1:6789/cb"},
		{oobRedirect, "http://localhost:6789/oauth2callback"},
		{"https://planner.example.com/cb", "https://planner.example.com/cb"},
	}
	for _, tt := range tests {
		t.Run(tt.redirect, func(t *testing.T) {
			secrets := map[string]any{
				"installed": map[string]any{
					"client_id":     "id",
					"client_secret": "secret",
					"redirect_uris": []string{tt.redirect},
					"auth_uri":      "https://accounts.google.com/o/oauth2/auth",
					"token_uri":     "https://oauth2.googleapis.com/token",
				},
			}
			b, err := json.Marshal(secrets)
			require.NoError(t, err)

			cfg, err := ConfigFromJSON(b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.RedirectURL)
			assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar.events"}, cfg.Scopes)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "credentials.json"))
	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSessionWithoutToken(t *testing.T) {
	s, err := NewSession(testConfig("http://unused", "http://localhost:6789"), filepath.Join(t.TempDir(), "token.json"), nil)
	require.NoError(t, err)
	assert.False(t, s.SignedIn())

	_, err = s.HTTPClient(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.NoError(t, s.SignOut())
}

func TestSessionMalformedToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0600))

	_, err := NewSession(testConfig("http://unused", ""), path, nil)
	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "load token", aerr.Op)
}

func TestExchangeAndSignOut(t *testing.T) {
	srv := tokenServer(t, "access-1")
	path := filepath.Join(t.TempDir(), "nested", "token.json")

	s, err := NewSession(testConfig(srv.URL, "http://localhost:6789"), path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Exchange(context.Background(), "code-1"))
	assert.True(t, s.SignedIn())

	reloaded, err := NewSession(testConfig(srv.URL, ""), path, nil)
	require.NoError(t, err)
	assert.True(t, reloaded.SignedIn())

	require.NoError(t, reloaded.SignOut())
	assert.False(t, reloaded.SignedIn())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAuthURL(t *testing.T) {
	s, err := NewSession(testConfig("http://unused", "http://localhost:6789"), filepath.Join(t.TempDir(), "token.json"), nil)
	require.NoError(t, err)

	u, err := url.Parse(s.AuthURL("xyz"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "http://localhost:6789", q.Get("redirect_uri"))
}

func TestHTTPClientSavesRefreshedToken(t *testing.T) {
	srv := tokenServer(t, "access-2")
	path := filepath.Join(t.TempDir(), "token.json")
	expired := &oauth2.Token{AccessToken: "access-1", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}
	require.NoError(t, writeToken(path, expired))

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, r.Header.Get("Authorization"))
	}))
	defer api.Close()

	s, err := NewSession(testConfig(srv.URL, ""), path, nil)
	require.NoError(t, err)
	client, err := s.HTTPClient(context.Background())
	require.NoError(t, err)

	resp, err := client.Get(api.URL)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "Bearer access-2", string(body))

	saved, err := readToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access-2", saved.AccessToken)
}

// lineWriter forwards each written chunk to a channel.
type lineWriter chan string

func (w lineWriter) Write(p []byte) (int, error) {
	w <- string(p)
	return len(p), nil
}

func TestSignInFlow(t *testing.T) {
	srv := tokenServer(t, "access-browser")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	redirect := "http://" + ln.Addr().String() + "/oauth2callback"

	path := filepath.Join(t.TempDir(), "token.json")
	s, err := NewSession(testConfig(srv.URL, redirect), path, nil)
	require.NoError(t, err)

	out := make(lineWriter, 4)
	done := make(chan error, 1)
	go func() { done <- s.signIn(context.Background(), ln, out) }()

	var authURL string
	scanner := bufio.NewScanner(strings.NewReader(<-out))
	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), "https://") {
			authURL = scanner.Text()
		}
	}
	require.NotEmpty(t, authURL)
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	// a redirect with the wrong state is rejected and does not end the flow
	resp, err := http.Get(redirect + "?code=evil&state=other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(redirect + "?code=good&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("sign in did not finish")
	}
	assert.True(t, s.SignedIn())
	saved, err := readToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access-browser", saved.AccessToken)
}

func TestSignInCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s, err := NewSession(testConfig("http://unused", "http://"+ln.Addr().String()), filepath.Join(t.TempDir(), "token.json"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.signIn(ctx, ln, io.Discard)
	var aerr *Error
	require.True(t, errors.As(err, &aerr))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.SignedIn())
}
