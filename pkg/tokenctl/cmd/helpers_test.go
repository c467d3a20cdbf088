package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

type instantClock struct{}

func (instantClock) Now() time.Time { return time.Now() }

func (instantClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

// authServer is a minimal authorization server with the /authorize,
// /token and /device_authorization endpoints.
type authServer struct {
	*httptest.Server

	mu         sync.Mutex
	tokenForms []url.Values
	denyDevice bool
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	s := &authServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/device_authorization", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"device_code":               "D1",
			"user_code":                 "U1",
			"verification_uri":          s.URL + "/device",
			"verification_uri_complete": s.URL + "/device?user_code=U1",
			"interval":                  1,
			"expires_in":                600,
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		s.mu.Lock()
		s.tokenForms = append(s.tokenForms, r.PostForm)
		deny := s.denyDevice
		s.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") == "abc123":
			_, _ = fmt.Fprint(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":300}`)
		case r.PostForm.Get("device_code") == "D1" && deny:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"error":"access_denied","error_description":"user declined"}`)
		case r.PostForm.Get("device_code") == "D1":
			_, _ = fmt.Fprint(w, `{"access_token":"tok-42","token_type":"Bearer"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"error":"invalid_grant"}`)
		}
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *authServer) TokenForms() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.tokenForms...)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func serverConfig(t *testing.T, srv *authServer) string {
	return writeConfig(t, fmt.Sprintf(`
client:
  client-id: cli-client
  client-secret: secret
  redirect-uri: http://127.0.0.1:0/callback
server:
  base-url: %s
`, srv.URL))
}

// callbackBrowser plays the user agent: it follows the authorization URL
// straight to the redirect URI with code=abc123.
func callbackBrowser(authURL string) error {
	u, err := url.Parse(authURL)
	if err != nil {
		return err
	}
	redirect, err := url.Parse(u.Query().Get("redirect_uri"))
	if err != nil {
		return err
	}
	redirect.RawQuery = url.Values{"code": {"abc123"}, "state": {u.Query().Get("state")}}.Encode()
	resp, err := http.Get(redirect.String())
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

type testRoot struct {
	cmd    *cobra.Command
	out    *bytes.Buffer
	prompt *bytes.Buffer
	copied *[]string
}

func newTestRoot(t *testing.T, configPath string) testRoot {
	t.Helper()
	t.Setenv("TOKENCTL_CONFIG", "")
	out := &bytes.Buffer{}
	prompt := &bytes.Buffer{}
	copied := &[]string{}
	clip := func(token string) error {
		*copied = append(*copied, token)
		return nil
	}
	root := NewRootCommand(Config{
		ConfigPath:   configPath,
		OutputWriter: out,
		PromptWriter: prompt,
		OpenBrowser:  callbackBrowser,
		Clipboard:    clip,
		Clock:        instantClock{},
	})
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	return testRoot{cmd: root, out: out, prompt: prompt, copied: copied}
}

func (r testRoot) run(args ...string) error {
	r.cmd.SetArgs(args)
	return r.cmd.Execute()
}
