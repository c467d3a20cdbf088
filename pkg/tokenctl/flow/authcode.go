package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/telekom/tokenctl/pkg/system"
	"github.com/telekom/tokenctl/pkg/tokenctl/callback"
	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
	"github.com/telekom/tokenctl/pkg/tokenctl/pkce"
)

// AuthCodeFlow obtains a token by sending the user's browser to the
// authorization endpoint and receiving the code on a loopback listener.
//
//	Idle -> AwaitingCallback -> Exchanging -> Done | Failed
type AuthCodeFlow struct {
	Identity        oauth.ClientIdentity
	AuthorizeURL    string
	Scopes          []string
	ExtraAuthParams map[string]string
	Exchanger       Exchanger

	// OpenBrowser is invoked with the authorization URL. A failure is logged
	// and the flow keeps waiting; the URL is always printed to Out.
	OpenBrowser func(url string) error
	Out         io.Writer

	Clock         Clock
	NewState      func() (string, error)
	OnStateChange func(State)
	Log           *zap.SugaredLogger
}

func (f *AuthCodeFlow) validate() (*url.URL, error) {
	if f.Identity.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if f.AuthorizeURL == "" {
		return nil, errors.New("authorization endpoint is required")
	}
	if f.Exchanger == nil {
		return nil, errors.New("token exchanger is required")
	}
	redirect, err := url.Parse(f.Identity.RedirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI: %w", err)
	}
	if redirect.Scheme != "http" || redirect.Host == "" {
		return nil, fmt.Errorf("redirect URI must be an http loopback URL: %s", f.Identity.RedirectURI)
	}
	return redirect, nil
}

// Run executes one attempt. The listener socket is released before Run
// returns, whatever the outcome.
func (f *AuthCodeFlow) Run(ctx context.Context) (*LoginResult, error) {
	redirect, err := f.validate()
	if err != nil {
		return nil, err
	}
	log := system.LoggerOrNop(f.Log).With("flow", NameAuthorizationCode, "flowID", uuid.NewString())
	clk := clockOrReal(f.Clock)
	t := newTracker(log, f.OnStateChange)

	start := clk.Now()
	result, err := f.run(ctx, t, log, clk, redirect)
	observe(NameAuthorizationCode, start, clk.Now(), err)
	if err != nil {
		t.enter(StateFailed)
		log.Debugw("Authorization code flow failed", "error", err)
		return nil, err
	}
	t.enter(StateDone)
	return result, nil
}

func (f *AuthCodeFlow) run(ctx context.Context, t *tracker, log *zap.SugaredLogger, clk Clock, redirect *url.URL) (*LoginResult, error) {
	newState := f.NewState
	if newState == nil {
		newState = pkce.NewState
	}
	state, err := newState()
	if err != nil {
		return nil, err
	}

	listener, err := callback.Listen(redirect.Host, redirect.Path, callback.WithState(state), callback.WithLogger(log))
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = listener.Close()
	}()

	redirectURI := f.Identity.RedirectURI
	if redirect.Port() == "0" {
		if redirectURI, err = listener.RedirectURI(redirectURI); err != nil {
			return nil, err
		}
	}

	authURL := f.authCodeURL(redirectURI, state)
	t.enter(StateAwaitingCallback)
	out := writerOrDiscard(f.Out)
	_, _ = fmt.Fprintf(out, "Open the following URL in your browser:\n%s\n", authURL)
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			log.Warnw("Failed to open browser", "error", err)
		}
	}

	cb, err := listener.Wait(ctx)
	if err != nil {
		return nil, err
	}

	t.enter(StateExchanging)
	params := url.Values{}
	params.Set("grant_type", oauth.GrantAuthorizationCode)
	params.Set("code", cb.Code)
	params.Set("client_id", f.Identity.ClientID)
	if f.Identity.ClientSecret != "" {
		params.Set("client_secret", f.Identity.ClientSecret)
	}
	params.Set("redirect_uri", redirectURI)
	resp, err := f.Exchanger.Exchange(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return tokenResult(resp, clk.Now())
}

func (f *AuthCodeFlow) authCodeURL(redirectURI, state string) string {
	cfg := oauth2.Config{
		ClientID:    f.Identity.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: f.AuthorizeURL},
		RedirectURL: redirectURI,
		Scopes:      f.Scopes,
	}
	opts := make([]oauth2.AuthCodeOption, 0, len(f.ExtraAuthParams))
	for k, v := range f.ExtraAuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	return cfg.AuthCodeURL(state, opts...)
}
