package oauth

import (
	"time"

	"golang.org/x/oauth2"
)

// Grant types sent to the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
)

// DefaultPollInterval applies when the server omits interval.
const DefaultPollInterval = 5 * time.Second

// ClientIdentity is the static client registration used by both flows.
type ClientIdentity struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// DeviceAuthorization is the device authorization endpoint response.
type DeviceAuthorization struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	Interval                int    `json:"interval"`
	ExpiresIn               int    `json:"expires_in"`
}

// PollInterval returns the advertised interval or DefaultPollInterval.
func (d *DeviceAuthorization) PollInterval() time.Duration {
	if d.Interval <= 0 {
		return DefaultPollInterval
	}
	return time.Duration(d.Interval) * time.Second
}

// Lifetime returns how long the device code stays valid, zero if unknown.
func (d *DeviceAuthorization) Lifetime() time.Duration {
	if d.ExpiresIn <= 0 {
		return 0
	}
	return time.Duration(d.ExpiresIn) * time.Second
}

// VerificationURL prefers the complete URI which embeds the user code.
func (d *DeviceAuthorization) VerificationURL() string {
	if d.VerificationURIComplete != "" {
		return d.VerificationURIComplete
	}
	return d.VerificationURI
}

// TokenResponse is the token endpoint body, kept as the server sent it.
type TokenResponse struct {
	AccessToken      string `json:"access_token,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	Scope            string `json:"scope,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`

	StatusCode int `json:"-"`
}

// Err returns the provider error carried by the response, if any.
func (r *TokenResponse) Err() error {
	if r.Error == "" {
		return nil
	}
	return &ProviderError{Code: r.Error, Description: r.ErrorDescription, URI: r.ErrorURI}
}

// Token converts a successful response. now anchors the expiry.
func (r *TokenResponse) Token(now time.Time) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  r.AccessToken,
		TokenType:    r.TokenType,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	extra := map[string]any{}
	if r.IDToken != "" {
		extra["id_token"] = r.IDToken
	}
	if r.Scope != "" {
		extra["scope"] = r.Scope
	}
	if len(extra) > 0 {
		tok = tok.WithExtra(extra)
	}
	return tok
}
