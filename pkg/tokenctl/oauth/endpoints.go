package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

const (
	authorizePath           = "/authorize"
	tokenPath               = "/token"
	deviceAuthorizationPath = "/device_authorization"
)

// Endpoints are the absolute URLs of the server endpoints used by the flows.
type Endpoints struct {
	AuthorizeURL           string
	TokenURL               string
	DeviceAuthorizationURL string
}

// EndpointsFromBase derives the endpoint URLs from a server base URL.
func EndpointsFromBase(base string) (Endpoints, error) {
	if strings.TrimSpace(base) == "" {
		return Endpoints{}, errors.New("server base URL is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return Endpoints{}, fmt.Errorf("invalid server base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Endpoints{}, fmt.Errorf("invalid server base URL: %s", base)
	}
	trimmed := strings.TrimRight(parsed.String(), "/")
	return Endpoints{
		AuthorizeURL:           trimmed + authorizePath,
		TokenURL:               trimmed + tokenPath,
		DeviceAuthorizationURL: trimmed + deviceAuthorizationPath,
	}, nil
}

// DiscoverEndpoints reads the issuer's OpenID configuration.
func DiscoverEndpoints(ctx context.Context, client *http.Client, issuer string) (Endpoints, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	ep := provider.Endpoint()
	return Endpoints{
		AuthorizeURL:           ep.AuthURL,
		TokenURL:               ep.TokenURL,
		DeviceAuthorizationURL: ep.DeviceAuthURL,
	}, nil
}

// Merge returns e with every empty field taken from fallback.
func (e Endpoints) Merge(fallback Endpoints) Endpoints {
	if e.AuthorizeURL == "" {
		e.AuthorizeURL = fallback.AuthorizeURL
	}
	if e.TokenURL == "" {
		e.TokenURL = fallback.TokenURL
	}
	if e.DeviceAuthorizationURL == "" {
		e.DeviceAuthorizationURL = fallback.DeviceAuthorizationURL
	}
	return e
}
