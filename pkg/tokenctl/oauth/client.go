package oauth

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/tokenctl/pkg/metrics"
	"github.com/telekom/tokenctl/pkg/tokenctl/pkce"
)

const maxBodyBytes = 1 << 20

// Client issues form-encoded POSTs to the device authorization and token
// endpoints. It performs exactly one request per call and never retries.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	userAgent string
	scopes    []string
	log       *zap.SugaredLogger
}

type Option func(*Client) error

func NewClient(endpoints Endpoints, opts ...Option) (*Client, error) {
	c := &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: 30 * time.Second},
		userAgent: "tokenctl",
		log:       zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.endpoints.TokenURL == "" {
		return nil, errors.New("token endpoint is required")
	}
	return c, nil
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		if client == nil {
			return errors.New("http client is nil")
		}
		c.http = client
		return nil
	}
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) error {
		c.userAgent = userAgent
		return nil
	}
}

// WithScopes adds a scope parameter to device authorization requests.
func WithScopes(scopes []string) Option {
	return func(c *Client) error {
		c.scopes = scopes
		return nil
	}
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) error {
		if log != nil {
			c.log = log
		}
		return nil
	}
}

// Endpoints returns the endpoints the client was built with.
func (c *Client) Endpoints() Endpoints { return c.endpoints }

// InitiateDeviceAuthorization requests a device code bound to codeChallenge.
// Any non-2xx status, unparseable body or body without device_code is a
// *ServerError.
func (c *Client) InitiateDeviceAuthorization(ctx context.Context, clientID, codeChallenge string) (*DeviceAuthorization, error) {
	const op = "device authorization"
	if c.endpoints.DeviceAuthorizationURL == "" {
		return nil, errors.New("device authorization endpoint not configured")
	}
	values := url.Values{}
	values.Set("client_id", clientID)
	values.Set("code_challenge", codeChallenge)
	values.Set("code_challenge_method", pkce.MethodS256)
	if len(c.scopes) > 0 {
		values.Set("scope", strings.Join(c.scopes, " "))
	}

	status, body, err := c.postForm(ctx, op, c.endpoints.DeviceAuthorizationURL, values)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		DeviceAuthorization
		ProviderError
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ServerError{Endpoint: op, StatusCode: status, Body: truncate(body), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if envelope.Code != "" {
		providerErr := envelope.ProviderError
		return nil, &ServerError{Endpoint: op, StatusCode: status, Err: &providerErr}
	}
	if status < 200 || status > 299 {
		return nil, &ServerError{Endpoint: op, StatusCode: status, Body: truncate(body)}
	}
	if envelope.DeviceCode == "" {
		return nil, &ServerError{Endpoint: op, StatusCode: status, Err: errors.New("device_code not found in response")}
	}
	auth := envelope.DeviceAuthorization
	c.log.Debugw("Device authorization issued",
		"verificationURI", auth.VerificationURL(), "interval", auth.Interval, "expiresIn", auth.ExpiresIn)
	return &auth, nil
}

// Exchange POSTs params to the token endpoint and returns the parsed body
// whatever the status code: pending and denied states arrive as JSON error
// codes. Only an unparseable body is a *ServerError.
func (c *Client) Exchange(ctx context.Context, params url.Values) (*TokenResponse, error) {
	const op = "token"
	grant := params.Get("grant_type")

	status, body, err := c.postForm(ctx, op, c.endpoints.TokenURL, params)
	if err != nil {
		metrics.TokenRequests.WithLabelValues(grant, metrics.OutcomeTransportError).Inc()
		return nil, err
	}
	var resp TokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		metrics.TokenRequests.WithLabelValues(grant, metrics.OutcomeServerError).Inc()
		return nil, &ServerError{Endpoint: op, StatusCode: status, Body: truncate(body), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	resp.StatusCode = status
	metrics.TokenRequests.WithLabelValues(grant, classify(&resp)).Inc()
	c.log.Debugw("Token endpoint responded", "grant", grant, "status", status, "error", resp.Error)
	return &resp, nil
}

func (c *Client) postForm(ctx context.Context, op, endpoint string, values url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(values.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, ctxErr
		}
		return 0, nil, &TransportError{Endpoint: op, Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &TransportError{Endpoint: op, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	return resp.StatusCode, body, nil
}

func classify(resp *TokenResponse) string {
	switch {
	case resp.AccessToken != "":
		return metrics.OutcomeSuccess
	case resp.Error == CodeAuthorizationPending:
		return metrics.OutcomePending
	case resp.Error == CodeSlowDown:
		return metrics.OutcomeSlowDown
	case resp.Error != "":
		return metrics.OutcomeError
	default:
		return metrics.OutcomeServerError
	}
}

func truncate(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}

// NewHTTPClient builds a client with the given trust settings and a 30s timeout.
func NewHTTPClient(caFile string, insecure bool) (*http.Client, error) {
	tlsConfig, err := loadTLSConfig(caFile, insecure)
	if err != nil {
		return nil, err
	}
	return &http.Client{Transport: &http.Transport{TLSClientConfig: tlsConfig}, Timeout: 30 * time.Second}, nil
}

func loadTLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: insecure} //nolint:gosec // opt-in via insecure-skip-tls-verify
	if caFile == "" {
		return tlsConfig, nil
	}
	data, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(data); !ok {
		return nil, errors.New("failed to parse CA file")
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
