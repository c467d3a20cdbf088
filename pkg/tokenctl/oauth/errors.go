package oauth

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes defined by RFC 6749 §5.2 and RFC 8628 §3.5.
const (
	CodeAuthorizationPending = "authorization_pending"
	CodeSlowDown             = "slow_down"
	CodeAccessDenied         = "access_denied"
	CodeExpiredToken         = "expired_token"
)

var (
	ErrAuthorizationPending = errors.New("authorization pending")
	ErrSlowDown             = errors.New("slow down")
	ErrAccessDenied         = errors.New("access denied")
	ErrExpiredToken         = errors.New("device code expired")

	// ErrServer matches every *ServerError.
	ErrServer = errors.New("unexpected response from authorization server")
	// ErrTransport matches every *TransportError.
	ErrTransport = errors.New("authorization server unreachable")
)

// ProviderError is an OAuth error reported by the server, either in a JSON
// body or as redirect query parameters.
type ProviderError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	URI         string `json:"error_uri,omitempty"`
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return e.Code
}

func (e *ProviderError) Is(target error) bool {
	switch target {
	case ErrAuthorizationPending:
		return e.Code == CodeAuthorizationPending
	case ErrSlowDown:
		return e.Code == CodeSlowDown
	case ErrAccessDenied:
		return e.Code == CodeAccessDenied
	case ErrExpiredToken:
		return e.Code == CodeExpiredToken
	}
	return false
}

// ServerError is returned for responses outside the expected shape: non-JSON
// bodies, unexpected status codes or missing required fields.
type ServerError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ServerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Endpoint)
	b.WriteString(" request failed")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (%d)", e.StatusCode)
	}
	switch {
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Body != "":
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *ServerError) Unwrap() error { return e.Err }

func (e *ServerError) Is(target error) bool { return target == ErrServer }

// TransportError wraps network level failures.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }
