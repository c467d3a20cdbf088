package oauth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceAuthorizationDefaults(t *testing.T) {
	d := &DeviceAuthorization{VerificationURI: "http://x/device", UserCode: "U"}
	assert.Equal(t, DefaultPollInterval, d.PollInterval())
	assert.Zero(t, d.Lifetime())
	assert.Equal(t, "http://x/device", d.VerificationURL())
}

func TestTokenResponseToken(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	resp := &TokenResponse{AccessToken: "T", TokenType: "bearer", ExpiresIn: 60, IDToken: "id", Scope: "openid"}
	tok := resp.Token(now)
	assert.Equal(t, "T", tok.AccessToken)
	assert.Equal(t, now.Add(time.Minute), tok.Expiry)
	assert.Equal(t, "id", tok.Extra("id_token"))
	assert.Equal(t, "openid", tok.Extra("scope"))

	bare := (&TokenResponse{AccessToken: "T"}).Token(now)
	assert.True(t, bare.Expiry.IsZero())
}

func TestProviderErrorIs(t *testing.T) {
	tests := []struct {
		code   string
		target error
	}{
		{CodeAuthorizationPending, ErrAuthorizationPending},
		{CodeSlowDown, ErrSlowDown},
		{CodeAccessDenied, ErrAccessDenied},
		{CodeExpiredToken, ErrExpiredToken},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := error(&ProviderError{Code: tt.code})
			assert.ErrorIs(t, err, tt.target)
			assert.NotErrorIs(t, err, ErrServer)
		})
	}
	assert.False(t, errors.Is(&ProviderError{Code: "invalid_grant"}, ErrAccessDenied))
}

func TestServerErrorWrapsProviderError(t *testing.T) {
	err := error(&ServerError{Endpoint: "token", StatusCode: 400, Err: &ProviderError{Code: CodeAccessDenied}})
	assert.ErrorIs(t, err, ErrServer)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, "token request failed (400): access_denied", err.Error())

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, CodeAccessDenied, providerErr.Code)

	bodyOnly := &ServerError{Endpoint: "token", Body: "oops"}
	assert.Equal(t, "token request failed: oops", bodyOnly.Error())
}

func TestTransportError(t *testing.T) {
	inner := errors.New("connection refused")
	err := error(&TransportError{Endpoint: "token", Err: inner})
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "token request failed: connection refused", err.Error())
}
