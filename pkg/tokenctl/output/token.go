package output

import (
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/oauth2"
)

// Token is the structured rendering of an issued token.
type Token struct {
	AccessToken  string         `json:"access_token" yaml:"access_token"`
	TokenType    string         `json:"token_type,omitempty" yaml:"token_type,omitempty"`
	RefreshToken string         `json:"refresh_token,omitempty" yaml:"refresh_token,omitempty"`
	IDToken      string         `json:"id_token,omitempty" yaml:"id_token,omitempty"`
	Expiry       *time.Time     `json:"expiry,omitempty" yaml:"expiry,omitempty"`
	Scope        string         `json:"scope,omitempty" yaml:"scope,omitempty"`
	Claims       map[string]any `json:"claims,omitempty" yaml:"claims,omitempty"`
}

// NewToken converts tok. Claims are decoded without signature verification
// and only when the access token is a JWT.
func NewToken(tok *oauth2.Token) Token {
	out := Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Claims:       summarize(UnverifiedClaims(tok.AccessToken)),
	}
	if !tok.Expiry.IsZero() {
		expiry := tok.Expiry.UTC()
		out.Expiry = &expiry
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	return out
}

// UnverifiedClaims returns the claims of a JWT, or nil if raw is not one.
func UnverifiedClaims(raw string) map[string]any {
	if raw == "" {
		return nil
	}
	parser := jwt.Parser{}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil
	}
	return claims
}

var summaryClaims = []string{"iss", "sub", "email", "preferred_username", "exp"}

func summarize(claims map[string]any) map[string]any {
	if claims == nil {
		return nil
	}
	out := map[string]any{}
	for _, key := range summaryClaims {
		if v, ok := claims[key]; ok {
			out[key] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Subject picks the most readable user identifier out of claims.
func Subject(claims map[string]any) string {
	for _, key := range []string{"email", "preferred_username", "sub"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// WriteToken prints tok. FormatText writes the bare access token so the
// output can be captured by a shell.
func WriteToken(w io.Writer, format Format, tok *oauth2.Token) error {
	if tok == nil {
		return fmt.Errorf("no token to write")
	}
	if format == FormatText || format == "" {
		_, err := fmt.Fprintln(w, tok.AccessToken)
		return err
	}
	return WriteObject(w, format, NewToken(tok))
}
