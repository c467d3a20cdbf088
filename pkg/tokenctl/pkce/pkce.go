package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
)

const (
	// MethodS256 is the only challenge method advertised to the server.
	MethodS256 = "S256"

	// VerifierBytes is the amount of entropy behind each code verifier.
	VerifierBytes = 32
	stateBytes    = 24
)

// Pair is a code verifier and the challenge derived from it.
type Pair struct {
	Verifier  string
	Challenge string
	Method    string
}

// Generator produces PKCE pairs and state nonces from a random source.
// The zero value reads from crypto/rand.
type Generator struct {
	Rand io.Reader
}

// Generate returns a fresh pair read from crypto/rand.
func Generate() (Pair, error) {
	return Generator{}.Generate()
}

// NewState returns a fresh state nonce read from crypto/rand.
func NewState() (string, error) {
	return Generator{}.NewState()
}

func (g Generator) Generate() (Pair, error) {
	verifier, err := g.randomToken(VerifierBytes)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return Pair{
		Verifier:  verifier,
		Challenge: Challenge(verifier),
		Method:    MethodS256,
	}, nil
}

func (g Generator) NewState() (string, error) {
	state, err := g.randomToken(stateBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return state, nil
}

// Challenge computes base64url(SHA-256(verifier)) without padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return Encode(sum[:])
}

// Encode is base64url without padding.
func Encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func (g Generator) randomToken(length int) (string, error) {
	src := g.Rand
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(src, buf); err != nil {
		return "", err
	}
	return Encode(buf), nil
}
