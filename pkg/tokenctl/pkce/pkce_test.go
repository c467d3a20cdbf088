package pkce

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateChallengeMatchesVerifier(t *testing.T) {
	for i := 0; i < 50; i++ {
		pair, err := Generate()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(pair.Verifier)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(raw), 32)

		sum := sha256.Sum256([]byte(pair.Verifier))
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), pair.Challenge)
		assert.Equal(t, "S256", pair.Method)
	}
}

func TestGenerateIsUnique(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 200; i++ {
		pair, err := Generate()
		require.NoError(t, err)
		_, dup := seen[pair.Verifier]
		require.False(t, dup, "duplicate verifier %s", pair.Verifier)
		seen[pair.Verifier] = struct{}{}
	}
}

func TestEncodingIsURLSafe(t *testing.T) {
	// 0xfb 0xff produce '+' and '/' in standard base64.
	input := bytes.Repeat([]byte{0xfb, 0xff, 0xbf}, 11)
	require.Contains(t, base64.StdEncoding.EncodeToString(input), "+")

	encoded := Encode(input)
	assert.NotContains(t, encoded, "+")
	assert.NotContains(t, encoded, "/")
	assert.False(t, strings.HasSuffix(encoded, "="))

	for i := 0; i < 50; i++ {
		pair, err := Generate()
		require.NoError(t, err)
		for _, s := range []string{pair.Verifier, pair.Challenge} {
			assert.NotContains(t, s, "+")
			assert.NotContains(t, s, "/")
			assert.NotContains(t, s, "=")
		}
	}
}

func TestChallengeKnownVector(t *testing.T) {
	// RFC 7636 Appendix B.
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		Challenge("dBjjuSRMpC7gaKdgN93gRd1s6ZQfVVeNE2J3tGFl-M4"))
}

func TestGeneratorDeterministicSource(t *testing.T) {
	gen := Generator{Rand: bytes.NewReader(bytes.Repeat([]byte{0x01}, 64))}
	pair, err := gen.Generate()
	require.NoError(t, err)
	assert.Equal(t, Encode(bytes.Repeat([]byte{0x01}, 32)), pair.Verifier)
	assert.Equal(t, Challenge(pair.Verifier), pair.Challenge)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGeneratorErrors(t *testing.T) {
	gen := Generator{Rand: failingReader{}}

	_, err := gen.Generate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate code verifier")

	_, err = gen.NewState()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to generate state")

	short := Generator{Rand: bytes.NewReader([]byte{1, 2, 3})}
	_, err = short.Generate()
	require.Error(t, err)
}

func TestNewState(t *testing.T) {
	a, err := NewState()
	require.NoError(t, err)
	b, err := NewState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
