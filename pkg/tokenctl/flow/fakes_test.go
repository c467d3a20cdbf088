package flow

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	testclock "k8s.io/utils/clock/testing"

	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
)

var epoch = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// steppingClock advances the fake clock by exactly the requested duration
// every time a flow sleeps, and records the durations.
type steppingClock struct {
	*testclock.FakeClock

	mu    sync.Mutex
	waits []time.Duration
}

func newSteppingClock() *steppingClock {
	return &steppingClock{FakeClock: testclock.NewFakeClock(epoch)}
}

func (c *steppingClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := c.FakeClock.After(d)
	c.FakeClock.Step(d)
	return ch
}

func (c *steppingClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

type fakeInitiator struct {
	auth *oauth.DeviceAuthorization
	err  error

	clientID  string
	challenge string
}

func (f *fakeInitiator) InitiateDeviceAuthorization(_ context.Context, clientID, codeChallenge string) (*oauth.DeviceAuthorization, error) {
	f.clientID = clientID
	f.challenge = codeChallenge
	if f.err != nil {
		return nil, f.err
	}
	return f.auth, nil
}

// scriptedExchanger answers polls in order and repeats the last answer.
type scriptedExchanger struct {
	mu        sync.Mutex
	responses []*oauth.TokenResponse
	err       error
	calls     []url.Values
}

func (s *scriptedExchanger) Exchange(_ context.Context, params url.Values) (*oauth.TokenResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("no scripted response")
	}
	idx := len(s.calls) - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func (s *scriptedExchanger) Calls() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.calls...)
}

func pending() *oauth.TokenResponse {
	return &oauth.TokenResponse{Error: oauth.CodeAuthorizationPending, StatusCode: 400}
}

func granted(token string) *oauth.TokenResponse {
	return &oauth.TokenResponse{AccessToken: token, TokenType: "Bearer", ExpiresIn: 300, StatusCode: 200}
}

func providerError(code string) *oauth.TokenResponse {
	return &oauth.TokenResponse{Error: code, StatusCode: 400}
}
