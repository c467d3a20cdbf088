package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telekom/tokenctl/pkg/metrics"
	"github.com/telekom/tokenctl/pkg/system"
	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
	"github.com/telekom/tokenctl/pkg/tokenctl/pkce"
)

// SlowDownStep is added to the polling interval on every slow_down answer.
const SlowDownStep = 5 * time.Second

// DeviceFlow obtains a token for a user who approves the request on a second
// device.
//
//	Idle -> Displaying -> Polling -> Done | Failed | Expired
type DeviceFlow struct {
	Identity  oauth.ClientIdentity
	Initiator Initiator
	Exchanger Exchanger

	Out      io.Writer
	// RenderQR draws content as a QR code on w. Nil disables the QR code.
	RenderQR func(w io.Writer, content string)

	// MaxWait caps polling below the advertised expires_in. Zero means the
	// device code lifetime alone bounds the flow.
	MaxWait time.Duration

	Clock         Clock
	NewPKCE       func() (pkce.Pair, error)
	OnStateChange func(State)
	Log           *zap.SugaredLogger
}

func (f *DeviceFlow) validate() error {
	if f.Identity.ClientID == "" {
		return errors.New("client id is required")
	}
	if f.Initiator == nil {
		return errors.New("device authorization initiator is required")
	}
	if f.Exchanger == nil {
		return errors.New("token exchanger is required")
	}
	return nil
}

// Run executes one attempt: initiate, display, then poll until a terminal
// answer, expiry or cancellation of ctx.
func (f *DeviceFlow) Run(ctx context.Context) (*LoginResult, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	log := system.LoggerOrNop(f.Log).With("flow", NameDevice, "flowID", uuid.NewString())
	clk := clockOrReal(f.Clock)
	t := newTracker(log, f.OnStateChange)

	start := clk.Now()
	result, err := f.run(ctx, t, log, clk)
	observe(NameDevice, start, clk.Now(), err)
	switch {
	case errors.Is(err, ErrExpired):
		t.enter(StateExpired)
		return nil, err
	case err != nil:
		t.enter(StateFailed)
		log.Debugw("Device flow failed", "error", err)
		return nil, err
	}
	t.enter(StateDone)
	return result, nil
}

func (f *DeviceFlow) run(ctx context.Context, t *tracker, log *zap.SugaredLogger, clk Clock) (*LoginResult, error) {
	newPKCE := f.NewPKCE
	if newPKCE == nil {
		newPKCE = pkce.Generate
	}
	pair, err := newPKCE()
	if err != nil {
		return nil, err
	}

	auth, err := f.Initiator.InitiateDeviceAuthorization(ctx, f.Identity.ClientID, pair.Challenge)
	if err != nil {
		return nil, fmt.Errorf("device authorization failed: %w", err)
	}

	t.enter(StateDisplaying)
	f.display(auth)

	interval := auth.PollInterval()
	deadline := f.deadline(clk.Now(), auth)
	log.Debugw("Polling token endpoint", "interval", interval, "deadline", deadline)

	params := url.Values{}
	params.Set("grant_type", oauth.GrantDeviceCode)
	params.Set("device_code", auth.DeviceCode)
	params.Set("client_id", f.Identity.ClientID)
	params.Set("code_verifier", pair.Verifier)
	if f.Identity.ClientSecret != "" {
		params.Set("client_secret", f.Identity.ClientSecret)
	}

	t.enter(StatePolling)
	for poll := 1; ; poll++ {
		if err := sleep(ctx, clk, interval); err != nil {
			metrics.DevicePolls.WithLabelValues(metrics.OutcomeCanceled).Inc()
			return nil, err
		}
		if !deadline.IsZero() && !clk.Now().Before(deadline) {
			metrics.DevicePolls.WithLabelValues(metrics.OutcomeExpired).Inc()
			return nil, ErrExpired
		}

		resp, err := f.Exchanger.Exchange(ctx, params)
		if err != nil {
			metrics.DevicePolls.WithLabelValues(metrics.OutcomeError).Inc()
			return nil, err
		}

		switch {
		case resp.AccessToken != "":
			metrics.DevicePolls.WithLabelValues(metrics.OutcomeSuccess).Inc()
			log.Debugw("Device authorization granted", "polls", poll)
			return tokenResult(resp, clk.Now())
		case resp.Error == oauth.CodeAuthorizationPending:
			metrics.DevicePolls.WithLabelValues(metrics.OutcomePending).Inc()
			log.Debugw("Authorization pending", "poll", poll)
		case resp.Error == oauth.CodeSlowDown:
			metrics.DevicePolls.WithLabelValues(metrics.OutcomeSlowDown).Inc()
			interval += SlowDownStep
			log.Infow("Server asked to slow down", "interval", interval)
		default:
			metrics.DevicePolls.WithLabelValues(metrics.OutcomeError).Inc()
			return tokenResult(resp, clk.Now())
		}
	}
}

func (f *DeviceFlow) deadline(now time.Time, auth *oauth.DeviceAuthorization) time.Time {
	bound := auth.Lifetime()
	if f.MaxWait > 0 && (bound == 0 || f.MaxWait < bound) {
		bound = f.MaxWait
	}
	if bound == 0 {
		return time.Time{}
	}
	return now.Add(bound)
}

// display prints the verification URL exactly once, followed by the QR code
// and the user code when the URL does not already embed it.
func (f *DeviceFlow) display(auth *oauth.DeviceAuthorization) {
	out := writerOrDiscard(f.Out)
	target := auth.VerificationURL()
	_, _ = fmt.Fprintf(out, "To sign in, open the following URL on any device:\n%s\n", target)
	if f.RenderQR != nil && target != "" {
		f.RenderQR(out, target)
	}
	if auth.VerificationURIComplete == "" && auth.UserCode != "" {
		_, _ = fmt.Fprintf(out, "and enter the code: %s\n", auth.UserCode)
	}
}

func sleep(ctx context.Context, clk Clock, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
