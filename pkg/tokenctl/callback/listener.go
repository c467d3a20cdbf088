package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
)

// DefaultPath is the redirect path served by the listener.
const DefaultPath = "/callback"

const shutdownTimeout = 5 * time.Second

var (
	// ErrMissingCode is returned when the redirect carries neither a code
	// nor an error parameter.
	ErrMissingCode = errors.New("missing code in callback")
	// ErrStateMismatch is returned when a code arrives with a state other
	// than the one issued for this attempt.
	ErrStateMismatch = errors.New("invalid state in callback")
)

// Result is a successfully received redirect.
type Result struct {
	Code  string
	State string
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}

type outcome struct {
	result *Result
	err    error
}

// Listener accepts exactly one request on its redirect path and then
// releases the socket. Requests to other paths receive 404 and do not count.
type Listener struct {
	ln     net.Listener
	extra  []net.Listener
	server *http.Server
	path   string
	state  string
	log    *zap.SugaredLogger

	handled   atomic.Bool
	results   chan outcome
	serveErr  chan error
	closeOnce sync.Once
	closeErr  error
}

type Option func(*Listener)

// WithState makes the listener reject callbacks whose state differs.
func WithState(state string) Option {
	return func(l *Listener) { l.state = state }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(l *Listener) {
		if log != nil {
			l.log = log
		}
	}
}

// Listen binds addr (host:port, port 0 picks an ephemeral port) and starts
// serving path.
func Listen(addr, path string, opts ...Option) (*Listener, error) {
	if path == "" {
		path = DefaultPath
	}
	l := &Listener{
		path:     path,
		log:      zap.NewNop().Sugar(),
		results:  make(chan outcome, 1),
		serveErr: make(chan error, 1),
	}
	for _, opt := range opts {
		opt(l)
	}

	if err := l.bind(addr); err != nil {
		return nil, fmt.Errorf("failed to start callback listener: %w", err)
	}

	zl := l.log.Desugar()
	engine := gin.New()
	engine.Use(
		// The callback query carries the authorization code; only stray
		// requests are access-logged.
		ginzap.GinzapWithConfig(zl, &ginzap.Config{TimeFormat: time.RFC3339, UTC: true, SkipPaths: []string{path}}),
		ginzap.RecoveryWithZap(zl, true),
	)
	engine.GET(path, l.handleCallback)

	l.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, ln := range append([]net.Listener{l.ln}, l.extra...) {
		go l.serve(ln)
	}
	l.log.Debugw("Callback listener started", "addr", l.ln.Addr().String(), "path", path)
	return l, nil
}

// bind listens on addr. A localhost host binds both the IPv4 and the IPv6
// loopback on one port; IPv6 is skipped when ::1 is unavailable.
func (l *Listener) bind(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	if host != "localhost" {
		l.ln, err = net.Listen("tcp", addr)
		return err
	}

	l.ln, err = net.Listen("tcp", net.JoinHostPort("127.0.0.1", port))
	if err != nil {
		return err
	}
	bound := strconv.Itoa(l.ln.Addr().(*net.TCPAddr).Port)
	v6, err := net.Listen("tcp", net.JoinHostPort("::1", bound))
	if err != nil {
		l.log.Debugw("IPv6 loopback unavailable", "port", bound, "error", err)
		return nil
	}
	l.extra = append(l.extra, v6)
	return nil
}

func (l *Listener) serve(ln net.Listener) {
	if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		select {
		case l.serveErr <- err:
		default:
		}
	}
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// RedirectURI returns the URI served by the listener with the bound port
// substituted into base. base may be empty.
func (l *Listener) RedirectURI(base string) (string, error) {
	port := strconv.Itoa(l.ln.Addr().(*net.TCPAddr).Port)
	if base == "" {
		return "http://" + net.JoinHostPort("127.0.0.1", port) + l.path, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URI: %w", err)
	}
	u.Host = net.JoinHostPort(u.Hostname(), port)
	return u.String(), nil
}

// Wait blocks until the callback arrives, ctx is done or the server fails.
// The listener is closed on every return path.
func (l *Listener) Wait(ctx context.Context) (*Result, error) {
	defer func() {
		_ = l.Close()
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for callback: %w", ctx.Err())
	case err := <-l.serveErr:
		return nil, fmt.Errorf("callback server failed: %w", err)
	case out := <-l.results:
		return out.result, out.err
	}
}

// Close stops the server and releases the socket. It is safe to call more
// than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := l.server.Shutdown(ctx); err != nil {
			l.closeErr = l.server.Close()
		}
		// Serve may not have adopted the listeners yet.
		for _, ln := range append([]net.Listener{l.ln}, l.extra...) {
			if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) && l.closeErr == nil {
				l.closeErr = err
			}
		}
		l.log.Debugw("Callback listener stopped", "addr", l.ln.Addr().String())
	})
	return l.closeErr
}

func (l *Listener) handleCallback(c *gin.Context) {
	if !l.handled.CompareAndSwap(false, true) {
		c.String(http.StatusGone, "callback already received")
		return
	}

	query := c.Request.URL.Query()
	var out outcome
	switch {
	case query.Get("error") != "":
		out.err = &oauth.ProviderError{
			Code:        query.Get("error"),
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
		}
	case query.Get("code") == "":
		out.err = ErrMissingCode
	case l.state != "" && query.Get("state") != l.state:
		out.err = ErrStateMismatch
	default:
		out.result = &Result{Code: query.Get("code"), State: query.Get("state")}
	}

	if out.err != nil {
		l.log.Warnw("Rejected authorization callback", "error", out.err)
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8", failurePage(out.err))
	} else {
		l.log.Debug("Received authorization code")
		c.Data(http.StatusOK, "text/html; charset=utf-8", successPage())
	}
	l.results <- out
}
