package browser

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/skratchdot/open-golang/open"
	"go.uber.org/zap"

	"github.com/telekom/tokenctl/pkg/system"
)

var linuxBrowsers = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// ErrNoBrowser is returned when no way of opening a browser was found.
var ErrNoBrowser = errors.New("no suitable browser found")

// Opener opens URLs, first through open-golang and then through the
// platform specific commands.
type Opener struct {
	log      *zap.SugaredLogger
	run      func(string) error
	goos     string
	lookPath func(string) (string, error)
	start    func(name string, args ...string) error
}

// New returns an Opener for the running platform.
func New(log *zap.SugaredLogger) *Opener {
	return &Opener{
		log:      system.LoggerOrNop(log),
		run:      open.Run,
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		start: func(name string, args ...string) error {
			return exec.Command(name, args...).Start()
		},
	}
}

// Open opens url. The browser process is not waited for.
func (o *Opener) Open(url string) error {
	err := o.run(url)
	if err == nil {
		o.log.Debugw("Opened browser", "url", url)
		return nil
	}
	o.log.Debugw("open-golang failed, trying platform command", "error", err)

	name, args, err := command(o.goos, url, o.lookPath)
	if err != nil {
		return err
	}
	o.log.Debugw("Running browser command", "command", name)
	if err := o.start(name, args...); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

// OpenURL opens url with a default Opener.
func OpenURL(url string) error {
	return New(nil).Open(url)
}

func command(goos, url string, lookPath func(string) (string, error)) (string, []string, error) {
	switch goos {
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		for _, b := range linuxBrowsers {
			if _, err := lookPath(b); err == nil {
				return b, []string{url}, nil
			}
		}
		return "", nil, ErrNoBrowser
	default:
		return "", nil, fmt.Errorf("unsupported platform %s: %w", goos, ErrNoBrowser)
	}
}
