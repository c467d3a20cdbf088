package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/tokenctl/pkg/metrics"
	"github.com/telekom/tokenctl/pkg/system"
	"github.com/telekom/tokenctl/pkg/tokenctl/config"
	"github.com/telekom/tokenctl/pkg/tokenctl/flow"
	"github.com/telekom/tokenctl/pkg/tokenctl/output"
)

type Config struct {
	ConfigPath   string
	// OutputWriter receives the token only.
	OutputWriter io.Writer
	// PromptWriter receives the URLs and QR codes shown to the user.
	PromptWriter io.Writer
	Context      context.Context

	// OpenBrowser, Clipboard and Clock replace the system browser, the
	// clipboard and the wall clock.
	OpenBrowser func(url string) error
	Clipboard   func(token string) error
	Clock       flow.Clock
}

type runtimeState struct {
	configPath       string
	cfg              *config.Config
	outputFormat     string
	serverOverride   string
	clientIDOverride string
	metricsFile      string
	timeout          time.Duration
	noBrowser        bool
	noQR             bool
	copyToken        bool
	verbose          bool
	writer           io.Writer
	prompt           io.Writer
	openBrowser      func(string) error
	clipboard        func(string) error
	clock            flow.Clock
	log              *zap.SugaredLogger
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		PromptWriter: os.Stderr,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:  cfg.ConfigPath,
		writer:      cfg.OutputWriter,
		prompt:      cfg.PromptWriter,
		openBrowser: cfg.OpenBrowser,
		clipboard:   cfg.Clipboard,
		clock:       cfg.Clock,
	}

	root := &cobra.Command{
		Use:          "tokenctl",
		Short:        "Obtain OAuth 2.0 access tokens from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			explicit := cmd.Flags().Changed("config")
			if !explicit {
				if env := os.Getenv("TOKENCTL_CONFIG"); env != "" {
					rt.configPath = env
					explicit = true
				}
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("TOKENCTL_OUTPUT")
			}
			if rt.serverOverride == "" {
				rt.serverOverride = os.Getenv("TOKENCTL_SERVER")
			}
			if rt.clientIDOverride == "" {
				rt.clientIDOverride = os.Getenv("TOKENCTL_CLIENT_ID")
			}
			if !rt.noBrowser {
				rt.noBrowser = strings.EqualFold(os.Getenv("TOKENCTL_NO_BROWSER"), "true")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("TOKENCTL_VERBOSE"), "true")
			}
			rt.log = system.NewLogger(rt.verbose)

			if skipsConfig(cmd) {
				return nil
			}

			loaded, err := config.LoadOrDefault(rt.configPath, explicit)
			if err != nil {
				return err
			}
			rt.apply(loaded, cmd)
			if err := loaded.Validate(); err != nil {
				return err
			}
			rt.cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: text, json, yaml")
	root.PersistentFlags().StringVar(&rt.serverOverride, "server", "", "Authorization server base URL override")
	root.PersistentFlags().StringVar(&rt.clientIDOverride, "client-id", "", "OAuth client id override")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging on stderr")
	root.PersistentFlags().BoolVar(&rt.noBrowser, "no-browser", false, "Print the authorization URL without opening a browser")
	root.PersistentFlags().BoolVar(&rt.noQR, "no-qr", false, "Do not render the device verification QR code")
	root.PersistentFlags().BoolVar(&rt.copyToken, "copy", false, "Also copy the access token to the clipboard")
	root.PersistentFlags().DurationVar(&rt.timeout, "timeout", 0, "Maximum time to wait for the browser callback")
	root.PersistentFlags().StringVar(&rt.metricsFile, "metrics-file", "", "Write flow metrics in Prometheus text format to this file")

	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	root.SetContext(context.WithValue(base, runtimeKey{}, rt))

	root.AddCommand(
		NewBrowserCommand(),
		NewDeviceCommand(),
		NewConfigCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

// skipsConfig reports whether cmd runs without loading the config file.
func skipsConfig(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "completion":
		return true
	case "init":
		return cmd.HasParent() && cmd.Parent().Name() == "config"
	}
	return false
}

// apply layers flag and env overrides on top of the loaded file.
func (rt *runtimeState) apply(cfg *config.Config, cmd *cobra.Command) {
	if rt.serverOverride != "" {
		cfg.Server.BaseURL = rt.serverOverride
		cfg.Server.Issuer = ""
	}
	if rt.clientIDOverride != "" {
		cfg.Client.ClientID = rt.clientIDOverride
	}
	if rt.outputFormat != "" {
		cfg.Settings.OutputFormat = rt.outputFormat
	}
	if rt.noBrowser {
		cfg.Settings.NoBrowser = true
	}
	if rt.noQR {
		cfg.Settings.NoQR = true
	}
	if rt.copyToken {
		cfg.Settings.Copy = true
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Settings.Timeout = rt.timeout
	}
	if rt.metricsFile != "" {
		cfg.Settings.MetricsFile = rt.metricsFile
	}
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	if rt.outputFormat != "" {
		return output.ParseFormat(rt.outputFormat)
	}
	if rt.cfg != nil {
		return output.ParseFormat(rt.cfg.Settings.OutputFormat)
	}
	return output.FormatText, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Prompt() io.Writer {
	if rt.prompt != nil {
		return rt.prompt
	}
	return os.Stderr
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	return system.LoggerOrNop(rt.log)
}

// flushMetrics writes the metrics textfile if one is configured. Failures
// are logged and never change the command result.
func (rt *runtimeState) flushMetrics() {
	if rt.cfg == nil || rt.cfg.Settings.MetricsFile == "" {
		return
	}
	if err := metrics.WriteTextfile(rt.cfg.Settings.MetricsFile); err != nil {
		rt.Logger().Warnw("Failed to write metrics file", "path", rt.cfg.Settings.MetricsFile, "error", err)
	}
}
