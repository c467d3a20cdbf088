package config

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
	"github.com/telekom/tokenctl/pkg/tokenctl/output"
)

const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultClientID     = "cli-client"
	DefaultClientSecret = "secret"
	DefaultRedirectURI  = "http://localhost:8081/callback"
	DefaultTimeout      = 5 * time.Minute
)

type Config struct {
	Client   Client   `yaml:"client"`
	Server   Server   `yaml:"server"`
	Settings Settings `yaml:"settings,omitempty"`
}

type Client struct {
	ClientID         string            `yaml:"client-id"`
	ClientSecret     string            `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string            `yaml:"client-secret-env,omitempty"`
	ClientSecretFile string            `yaml:"client-secret-file,omitempty"`
	RedirectURI      string            `yaml:"redirect-uri,omitempty"`
	Scopes           []string          `yaml:"scopes,omitempty"`
	ExtraAuthParams  map[string]string `yaml:"extra-auth-params,omitempty"`
}

type Server struct {
	BaseURL                     string `yaml:"base-url"`
	Issuer                      string `yaml:"issuer,omitempty"`
	AuthorizeEndpoint           string `yaml:"authorize-endpoint,omitempty"`
	TokenEndpoint               string `yaml:"token-endpoint,omitempty"`
	DeviceAuthorizationEndpoint string `yaml:"device-authorization-endpoint,omitempty"`
	CAFile                      string `yaml:"ca-file,omitempty"`
	InsecureSkipTLSVerify       bool   `yaml:"insecure-skip-tls-verify,omitempty"`
}

type Settings struct {
	OutputFormat    string        `yaml:"output-format,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	MaxPollDuration time.Duration `yaml:"max-poll-duration,omitempty"`
	NoBrowser       bool          `yaml:"no-browser,omitempty"`
	NoQR            bool          `yaml:"no-qr,omitempty"`
	Copy            bool          `yaml:"copy,omitempty"`
	MetricsFile     string        `yaml:"metrics-file,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Client: Client{
			ClientID:     DefaultClientID,
			ClientSecret: DefaultClientSecret,
			RedirectURI:  DefaultRedirectURI,
		},
		Server: Server{
			BaseURL: DefaultBaseURL,
		},
		Settings: Settings{
			OutputFormat: string(output.FormatText),
			Timeout:      DefaultTimeout,
		},
	}
}

// applyDefaults fills unset fields. The default client secret only applies
// when no other secret source is configured.
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Client.ClientID == "" {
		c.Client.ClientID = def.Client.ClientID
	}
	if c.Client.ClientSecret == "" && c.Client.ClientSecretEnv == "" && c.Client.ClientSecretFile == "" {
		c.Client.ClientSecret = def.Client.ClientSecret
	}
	if c.Client.RedirectURI == "" {
		c.Client.RedirectURI = def.Client.RedirectURI
	}
	if c.Server.BaseURL == "" && c.Server.Issuer == "" {
		c.Server.BaseURL = def.Server.BaseURL
	}
	if c.Settings.OutputFormat == "" {
		c.Settings.OutputFormat = def.Settings.OutputFormat
	}
	if c.Settings.Timeout == 0 {
		c.Settings.Timeout = def.Settings.Timeout
	}
}

// Load reads path. Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields DefaultConfig
// unless the path was given explicitly.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, os.ErrNotExist) {
		def := DefaultConfig()
		return &def, nil
	}
	return nil, err
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Client.ClientID) == "" {
		return errors.New("client id is required")
	}
	if err := validateRedirectURI(c.Client.RedirectURI); err != nil {
		return err
	}
	if c.Server.BaseURL == "" && c.Server.Issuer == "" && c.Server.TokenEndpoint == "" {
		return errors.New("server base-url, issuer or token-endpoint is required")
	}
	if c.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be positive: %s", c.Settings.Timeout)
	}
	if c.Settings.MaxPollDuration < 0 {
		return fmt.Errorf("max-poll-duration must be positive: %s", c.Settings.MaxPollDuration)
	}
	if _, err := output.ParseFormat(c.Settings.OutputFormat); err != nil {
		return err
	}
	return nil
}

func validateRedirectURI(raw string) error {
	if raw == "" {
		return errors.New("redirect URI is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid redirect URI: %w", err)
	}
	if u.Scheme != "http" || u.Hostname() == "" || u.Path == "" {
		return fmt.Errorf("redirect URI must be an absolute http URL with a path: %s", raw)
	}
	return nil
}

// Identity resolves the client secret and returns the client registration.
func (c *Config) Identity() (oauth.ClientIdentity, error) {
	secret, err := ResolveClientSecret(c.Client.ClientSecret, c.Client.ClientSecretEnv, c.Client.ClientSecretFile)
	if err != nil {
		return oauth.ClientIdentity{}, err
	}
	return oauth.ClientIdentity{
		ClientID:     c.Client.ClientID,
		ClientSecret: secret,
		RedirectURI:  c.Client.RedirectURI,
	}, nil
}

// overrides returns the individually configured endpoint URLs.
func (c *Config) overrides() oauth.Endpoints {
	return oauth.Endpoints{
		AuthorizeURL:           c.Server.AuthorizeEndpoint,
		TokenURL:               c.Server.TokenEndpoint,
		DeviceAuthorizationURL: c.Server.DeviceAuthorizationEndpoint,
	}
}

// ResolveEndpoints combines, in order of precedence, the explicit endpoint
// overrides, the issuer discovery document and the base URL paths.
func (c *Config) ResolveEndpoints(ctx context.Context, client *http.Client) (oauth.Endpoints, error) {
	eps := c.overrides()
	if c.Server.Issuer != "" {
		discovered, err := oauth.DiscoverEndpoints(ctx, client, c.Server.Issuer)
		if err != nil {
			return oauth.Endpoints{}, err
		}
		eps = eps.Merge(discovered)
	}
	if c.Server.BaseURL != "" {
		derived, err := oauth.EndpointsFromBase(c.Server.BaseURL)
		if err != nil {
			return oauth.Endpoints{}, err
		}
		eps = eps.Merge(derived)
	}
	if eps.TokenURL == "" {
		return oauth.Endpoints{}, errors.New("token endpoint could not be resolved")
	}
	return eps, nil
}

func ResolveClientSecret(secret, secretEnv, secretFile string) (string, error) {
	if secret != "" {
		return secret, nil
	}
	if secretEnv != "" {
		value := strings.TrimSpace(os.Getenv(secretEnv))
		if value == "" {
			return "", fmt.Errorf("client secret env var not set: %s", secretEnv)
		}
		return value, nil
	}
	if secretFile != "" {
		bytes, err := os.ReadFile(secretFile)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret file: %w", err)
		}
		return strings.TrimSpace(string(bytes)), nil
	}
	return "", nil
}
