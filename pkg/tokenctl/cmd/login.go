package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/tokenctl/pkg/tokenctl/browser"
	"github.com/telekom/tokenctl/pkg/tokenctl/flow"
	"github.com/telekom/tokenctl/pkg/tokenctl/oauth"
	"github.com/telekom/tokenctl/pkg/tokenctl/output"
	"github.com/telekom/tokenctl/pkg/version"
)

func NewBrowserCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browser",
		Short: "Login through the browser with the authorization code flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.flushMetrics()

			ctx := cmd.Context()
			if rt.cfg.Settings.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, rt.cfg.Settings.Timeout)
				defer cancel()
			}
			client, identity, err := rt.newClient(ctx)
			if err != nil {
				return err
			}

			f := &flow.AuthCodeFlow{
				Identity:        identity,
				AuthorizeURL:    client.Endpoints().AuthorizeURL,
				Scopes:          rt.cfg.Client.Scopes,
				ExtraAuthParams: rt.cfg.Client.ExtraAuthParams,
				Exchanger:       client,
				Out:             rt.Prompt(),
				Clock:           rt.clock,
				Log:             rt.Logger(),
			}
			if !rt.cfg.Settings.NoBrowser {
				f.OpenBrowser = rt.openBrowser
				if f.OpenBrowser == nil {
					f.OpenBrowser = browser.New(rt.Logger()).Open
				}
			}
			result, err := f.Run(ctx)
			if err != nil {
				return fmt.Errorf("browser login failed: %w", err)
			}
			return rt.writeResult(result)
		},
	}
}

func NewDeviceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Login on another device with the device authorization flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.flushMetrics()

			ctx := cmd.Context()
			client, identity, err := rt.newClient(ctx)
			if err != nil {
				return err
			}

			f := &flow.DeviceFlow{
				Identity:  identity,
				Initiator: client,
				Exchanger: client,
				Out:       rt.Prompt(),
				MaxWait:   rt.cfg.Settings.MaxPollDuration,
				Clock:     rt.clock,
				Log:       rt.Logger(),
			}
			if !rt.cfg.Settings.NoQR {
				f.RenderQR = output.WriteQR
			}
			result, err := f.Run(ctx)
			if err != nil {
				return fmt.Errorf("device login failed: %w", err)
			}
			return rt.writeResult(result)
		},
	}
}

// newClient resolves the endpoints, which may involve OIDC discovery, and
// builds the token endpoint client.
func (rt *runtimeState) newClient(ctx context.Context) (*oauth.Client, oauth.ClientIdentity, error) {
	identity, err := rt.cfg.Identity()
	if err != nil {
		return nil, oauth.ClientIdentity{}, err
	}
	httpClient, err := oauth.NewHTTPClient(rt.cfg.Server.CAFile, rt.cfg.Server.InsecureSkipTLSVerify)
	if err != nil {
		return nil, oauth.ClientIdentity{}, err
	}
	endpoints, err := rt.cfg.ResolveEndpoints(ctx, httpClient)
	if err != nil {
		return nil, oauth.ClientIdentity{}, err
	}
	rt.Logger().Debugw("Resolved endpoints",
		"authorize", endpoints.AuthorizeURL, "token", endpoints.TokenURL, "device", endpoints.DeviceAuthorizationURL)

	client, err := oauth.NewClient(endpoints,
		oauth.WithHTTPClient(httpClient),
		oauth.WithUserAgent(version.UserAgent()),
		oauth.WithScopes(rt.cfg.Client.Scopes),
		oauth.WithLogger(rt.Logger()),
	)
	if err != nil {
		return nil, oauth.ClientIdentity{}, err
	}
	return client, identity, nil
}

func (rt *runtimeState) writeResult(result *flow.LoginResult) error {
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	claims := output.UnverifiedClaims(result.Token.AccessToken)
	rt.Logger().Infow("Authenticated", "subject", output.Subject(claims), "expiry", result.Token.Expiry)
	if rt.cfg != nil && rt.cfg.Settings.Copy {
		copyToken := rt.clipboard
		if copyToken == nil {
			copyToken = output.CopyToken
		}
		if err := copyToken(result.Token.AccessToken); err != nil {
			rt.Logger().Warnw("Token not copied", "error", err)
		} else {
			rt.Logger().Info("Access token copied to clipboard")
		}
	}
	return output.WriteToken(rt.Writer(), format, result.Token)
}
