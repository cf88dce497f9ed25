package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/agentbridge/agentbridge/internal/config"
)

// newReloadPolicyCmd triggers a running instance's policy hot-reload over
// HTTP, the operator-facing counterpart to the SIGHUP handler in serve.go
// for deployments where sending signals to the server process isn't
// convenient (e.g. it runs in a container the operator doesn't shell into).
// The admin endpoint sits behind the same bearer-auth pipeline as every
// other route, so when the operator's identity provider issues machine
// credentials via OAuth2 client-credentials, this command can fetch its own
// token instead of requiring a human to paste one in.
func newReloadPolicyCmd(configPath *string) *cobra.Command {
	var addr, tokenURL, clientID, clientSecret string
	cmd := &cobra.Command{
		Use:   "reload-policy",
		Short: "trigger a hot reload of the ACL policy on a running instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := addr
			if target == "" {
				cfg, err := config.Load(*configPath)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				target = "http://localhost" + cfg.HTTP.ListenAddr
			}

			httpClient := &http.Client{Timeout: 5 * time.Second}
			if tokenURL != "" {
				oauthCfg := clientcredentials.Config{
					ClientID:     clientID,
					ClientSecret: clientSecret,
					TokenURL:     tokenURL,
				}
				httpClient = oauthCfg.Client(context.Background())
				httpClient.Timeout = 5 * time.Second
			}

			resp, err := httpClient.Post(target+"/api/v1/admin/policy/reload", "application/json", nil)
			if err != nil {
				return fmt.Errorf("reload request failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("reload request returned status %d", resp.StatusCode)
			}
			fmt.Println("policy reloaded")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "base URL of a running agentbridged instance (defaults to the configured listen address)")
	cmd.Flags().StringVar(&tokenURL, "oauth-token-url", "", "OAuth2 client-credentials token endpoint; when set, a token is fetched and sent as a bearer credential")
	cmd.Flags().StringVar(&clientID, "oauth-client-id", "", "OAuth2 client id for --oauth-token-url")
	cmd.Flags().StringVar(&clientSecret, "oauth-client-secret", "", "OAuth2 client secret for --oauth-token-url")
	return cmd
}
