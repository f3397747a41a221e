package main

import (
	"log/slog"
	"os"

	"github.com/authlab/oidc-lab/pkg/provider"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

var providerFlags struct {
	addr        string
	issuer      string
	configPath  string
	autoApprove bool
}

var providerCmd = &cobra.Command{
	Use:   "provider",
	Short: "Run the authorization server",
	Run: func(cmd *cobra.Command, args []string) {
		opts := []provider.Option{
			provider.WithIssuer(providerFlags.issuer),
		}

		if providerFlags.configPath != "" {
			opts = append(opts, provider.WithConfigFile(providerFlags.configPath))
		} else {
			opts = append(opts, demoFixtures()...)
		}
		if providerFlags.autoApprove {
			opts = append(opts, provider.WithAutoApprove())
		}

		server, err := provider.New(opts...)
		if err != nil {
			slog.Error("unable to create provider", "error", err)
			os.Exit(1)
		}

		root := echo.New()
		root.HideBanner = true
		server.MountRoutes(root)

		slog.Info("starting provider", "addr", providerFlags.addr, "issuer", providerFlags.issuer)
		if err := root.Start(providerFlags.addr); err != nil {
			slog.Error("provider stopped", "error", err)
			os.Exit(1)
		}
	},
}

// demoFixtures seeds the well-known development clients and users used
// throughout the docs and the consumer command.
func demoFixtures() []provider.Option {
	return []provider.Option{
		provider.WithClients(
			&provider.Client{ID: "1", ClientID: "abc123", ClientSecret: "secret1", Name: "Example App"},
			&provider.Client{ID: "2", ClientID: "xyz123", ClientSecret: "secret2", Name: "Example App 2"},
		),
		provider.WithUsers(
			&provider.User{ID: "1", Username: "bob", Password: "secret", Name: "Bob Smith"},
			&provider.User{ID: "2", Username: "joe", Password: "password", Name: "Joe Davis"},
		),
	}
}

func init() {
	providerCmd.Flags().StringVar(&providerFlags.addr, "addr", ":8080", "listen address")
	providerCmd.Flags().StringVar(&providerFlags.issuer, "issuer", "http://localhost:8080", "issuer URL")
	providerCmd.Flags().StringVar(&providerFlags.configPath, "config", "", "YAML config with clients and users")
	providerCmd.Flags().BoolVar(&providerFlags.autoApprove, "auto-approve", false, "grant every authenticated request without a consent dialog")
	rootCmd.AddCommand(providerCmd)
}
