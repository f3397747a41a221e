package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/authlab/oidc-lab/pkg/oidc"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
)

var consumerFlags struct {
	issuer       string
	clientID     string
	clientSecret string
	listen       string
	scopes       string
}

var consumerCmd = &cobra.Command{
	Use:   "consumer",
	Short: "Run a relying party against a provider",
	Run: func(cmd *cobra.Command, args []string) {
		redirectURI := fmt.Sprintf("http://localhost%s/cb", consumerFlags.listen)
		client := oidc.NewClient(&oidc.Config{
			Issuer:       consumerFlags.issuer,
			ClientID:     consumerFlags.clientID,
			ClientSecret: consumerFlags.clientSecret,
			RedirectURI:  redirectURI,
			Scopes:       strings.Fields(consumerFlags.scopes),
		})

		state := ksuid.New().String()
		nonce := ksuid.New().String()

		authURL, err := client.AuthCodeURL(context.Background(), state, nonce)
		if err != nil {
			slog.Error("unable to build authorization URL", "error", err)
			os.Exit(1)
		}

		fmt.Println("open the following URL in a browser:")
		fmt.Println(authURL)

		root := echo.New()
		root.HideBanner = true
		root.GET("/cb", func(c echo.Context) error {
			go func() {
				time.Sleep(time.Second)
				root.Shutdown(context.Background())
			}()

			if errorCode := c.QueryParam("error"); errorCode != "" {
				return c.String(http.StatusOK, fmt.Sprintf("error: %s, details: %s",
					errorCode, c.QueryParam("error_description")))
			}
			if c.QueryParam("state") != state {
				return c.String(http.StatusOK, "error: state mismatch")
			}

			set, err := client.AuthorizationCodeFlow(c.Request().Context(), c.QueryParam("code"))
			if err != nil {
				return c.String(http.StatusOK, fmt.Sprintf("error: %v", err))
			}
			if set.IDToken != nil && set.IDToken.Nonce != nonce {
				return c.String(http.StatusOK, "error: nonce mismatch")
			}

			slog.Info("authorization code flow completed", "userinfo", set.Userinfo)
			return c.String(http.StatusOK, fmt.Sprintf("logged in: %v", set.Userinfo))
		})

		if err := root.Start(consumerFlags.listen); err != nil && err != http.ErrServerClosed {
			slog.Error("consumer stopped", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	consumerCmd.Flags().StringVar(&consumerFlags.issuer, "issuer", "http://localhost:8080", "provider issuer URL")
	consumerCmd.Flags().StringVar(&consumerFlags.clientID, "client-id", "abc123", "client identifier")
	consumerCmd.Flags().StringVar(&consumerFlags.clientSecret, "client-secret", "secret1", "client secret")
	consumerCmd.Flags().StringVar(&consumerFlags.listen, "listen", ":3001", "callback listen address")
	consumerCmd.Flags().StringVar(&consumerFlags.scopes, "scope", "openid profile", "requested scopes")
	rootCmd.AddCommand(consumerCmd)
}
