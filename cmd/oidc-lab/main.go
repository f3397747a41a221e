package main

import (
	"log/slog"
	"os"

	"github.com/authlab/oidc-lab/pkg/prettylog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "oidc-lab",
	Short: "OAuth2 / OpenID Connect provider and consumer",
}

func main() {
	godotenv.Load()

	if os.Getenv("PRETTY_LOGS") != "false" {
		logger := slog.New(prettylog.NewHandler(slog.LevelDebug))
		slog.SetDefault(logger)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
