package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/joho/godotenv/autoload"
)

var version = "dev" // Will be set during build

var rootCmd = &cobra.Command{
	Use:   "composehook",
	Short: "Webhook-triggered docker compose deployments",
	Long: `Composehook is a minimal webhook listener for automated docker compose deployments.

An authenticated POST pulls the latest images and recreates the stack defined
by a single compose file. All configuration comes from environment variables,
optionally loaded from a .env file in the working directory.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}
