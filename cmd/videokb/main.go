package main

import (
	"fmt"
	"os"

	"github.com/coursewise/videokb/internal/cli"
	"github.com/coursewise/videokb/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "videokb",
		Short: "VideoKB CLI - YouTube video analysis and Q&A",
		Long: `VideoKB CLI analyzes YouTube videos and answers questions about them.

Environment variables:
  VIDEOKB_API_KEY   API key for authentication (required)
  VIDEOKB_API_URL   API base URL (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key for authentication (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.AnalyzeCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.GetCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.QuestionsCmd())
	rootCmd.AddCommand(client.AuthCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
