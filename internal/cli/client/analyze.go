package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Analysis represents an analyzed video from the API.
type Analysis struct {
	ID              string `json:"id"`
	VideoID         string `json:"video_id"`
	URL             string `json:"url"`
	Title           string `json:"title"`
	Channel         string `json:"channel"`
	Source          string `json:"source"`
	CaptionLanguage string `json:"caption_language,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// AnalyzeCmd creates the analyze command.
func AnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <youtube_url>",
		Short: "Analyze a YouTube video",
		Long:  "Fetches the video transcript, chunks it, and indexes it for question answering.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAnalyze(args[0], outputJSON)
		},
	}

	return cmd
}

func runAnalyze(url string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post("/analyses", map[string]string{"url": url})
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal(resp.Data, &analysis); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(analysis, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printAnalysis(&analysis)
	fmt.Printf("\nAsk questions with: videokb ask %s \"...\"\n", analysis.ID)
	return nil
}

func printAnalysis(a *Analysis) {
	fmt.Printf("Title: %s\n", a.Title)
	if a.Channel != "" {
		fmt.Printf("Channel: %s\n", a.Channel)
	}
	fmt.Printf("Video: %s\n", a.VideoID)
	fmt.Printf("Transcript source: %s", a.Source)
	if a.CaptionLanguage != "" {
		fmt.Printf(" (%s)", a.CaptionLanguage)
	}
	fmt.Println()
	fmt.Printf("Created: %s\n", a.CreatedAt)
	fmt.Printf("ID: %s\n", a.ID)
}
