package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// Chunk represents a transcript chunk from the API.
type Chunk struct {
	ID         string `json:"id"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// GetCmd creates the get command.
func GetCmd() *cobra.Command {
	var showChunks bool

	cmd := &cobra.Command{
		Use:     "get <analysis_id>",
		Short:   "Get an analysis by ID",
		Aliases: []string{"view"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runGet(args[0], showChunks, outputJSON)
		},
	}

	cmd.Flags().BoolVar(&showChunks, "chunks", false, "Also print the transcript chunks")

	return cmd
}

func runGet(analysisID string, showChunks, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/analyses/%s", analysisID))
	if err != nil {
		return fmt.Errorf("failed to get analysis: %w", err)
	}

	var analysis Analysis
	if err := json.Unmarshal(resp.Data, &analysis); err != nil {
		return fmt.Errorf("failed to parse analysis: %w", err)
	}

	var chunks []Chunk
	if showChunks {
		chunkResp, err := api.Get(fmt.Sprintf("/analyses/%s/chunks", analysisID))
		if err != nil {
			return fmt.Errorf("failed to get chunks: %w", err)
		}
		if err := json.Unmarshal(chunkResp.Data, &chunks); err != nil {
			return fmt.Errorf("failed to parse chunks: %w", err)
		}
	}

	if outputJSON {
		out := map[string]interface{}{"analysis": analysis}
		if showChunks {
			out["chunks"] = chunks
		}
		output, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	printAnalysis(&analysis)

	if showChunks {
		fmt.Println()
		fmt.Printf("--- Transcript (%d chunks) ---\n", len(chunks))
		for _, chunk := range chunks {
			fmt.Printf("\n[%d] %s\n", chunk.ChunkIndex, strings.TrimSpace(chunk.Content))
		}
	}

	return nil
}
