package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// QA represents an answered question from the API.
type QA struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CreatedAt string `json:"created_at"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <analysis_id> <question>",
		Short: "Ask a question about an analyzed video",
		Long:  "Answers the question from the video's transcript and records it in the analysis history.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runAsk(args[0], args[1], outputJSON)
		},
	}

	return cmd
}

func runAsk(analysisID, question string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Post(
		fmt.Sprintf("/analyses/%s/questions", analysisID),
		map[string]string{"question": question},
	)
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	var qa QA
	if err := json.Unmarshal(resp.Data, &qa); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(qa, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(qa.Answer)
	return nil
}

// QuestionsCmd creates the questions command.
func QuestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions <analysis_id>",
		Short: "Show the question history for an analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runQuestions(args[0], outputJSON)
		},
	}

	return cmd
}

func runQuestions(analysisID string, outputJSON bool) error {
	api, err := NewAPIClient()
	if err != nil {
		return err
	}

	resp, err := api.Get(fmt.Sprintf("/analyses/%s/questions", analysisID))
	if err != nil {
		return fmt.Errorf("failed to get questions: %w", err)
	}

	var history []QA
	if err := json.Unmarshal(resp.Data, &history); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(history, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(history) == 0 {
		fmt.Println("No questions asked yet.")
		return nil
	}

	for i, qa := range history {
		fmt.Printf("Q: %s\n", qa.Question)
		fmt.Printf("A: %s\n", qa.Answer)
		fmt.Printf("   %s\n", qa.CreatedAt)
		if i < len(history)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	return nil
}
