package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// Citation represents a source citation in a chat answer.
type Citation struct {
	Ordinal    int     `json:"ordinal"`
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Score      float32 `json:"score"`
}

// ChatAnswer represents the chat API response.
type ChatAnswer struct {
	Response       string     `json:"response"`
	Citations      []Citation `json:"citations"`
	Confidence     float32    `json:"confidence"`
	Grounded       bool       `json:"grounded"`
	ConversationID string     `json:"conversation_id"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var (
		projectIDs     []string
		conversationID string
		noRAG          bool
	)

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask a question about your project documents",
		Long:  "Sends a question to the assistant, grounded in the documents of the given projects.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{
				"message": args[0],
			}
			if len(projectIDs) > 0 {
				body["project_ids"] = projectIDs
			}
			if conversationID != "" {
				body["conversation_id"] = conversationID
			}
			if noRAG {
				body["use_rag"] = false
			}

			resp, err := api.Post("/chat", body)
			if err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}

			var answer ChatAnswer
			if err := json.Unmarshal(resp.Data, &answer); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(answer)
			}

			fmt.Println(answer.Response)
			if len(answer.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range answer.Citations {
					fmt.Printf("  [%d] document %s (score %.2f)\n", c.Ordinal, c.DocumentID, c.Score)
				}
			}
			if !answer.Grounded {
				fmt.Println("\nNote: answer was not grounded in project documents")
			}
			fmt.Printf("\nConversation: %s\n", answer.ConversationID)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&projectIDs, "project", "p", nil, "Project IDs to search (repeatable)")
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue an existing conversation")
	cmd.Flags().BoolVar(&noRAG, "no-rag", false, "Skip retrieval and answer from the model alone")

	return cmd
}
