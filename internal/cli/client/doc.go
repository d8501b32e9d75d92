package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// Document represents a document as returned by the API.
type Document struct {
	ID             string `json:"id"`
	ProjectID      string `json:"project_id"`
	OwnerID        string `json:"owner_id"`
	SourceType     string `json:"source_type"`
	SourceRef      string `json:"source_ref,omitempty"`
	Filename       string `json:"filename"`
	SizeBytes      int64  `json:"size_bytes"`
	ContentType    string `json:"content_type,omitempty"`
	Status         string `json:"status"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
	ErrorDetail    string `json:"error_detail,omitempty"`
	CreatedAt      string `json:"created_at"`
	CompletedAt    string `json:"completed_at,omitempty"`
}

// IndexJob represents an indexing job as returned by the API.
type IndexJob struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Status      string `json:"status"`
	Retries     int32  `json:"retries"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

type documentStatusResponse struct {
	Document  *Document `json:"document"`
	LatestJob *IndexJob `json:"latest_job,omitempty"`
}

type documentListResponse struct {
	Items   []Document `json:"items"`
	Cursor  string     `json:"cursor,omitempty"`
	HasMore bool       `json:"has_more"`
}

type syncResponse struct {
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Skipped   int        `json:"skipped"`
	Documents []Document `json:"documents"`
}

// DocCmd creates the doc parent command.
func DocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Manage project documents",
		Long:  "Upload, list, inspect, reindex, sync, and delete documents",
	}

	cmd.AddCommand(DocUploadCmd())
	cmd.AddCommand(DocListCmd())
	cmd.AddCommand(DocStatusCmd())
	cmd.AddCommand(DocDownloadCmd())
	cmd.AddCommand(DocIndexCmd())
	cmd.AddCommand(DocSyncCmd())
	cmd.AddCommand(DocDeleteCmd())

	return cmd
}

// DocUploadCmd creates the doc upload command.
func DocUploadCmd() *cobra.Command {
	var (
		projectID   string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a document to a project",
		Long:  "Uploads a local file and queues it for chunking and embedding.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.UploadDocument(projectID, args[0], contentType)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			var doc Document
			if err := json.Unmarshal(resp.Data, &doc); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(doc)
			}

			fmt.Printf("Uploaded %s (%s), status: %s\n", doc.Filename, doc.ID, doc.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Override detected content type")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

// DocListCmd creates the doc list command.
func DocListCmd() *cobra.Command {
	var (
		projectID string
		limit     int
		cursor    string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents in a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("project_id", projectID)
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			resp, err := api.Get("/documents?" + q.Encode())
			if err != nil {
				return fmt.Errorf("failed to list documents: %w", err)
			}

			var list documentListResponse
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(list)
			}

			if len(list.Items) == 0 {
				fmt.Println("No documents found")
				return nil
			}

			for _, d := range list.Items {
				fmt.Printf("%s  %-40s %-10s %d chunks\n", d.ID, d.Filename, d.Status, d.ChunkCount)
			}
			if list.HasMore {
				fmt.Printf("\nMore results available, use --cursor %s\n", list.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

// DocStatusCmd creates the doc status command.
func DocStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <id>",
		Short: "Show document indexing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/documents/" + url.PathEscape(args[0]) + "/status")
			if err != nil {
				return fmt.Errorf("failed to get document status: %w", err)
			}

			var status documentStatusResponse
			if err := json.Unmarshal(resp.Data, &status); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(status)
			}

			d := status.Document
			fmt.Printf("ID:       %s\n", d.ID)
			fmt.Printf("Filename: %s\n", d.Filename)
			fmt.Printf("Status:   %s\n", d.Status)
			fmt.Printf("Chunks:   %d\n", d.ChunkCount)
			if d.EmbeddingModel != "" {
				fmt.Printf("Model:    %s\n", d.EmbeddingModel)
			}
			if d.ErrorDetail != "" {
				fmt.Printf("Error:    %s\n", d.ErrorDetail)
			}
			if status.LatestJob != nil {
				j := status.LatestJob
				fmt.Printf("Job:      %s (%s, retries: %d)\n", j.ID, j.Status, j.Retries)
				if j.Error != "" {
					fmt.Printf("Job err:  %s\n", j.Error)
				}
			}
			return nil
		},
	}

	return cmd
}

type downloadResponse struct {
	URL string `json:"url"`
}

// DocDownloadCmd creates the doc download command.
func DocDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Get a download link for a document's original file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/documents/" + url.PathEscape(args[0]) + "/download")
			if err != nil {
				return fmt.Errorf("failed to get download link: %w", err)
			}

			var dl downloadResponse
			if err := json.Unmarshal(resp.Data, &dl); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(dl)
			}

			fmt.Println(dl.URL)
			return nil
		},
	}

	return cmd
}

// DocIndexCmd creates the doc index command.
func DocIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <id>",
		Short: "Queue a document for reindexing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/documents/"+url.PathEscape(args[0])+"/index", nil)
			if err != nil {
				return fmt.Errorf("failed to request indexing: %w", err)
			}

			var job IndexJob
			if err := json.Unmarshal(resp.Data, &job); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(job)
			}

			fmt.Printf("Queued indexing job %s for document %s\n", job.ID, job.DocumentID)
			return nil
		},
	}

	return cmd
}

// DocSyncCmd creates the doc sync command.
func DocSyncCmd() *cobra.Command {
	var (
		projectID  string
		sourceType string
		folder     string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync documents from a cloud folder",
		Long:  "Imports new and changed files from a connected Google Drive or Dropbox folder.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/documents/sync", map[string]string{
				"project_id":  projectID,
				"source_type": sourceType,
				"folder":      folder,
			})
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			var result syncResponse
			if err := json.Unmarshal(resp.Data, &result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(result)
			}

			fmt.Printf("Sync complete: %d created, %d updated, %d skipped\n",
				result.Created, result.Updated, result.Skipped)
			for _, d := range result.Documents {
				fmt.Printf("  %s  %s (%s)\n", d.ID, d.Filename, d.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "Project ID (required)")
	cmd.Flags().StringVar(&sourceType, "source", "", "Source type: google_drive or dropbox (required)")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder ID or path in the source")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("source")

	return cmd
}

// DocDeleteCmd creates the doc delete command.
func DocDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/documents/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("failed to delete document: %w", err)
			}

			fmt.Printf("Deleted document %s\n", args[0])
			return nil
		},
	}

	return cmd
}
