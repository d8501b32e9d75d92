package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// Project represents a project as returned by the API.
type Project struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"owner_id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Market      string            `json:"market,omitempty"`
	Location    string            `json:"location,omitempty"`
	Status      string            `json:"status"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

type projectListResponse struct {
	Items   []Project `json:"items"`
	Cursor  string    `json:"cursor,omitempty"`
	HasMore bool      `json:"has_more"`
}

// ProjectCmd creates the project parent command.
func ProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
		Long:  "Create, list, inspect, update, and delete projects",
	}

	cmd.AddCommand(ProjectCreateCmd())
	cmd.AddCommand(ProjectListCmd())
	cmd.AddCommand(ProjectGetCmd())
	cmd.AddCommand(ProjectUpdateCmd())
	cmd.AddCommand(ProjectDeleteCmd())

	return cmd
}

// ProjectCreateCmd creates the project create command.
func ProjectCreateCmd() *cobra.Command {
	var (
		description string
		market      string
		location    string
		metadata    []string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{"name": args[0]}
			if description != "" {
				body["description"] = description
			}
			if market != "" {
				body["market"] = market
			}
			if location != "" {
				body["location"] = location
			}
			if len(metadata) > 0 {
				meta, err := parseMetadataPairs(metadata)
				if err != nil {
					return err
				}
				body["metadata"] = meta
			}

			resp, err := api.Post("/projects", body)
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			var project Project
			if err := json.Unmarshal(resp.Data, &project); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(project)
			}

			fmt.Printf("Created project %s (%s)\n", project.Name, project.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Project description")
	cmd.Flags().StringVar(&market, "market", "", "Market segment (e.g. onshore-wind, utility-solar)")
	cmd.Flags().StringVar(&location, "location", "", "Project location")
	cmd.Flags().StringSliceVar(&metadata, "meta", nil, "Metadata key=value pairs (repeatable)")

	return cmd
}

// ProjectListCmd creates the project list command.
func ProjectListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				q.Set("cursor", cursor)
			}
			path := "/projects"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}

			resp, err := api.Get(path)
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			var list projectListResponse
			if err := json.Unmarshal(resp.Data, &list); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(list)
			}

			if len(list.Items) == 0 {
				fmt.Println("No projects found")
				return nil
			}

			for _, p := range list.Items {
				line := fmt.Sprintf("%s  %-30s %s", p.ID, p.Name, p.Status)
				if p.Market != "" {
					line += "  " + p.Market
				}
				fmt.Println(line)
			}
			if list.HasMore {
				fmt.Printf("\nMore results available, use --cursor %s\n", list.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

// ProjectGetCmd creates the project get command.
func ProjectGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get("/projects/" + url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to get project: %w", err)
			}

			var project Project
			if err := json.Unmarshal(resp.Data, &project); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(project)
			}

			printProjectText(&project)
			return nil
		},
	}

	return cmd
}

// ProjectUpdateCmd creates the project update command.
func ProjectUpdateCmd() *cobra.Command {
	var (
		name        string
		description string
		market      string
		location    string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			body := map[string]interface{}{}
			if name != "" {
				body["name"] = name
			}
			if description != "" {
				body["description"] = description
			}
			if market != "" {
				body["market"] = market
			}
			if location != "" {
				body["location"] = location
			}
			if status != "" {
				body["status"] = status
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to update, pass at least one flag")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Patch("/projects/"+url.PathEscape(args[0]), body)
			if err != nil {
				return fmt.Errorf("failed to update project: %w", err)
			}

			var project Project
			if err := json.Unmarshal(resp.Data, &project); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				return printJSON(project)
			}

			fmt.Printf("Updated project %s\n", project.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New project name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringVar(&market, "market", "", "New market segment")
	cmd.Flags().StringVar(&location, "location", "", "New location")
	cmd.Flags().StringVar(&status, "status", "", "New status (active|archived)")

	return cmd
}

// ProjectDeleteCmd creates the project delete command.
func ProjectDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project and all its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			if _, err := api.Delete("/projects/" + url.PathEscape(args[0])); err != nil {
				return fmt.Errorf("failed to delete project: %w", err)
			}

			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		},
	}

	return cmd
}

func printProjectText(p *Project) {
	fmt.Printf("ID:          %s\n", p.ID)
	fmt.Printf("Name:        %s\n", p.Name)
	fmt.Printf("Status:      %s\n", p.Status)
	if p.Description != "" {
		fmt.Printf("Description: %s\n", p.Description)
	}
	if p.Market != "" {
		fmt.Printf("Market:      %s\n", p.Market)
	}
	if p.Location != "" {
		fmt.Printf("Location:    %s\n", p.Location)
	}
	for k, v := range p.Metadata {
		fmt.Printf("Meta:        %s=%s\n", k, v)
	}
	fmt.Printf("Created:     %s\n", p.CreatedAt)
	fmt.Printf("Updated:     %s\n", p.UpdatedAt)
}

func parseMetadataPairs(pairs []string) (map[string]string, error) {
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid metadata pair %q (expected key=value)", pair)
		}
		meta[key] = value
	}
	return meta, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
