package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridpoint-ai/gridpoint/internal/config"
	"github.com/gridpoint-ai/gridpoint/internal/repository"
	"github.com/gridpoint-ai/gridpoint/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
		Long:  "Create and list users",
	}

	cmd.AddCommand(UserCreateCmd())
	cmd.AddCommand(UserListCmd())

	return cmd
}

func UserCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a new user",
		Long:  "Create a new user with the specified email",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	email := args[0]
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)
	uuidGen := &service.DefaultUUIDGenerator{}
	authSvc := service.NewAuthService(userRepo, nil, uuidGen)

	user, err := authSvc.CreateUser(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":         user.ID,
			"email":      user.Email,
			"created_at": user.CreatedAt,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("User created: %s (%s)\n", user.Email, user.ID)
	}

	return nil
}

func UserListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Long:  "List all users in the system",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runUserList(outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runUserList(outputFormat string) error {
	ctx := context.Background()

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	userRepo := repository.NewUserRepository(pool)

	users, err := userRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(users))
		for i, user := range users {
			data[i] = map[string]interface{}{
				"id":         user.ID,
				"email":      user.Email,
				"created_at": user.CreatedAt,
			}
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		if len(users) == 0 {
			fmt.Println("No users found")
			return nil
		}
		fmt.Println("Users:")
		for _, user := range users {
			fmt.Printf("  %s: %s (created: %s)\n", user.ID, user.Email, user.CreatedAt.Format("2006-01-02 15:04:05"))
		}
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
