package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/redmonkez12/nagarseva-api/cmd/portalctl/ui"
	"github.com/redmonkez12/nagarseva-api/internal/auth"
	"github.com/redmonkez12/nagarseva-api/internal/config"
	"github.com/redmonkez12/nagarseva-api/internal/database"
	"github.com/redmonkez12/nagarseva-api/internal/user"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator tooling for the complaint portal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}

	createAdminCmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create a verified administrator account",
		Long:  "Create a verified administrator account. Missing flags are asked for interactively.",
		RunE:  runCreateAdmin,
	}
	createAdminCmd.Flags().String("name", "", "Display name")
	createAdminCmd.Flags().String("email", "", "Login email")
	createAdminCmd.Flags().String("password", "", "Login password (prompted when omitted)")
	createAdminCmd.Flags().Bool("no-input", false, "Fail instead of prompting for missing fields")

	rootCmd.AddCommand(migrateCmd, createAdminCmd)

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// openDB only needs database settings, so it skips config.Load and its auth checks.
func openDB() (*sql.DB, error) {
	_ = godotenv.Load()

	dbCfg := config.DatabaseConfig{
		Host:           envOr("DB_HOST", "localhost"),
		Port:           envOr("DB_PORT", "5432"),
		User:           envOr("DB_USER", "postgres"),
		Password:       envOr("DB_PASSWORD", "postgres"),
		DBName:         envOr("DB_NAME", "nagarseva"),
		SSLMode:        envOr("DB_SSLMODE", "disable"),
		ChannelBinding: os.Getenv("DB_CHANNEL_BINDING"),
	}
	return database.Open(dbCfg.ConnectionString())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(cmd.Context(), db); err != nil {
		return err
	}

	ui.PrintSuccess("migrations applied")
	return nil
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	noInput, _ := cmd.Flags().GetBool("no-input")

	in := ui.AdminInput{Name: name, Email: email, Password: password}
	if in.Missing() {
		if noInput {
			return errors.New("--name, --email and --password are required with --no-input")
		}
		ui.PrintTitle("Create administrator")

		var err error
		in, err = ui.RunAdminForm(in)
		if err != nil {
			return fmt.Errorf("form cancelled: %w", err)
		}
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	admin, err := createAdmin(cmd.Context(), user.NewRepository(database.NewBunDB(db)), in)
	if err != nil {
		return err
	}

	ui.PrintSuccess("admin account created")
	ui.PrintDetail("ID", admin.ID.String())
	ui.PrintDetail("Name", admin.Name)
	ui.PrintDetail("Email", admin.Email)
	return nil
}

type adminCreator interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
}

// createAdmin seeds a verified admin. Admins skip email verification at login
// regardless, but storing them verified keeps the record honest.
func createAdmin(ctx context.Context, users adminCreator, in ui.AdminInput) (*user.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := users.Create(ctx, user.NewUser{
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Role:         user.RoleAdmin,
		IsVerified:   true,
	})
	if errors.Is(err, user.ErrDuplicateEmail) {
		return nil, fmt.Errorf("an account with email %s already exists", in.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return u, nil
}
