package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pershin-daniil/Events/pkg/clock"
	"github.com/pershin-daniil/Events/pkg/config"
	"github.com/pershin-daniil/Events/pkg/logger"
	"github.com/pershin-daniil/Events/pkg/models"
	"github.com/pershin-daniil/Events/pkg/notifier"
	"github.com/pershin-daniil/Events/pkg/service"
	"github.com/spf13/cobra"
)

const passwordEnv = "EVENTS_PASSWORD"

var (
	newUsername string
	newEmail    string
	newPassword string
)

var createUserCmd = &cobra.Command{
	Use:   "createuser",
	Short: "Create a user that can log in and manage users and groups",
	Long: `Create a user in the postgres store.

The password is taken from --password or, when the flag is empty, from EVENTS_PASSWORD.

Examples:
  events createuser --username admin --email admin@example.com --password s3cret
  EVENTS_PASSWORD=s3cret events createuser --username admin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCreateUser(cmd)
	},
}

func init() {
	createUserCmd.Flags().StringVar(&newUsername, "username", "", "username (required)")
	createUserCmd.Flags().StringVar(&newEmail, "email", "", "email address")
	createUserCmd.Flags().StringVar(&newPassword, "password", "", "password (default: $"+passwordEnv+")")
	_ = createUserCmd.MarkFlagRequired("username")
}

func runCreateUser(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if cfg.Store != config.StorePostgres {
		return fmt.Errorf("createuser needs the %s store, got %s", config.StorePostgres, cfg.Store)
	}
	password := newPassword
	if password == "" {
		password = os.Getenv(passwordEnv)
	}
	if password == "" {
		return fmt.Errorf("password is required: use --password or %s", passwordEnv)
	}

	log := logger.New(cfg.LogLevel)
	ctx := context.Background()
	store, closeStore, err := openStore(ctx, log, cfg, true)
	if err != nil {
		return err
	}
	defer closeStore()

	app := service.NewEventsService(log, store, notifier.New(log), clock.NewSystem())
	user, err := app.CreateUser(ctx, models.UserRequest{
		Username: &newUsername,
		Email:    &newEmail,
		Password: &password,
	})
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return fmt.Errorf("invalid user: %w", vErr)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "User %q created with id %d\n", user.Username, user.ID)
	return nil
}
