package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/pershin-daniil/Events/internal/rest"
	"github.com/pershin-daniil/Events/pkg/clock"
	"github.com/pershin-daniil/Events/pkg/config"
	"github.com/pershin-daniil/Events/pkg/logger"
	"github.com/pershin-daniil/Events/pkg/memstore"
	"github.com/pershin-daniil/Events/pkg/notifier"
	"github.com/pershin-daniil/Events/pkg/pgstore"
	"github.com/pershin-daniil/Events/pkg/service"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serverAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server. With the postgres store pending migrations are applied first.
The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverAddress, "address", "", "listen address (default: :8080)")
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if serverAddress != "" {
		cfg.Address = serverAddress
	}
	log := logger.New(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := openStore(ctx, log, cfg, true)
	if err != nil {
		return err
	}
	defer closeStore()

	app := service.NewEventsService(log, store, notifier.New(log), clock.NewSystem())
	server := rest.New(log, app, rest.Options{
		Address:         cfg.Address,
		Version:         Version,
		Secret:          []byte(cfg.APIKey),
		CORSOrigins:     cfg.CORSOrigins,
		AllowAllOrigins: cfg.Debug,
	})
	if cfg.Debug {
		log.Warn("debug mode: CORS allows every origin")
	}
	if err = server.Run(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// openStore builds the store named in cfg. The returned func releases it.
func openStore(ctx context.Context, log *logrus.Logger, cfg config.Config, migrateUp bool) (service.Store, func(), error) {
	if cfg.Store == config.StoreMemory {
		log.Warn("using in-memory store, data is lost on exit")
		return memstore.New(log), func() {}, nil
	}
	store, err := pgstore.New(ctx, log, cfg.PgDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("err connecting to postgres: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Warnf("err closing store: %v", err)
		}
	}
	if migrateUp {
		if _, err = store.Migrate(migrate.Up, 0); err != nil {
			closeStore()
			return nil, nil, err
		}
	}
	return store, closeStore, nil
}
