package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"envmon_dashboard/internal/accessgate"
	"envmon_dashboard/internal/config"
	"envmon_dashboard/internal/controller"
	"envmon_dashboard/internal/gateway"
	"envmon_dashboard/internal/handlers"
	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/metrics"
	"envmon_dashboard/internal/notify"
	"envmon_dashboard/internal/registry"
	"envmon_dashboard/internal/repository"
	"envmon_dashboard/internal/repository/db"
	"envmon_dashboard/internal/server"
	"envmon_dashboard/internal/service"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configDir string
	root := &cobra.Command{
		Use:           "envmon",
		Short:         "Sensor power-mode dashboard backend",
		Long:          "Keeps per-sensor power panels in sync with the device server and serves them over HTTP and WebSocket.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configDir, "config", "configs", "directory containing config.yml")

	load := func() (*config.Config, error) { return config.Load(configDir) }
	root.AddCommand(newServeCmd(load), newDevicesCmd(load), newStateCmd(load))
	return root
}

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log := logger.Get(cfg.LogLevel)
	m := metrics.New()

	conn, err := openDB(cfg, log)
	if err != nil {
		return fmt.Errorf("init sqlite: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	gw := gateway.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, m)
	notes := notify.NewBroadcaster(0)
	gate, err := accessgate.New(cfg.AccessGate.Secret,
		accessgate.WithCost(cfg.AccessGate.BcryptCost),
		accessgate.WithNotifier(notes),
		accessgate.WithMetrics(m),
		accessgate.WithLogger(log.Named("gate")),
	)
	if err != nil {
		return fmt.Errorf("init access gate: %w", err)
	}
	reg := registry.New(registry.NewActiveDeviceContext(cfg.Controller.DefaultDevice), controller.Config{
		Gateway:      gw,
		Gate:         gate,
		Notifier:     notes,
		Metrics:      m,
		Log:          log,
		PendingRetry: cfg.Controller.PendingRetry,
		Tick:         cfg.Controller.Tick,
		ExpiryGuard:  cfg.Controller.ExpiryGuard,
	})
	defer reg.CloseAll()

	repos := repository.NewRepository(conn)
	services := service.NewService(repos, reg, gw, log)
	apiHandler := handlers.NewHandler(services, log,
		handlers.WithNotifications(notes),
		handlers.WithMetrics(m.Handler()),
		handlers.WithStreamInterval(cfg.WS.Interval),
	)

	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run() }()
	log.Infow("server_started", "addr", srv.Addr(), "upstream", cfg.Upstream.BaseURL, "device_id", reg.ActiveDevice())

	return waitForShutdown(ctx, srv, errCh, log)
}

// openDB initializes the SQLite journal using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening journal", "path", cfg.DBPath)
	return db.InitDB(cfg.DBPath)
}

// waitForShutdown blocks until a termination signal or a server failure and
// then drains in-flight requests.
func waitForShutdown(ctx context.Context, srv *server.Server, errCh <-chan error, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Infow("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
