package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/parkingcontrol/internal/api"
	"github.com/jbweber/homelab/parkingcontrol/internal/config"
	"github.com/jbweber/homelab/parkingcontrol/internal/metrics"
	"github.com/jbweber/homelab/parkingcontrol/internal/repository"
	"github.com/jbweber/homelab/parkingcontrol/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	dbPath  string
	envFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "parkingcontrol",
		Short:        "Parking spot registration service",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to the SQLite database (overrides "+config.EnvDBPath+")")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "env file to load (default .env when present)")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts))
	return cmd
}

// loadConfig resolves configuration as defaults, then environment, then flags.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	if err := cfg.LoadEnv(o.envFile); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath = o.dbPath
	}
	return cfg, nil
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		port             string
		strictUniqueness bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("strict-uniqueness") {
				cfg.StrictUniqueness = strictUniqueness
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "HTTP listen port (overrides "+config.EnvPort+")")
	cmd.Flags().BoolVar(&strictUniqueness, "strict-uniqueness", false, "enforce unique plates, spot numbers and apartment/block pairs in the database")
	return cmd
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	var strictUniqueness bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict-uniqueness") {
				cfg.StrictUniqueness = strictUniqueness
			}
			return migrate(cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().BoolVar(&strictUniqueness, "strict-uniqueness", false, "also apply the unique index migrations")
	return cmd
}

func migrate(out io.Writer, cfg *config.Config) error {
	ds, err := cfg.InitializeDatabase()
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer ds.Close()

	version, err := ds.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	_, err = fmt.Fprintf(out, "schema version %d\n", version)
	return err
}

// newServer wires the datastore through the repository and service into the router.
func newServer(cfg *config.Config) (*http.Server, func() error, error) {
	ds, err := cfg.InitializeDatabase()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	repo := repository.NewParkingSpotRepository(ds)
	svc := service.NewParkingSpotService(repo)
	router := api.NewRouter(api.NewAPI(svc, ds, metrics.New()))

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	cleanup := func() error {
		if closer, ok := repo.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("failed to close statement cache: %v", err)
			}
		}
		return ds.Close()
	}
	return srv, cleanup, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	srv, cleanup, err := newServer(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := cleanup(); err != nil {
			log.Printf("failed to close database: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting parking control service on %s (database %s)", srv.Addr, cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down parking control service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
