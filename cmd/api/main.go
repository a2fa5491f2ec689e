package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"stealthcompany.com/appointmentbot/internal/app"
	"stealthcompany.com/appointmentbot/internal/orchestrator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "appointmentbot",
		Short: "Appointment booking webhook backend",
		// serve is the default
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(createIndexesCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

func createIndexesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-indexes",
		Short: "Create the collections and indexes the stores rely on",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.Init("appointmentbot-schema")
			if err != nil {
				return err
			}
			handle, err := app.NewHandle(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			defer handle.Close(ctx)

			if err := app.EnsureSchema(ctx, handle); err != nil {
				log.Error().Err(err).Msg("Failed to provision store schema")
				return err
			}
			log.Info().Str("store", cfg.StoreDriver).Msg("Store schema ready")
			return nil
		},
	}
}

func serve(parent context.Context) error {
	cfg, err := app.Init("appointmentbot")
	if err != nil {
		return err
	}

	log.Info().Msg("Starting appointmentbot service")

	handle, err := app.NewHandle(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	signals := orchestrator.NewSignalHandler()
	defer signals.Stop()
	signals.HandleSignals(ctx, cancel)

	router, err := app.NewRouter(ctx, cfg, handle)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	manager := orchestrator.NewServiceManager(server, handle)
	if cfg.EnableSystemMetrics {
		manager.WithSystemMetrics(cfg.SystemMetricsInterval)
	}
	return manager.Run(ctx)
}
