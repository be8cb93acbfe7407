package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	baseconf "worker/core/config"
	"worker/streamd/internal/server"
	"worker/streamd/pkg/config"
)

var (
	configFile string
	envFile    string
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	root := &cobra.Command{
		Use:          "streamd",
		Short:        "Body streaming service",
		Long:         "streamd echoes and stores request bodies through fixed-length host streams.",
		SilenceUsage: true,
		RunE:         run,
	}
	root.Flags().StringVar(&configFile, "config", "", "config file (default: search for streamd.yaml)")
	root.Flags().StringVar(&envFile, "env-file", "", "environment file (default: search for .env / streamd.env)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		configFile = baseconf.FindConfigFile("streamd")
	}
	if envFile == "" {
		envFile = baseconf.FindEnvironmentFile("streamd")
	}

	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	cfg.Log.ConfigureZerolog()
	if cfg.Log.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	logger := log.Logger.With().Str("service", "streamd").Logger()

	logger.Info().
		Str("config_file", configFile).
		Str("env_file", envFile).
		Str("log_level", cfg.Log.Level).
		Bool("debug", cfg.Log.Debug).
		Msg("Configuration loaded")

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create server")
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().Msgf("Health check: http://%s/health", cfg.GetListenAddress())
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("streamd: %w", err)
	}
	return nil
}
