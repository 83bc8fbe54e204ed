package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/metrics"
	"github.com/jonathan/ats-analyzer/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that runs analyses and streams their progress as server-sent events.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Address to listen on (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	log, err := logger.New(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	eng, err := newEngine(ctx, cfg, log, m)
	if err != nil {
		return err
	}
	defer eng.Close()

	srv, err := server.New(cfg.Server, cfg.RateLimit, server.Deps{
		NewController: eng.NewController,
		Logger:        log,
		Metrics:       m,
		Ready:         eng.Ready,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	log.Info("starting server",
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("comparison", cfg.Comparison.Transport),
		zap.String("cache", cfg.Cache.Type),
	)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
