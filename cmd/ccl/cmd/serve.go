package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/msto63/cclbridge/internal/relay"
	"github.com/msto63/cclbridge/pkg/ccl"
	"github.com/msto63/cclbridge/pkg/core/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gRPC relay over the configured facility",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New("serve")

	facility, err := newFacility(appConfig)
	if err != nil {
		return fmt.Errorf("facility: %w", err)
	}
	if facility == nil {
		logger.Warn("no webservice base_url configured, relay answers with empty results")
	}

	rc := appConfig.Relay
	cfg := relay.DefaultConfig()
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.MetricsAddress = rc.MetricsAddress
	cfg.RateLimit = rc.RateLimit
	cfg.RateBurst = rc.RateBurst
	cfg.EnableReflection = rc.EnableReflection
	cfg.Program = appConfig.Helper.Program

	srv := relay.New(cfg, ccl.NewAdapter(facility))
	if err := srv.StartAsync(); err != nil {
		logger.Error("failed to start relay", "error", err)
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping relay")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
	logger.Info("relay stopped")
	return logging.Sync()
}
