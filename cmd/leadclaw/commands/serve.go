package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/leadclaw/pkg/leadclaw/assistant"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/crm"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/gateway"
	"github.com/jholhewres/leadclaw/pkg/leadclaw/store"
)

// newServeCmd creates the `leadclaw serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook daemon",
		Long: `Start LeadClaw as a daemon: the HTTP gateway receives webhook
events, the assistant processes them and the token keepalive keeps the
CRM session fresh.

Examples:
  leadclaw serve
  leadclaw serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)
	slog.SetDefault(logger)

	// Pull secrets from the OS keyring before anything dials out.
	assistant.ResolveSecrets(cfg, logger)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	a, err := assistant.New(cfg, db, logger)
	if err != nil {
		return fmt.Errorf("wiring assistant: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	keepalive := crm.NewKeepalive(a.Sessions(), []string{cfg.CRM.Integration}, cfg.CRM.KeepaliveSchedule, logger)
	if err := keepalive.Start(); err != nil {
		return fmt.Errorf("starting token keepalive: %w", err)
	}

	var gw *gateway.Gateway
	if cfg.Gateway.Enabled {
		gw = gateway.New(a, cfg.Gateway, logger)
		if err := gw.Start(ctx); err != nil {
			keepalive.Stop()
			return fmt.Errorf("starting gateway: %w", err)
		}
	}

	logger.Info("LeadClaw running. Press Ctrl+C to stop.",
		"business", cfg.Assistant.BusinessName,
		"location", cfg.CRM.LocationID,
		"model", cfg.LLM.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")

	done := make(chan struct{})
	go func() {
		keepalive.Stop()
		if gw != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = gw.Stop(shutdownCtx)
			cancel()
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// resolveConfig loads the config from the --config flag or by discovery.
func resolveConfig(cmd *cobra.Command) (*assistant.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := assistant.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, configPath, nil
	}

	if found := assistant.FindConfigFile(); found != "" {
		cfg, err := assistant.LoadConfigFromFile(found)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", found, err)
		}
		slog.Info("config loaded", "path", found)
		return cfg, found, nil
	}

	return nil, "", fmt.Errorf("no configuration file found. Run `leadclaw setup` to create one")
}

// newLogger builds the slog logger from config, honoring --verbose.
func newLogger(cmd *cobra.Command, cfg *assistant.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}
