package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fxdesk/rfstrader/api"
	"github.com/fxdesk/rfstrader/internal/config"
	"github.com/fxdesk/rfstrader/pkg/dates"
	"github.com/fxdesk/rfstrader/pkg/events"
	"github.com/fxdesk/rfstrader/pkg/execution"
	"github.com/fxdesk/rfstrader/pkg/quotes"
	"github.com/fxdesk/rfstrader/pkg/session"
	"github.com/fxdesk/rfstrader/pkg/transport"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rfstrader",
		Short: "RFS trading client for multi-leg FX option structures",
		Long:  `A request-for-stream trading client that requests continuously refreshing quotes on multi-leg FX option structures from liquidity providers and executes against the best one`,
		Run:   runTrader,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runTrader(cmd *cobra.Command, args []string) {
	// Local .env files are optional
	_ = godotenv.Load()

	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logrus.SetLevel(level)

	if err := cfg.Validate(logger); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := transport.Dial(ctx, cfg.Session.Host, cfg.Session.Port)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to venue")
	}

	bus := events.NewBus()
	registry := quotes.NewRegistry()
	ledger := execution.NewLedger()

	coordinator := session.NewCoordinator(session.Options{
		BeginString:       cfg.Session.BeginString,
		SenderCompID:      cfg.Session.SenderCompID,
		TargetCompID:      cfg.Session.TargetCompID,
		Username:          cfg.Session.Username,
		Password:          cfg.Session.Password,
		HeartbeatSecs:     cfg.Session.HeartbeatSecs,
		ResetSeqNum:       cfg.Session.ResetSeqNum,
		RequestIDPrefix:   cfg.Session.RequestIDPrefix,
		Policy:            dates.DefaultPolicy(),
		RequestsPerSecond: cfg.Session.RequestsPerSec,
	}, conn, registry, ledger, bus)

	providers := make([]session.Provider, 0, len(cfg.Venue.Providers))
	for _, p := range cfg.Venue.Providers {
		providers = append(providers, session.Provider{
			CompID:  p.CompID,
			Name:    p.Name,
			Enabled: p.Enabled,
		})
	}
	coordinator.SeedProviders(providers)

	// Reader goroutine feeds inbound messages to the coordinator.
	go func() {
		if err := conn.Run(ctx, coordinator.HandleInbound); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Transport reader stopped")
		}
		coordinator.Stop("transport closed")
	}()

	if err := coordinator.Logon(); err != nil {
		logger.WithError(err).Fatal("Failed to send logon")
	}

	apiServer := api.NewServer(coordinator, registry, ledger, bus, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start API server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("RFS trader is running. Press Ctrl+C to stop.")

	<-sigChan
	logger.Info("Received shutdown signal")

	if err := coordinator.Logout("shutdown"); err != nil {
		logger.WithError(err).Warn("Logout failed")
	}
	cancel()
	conn.Close()

	logger.Info("RFS trader stopped")
}
