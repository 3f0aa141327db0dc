package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"autoreply/adapter/out/twilio"
	"autoreply/config"
	"autoreply/core/port/out"
	"autoreply/internal/bootstrap"
	"autoreply/pkg/logger"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
	sendTestTimeout = 20 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:          "autoreply",
		Short:        "WhatsApp auto-reply service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if exists (for local development)
			envErr := godotenv.Load()

			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			initLogger(cfg)
			if envErr != nil {
				logger.Debug("No .env file found, using environment variables")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and operator API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	})
	root.AddCommand(newSendTestCmd(&cfg))
	return root
}

func newSendTestCmd(cfg **config.Config) *cobra.Command {
	var to, message string
	cmd := &cobra.Command{
		Use:   "send-test",
		Short: "Send one message through the messaging transport",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSendTest(cmd.Context(), *cfg, to, message)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient, e.g. whatsapp:+15551234567")
	cmd.Flags().StringVar(&message, "message", "", "message body")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func initLogger(cfg *config.Config) {
	level := logger.LevelInfo
	if cfg.IsDevelopment() {
		level = logger.LevelDebug
	}
	if cfg.LogLevel != "" {
		level = logger.ParseLevel(cfg.LogLevel)
	}
	logger.Init(logger.Config{
		Level:   level,
		Service: "autoreply",
		Console: cfg.LogFormat == "console",
	})
}

func runServe(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, cleanup, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down API server (timeout: %v)...", shutdownTimeout)
		if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("Error shutting down: %v", err)
			return
		}
		logger.Info("API server shut down gracefully")
	}()

	addr := ":" + cfg.Port
	logger.Info("Server running on port %s", cfg.Port)
	if err := app.Listen(addr); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	return nil
}

func runSendTest(ctx context.Context, cfg *config.Config, to, message string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, sendTestTimeout)
	defer cancel()

	sender := twilio.NewClient(twilio.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		From:       cfg.TwilioWhatsAppFrom,
		BaseURL:    cfg.TwilioAPIBaseURL,
	}, logger.Component("twilio"))

	if err := sender.Send(ctx, to, message); err != nil {
		if errors.Is(err, out.ErrTransportNotConfigured) {
			return fmt.Errorf("twilio credentials missing, fill .env from .env.example")
		}
		return err
	}
	logger.WithField("to", to).Info("Test message sent")
	return nil
}
