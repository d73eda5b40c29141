package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/opswindow/opswindow/internal/audit"
	"github.com/opswindow/opswindow/internal/config"
	"github.com/opswindow/opswindow/internal/controlplane"
	"github.com/opswindow/opswindow/internal/history"
	"github.com/opswindow/opswindow/internal/invoker"
	"github.com/opswindow/opswindow/internal/logging"
	"github.com/opswindow/opswindow/internal/reconcile"
	"github.com/opswindow/opswindow/internal/server"
	"github.com/opswindow/opswindow/internal/telemetry"
	"github.com/opswindow/opswindow/internal/trigger"
	"github.com/opswindow/opswindow/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "opswindow",
	Short: "Opswindow - business-hours scheduler for compute instances",
	Long:  "Opswindow keeps a compute instance's power state aligned with a declared weekly availability window, starting and stopping it through the cloud control plane.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon",
	Long:  "Run the periodic trigger loop plus the HTTP status and metrics endpoints",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the opswindow version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

// newReconciler builds the EC2 control plane client and the reconciler over it.
func newReconciler(ctx context.Context) (*reconcile.Reconciler, error) {
	cp, err := controlplane.NewEC2(ctx, controlplane.EC2Options{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		SessionToken:    cfg.AWSSessionToken,
		Endpoint:        cfg.AWSEndpoint,
		CallTimeout:     cfg.CallTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize control plane client: %w", err)
	}

	retry := reconcile.RetryConfig{
		MaxRetries:      uint64(cfg.RetryMaxAttempts),
		InitialInterval: cfg.RetryInitialBackoff,
		MaxInterval:     cfg.RetryMaxBackoff,
	}
	return reconcile.New(cp, retry, logger), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().
		Str("instance_id", cfg.InstanceID).
		Str("trigger_mode", string(cfg.TriggerMode)).
		Msg("opswindow starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "opswindow",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	rec, err := newReconciler(context.Background())
	if err != nil {
		return err
	}

	var auditStore *audit.Store
	if cfg.AuditDSN != "" {
		auditStore, err = audit.Open(cfg.AuditDSN, logger)
		if err != nil {
			return fmt.Errorf("initialize audit store: %w", err)
		}
		defer func() {
			if err := auditStore.Close(); err != nil {
				logger.Error().Err(err).Msg("audit store close failed")
			}
		}()
	}

	ring := history.New(cfg.HistorySize)
	inv := invoker.New(cfg, rec, ring, auditStore, logger)

	trig, err := trigger.New(cfg, inv.InvokeNow, logger)
	if err != nil {
		return fmt.Errorf("initialize trigger: %w", err)
	}

	if t, ok := cfg.Policy.NextTransition(time.Now()); ok {
		logger.Info().
			Time("at", t.At).
			Str("to", string(t.To)).
			Msg("next scheduled transition")
	}

	srv := server.New(cfg, ring, auditStore, logger)
	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down gracefully...")
		cancel()
	}()

	trig.Run(ctx)

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("opswindow stopped")
	return nil
}
