package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/digitalpromise/prism/internal/config"
	"github.com/digitalpromise/prism/internal/document"
	"github.com/digitalpromise/prism/internal/fields"
	"github.com/digitalpromise/prism/internal/pipeline"
	"github.com/digitalpromise/prism/internal/status"
	"github.com/digitalpromise/prism/internal/webhook"
	"github.com/spf13/cobra"
)

var serveAddrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook processing service",
	Long: `Serve the webhook API for Airtable-triggered processing.

POST /process queues a record for background extraction (authenticated
by PRISM_API_SECRET in the request body), GET /status/{id} reports a
record's processing status, and GET /healthz is a liveness probe.

Queued records run through the same managed flow as the CLI: the record
is marked Processing up front, then Complete or Failed when done.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", ":8080", "Listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.ValidateWebhook(); err != nil {
		fmt.Fprintln(os.Stderr, config.HelpfulEnvMessage(err))
		os.Exit(ExitConfigError)
	}

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	store := mustAirtableClient(cfg)
	model := mustLLMClient(cfg)
	fieldCfg := mustFieldConfig(cfg)
	led := mustOpenLedger(cfg)
	defer led.Close()

	reporter := status.NewReporter(os.Stderr)
	extractor := fields.NewProcessor(fieldCfg, model, fields.WithUsageLogger(reporter))
	proc := pipeline.NewProcessor(store, document.NewResolver(), extractor,
		pipeline.WithReporter(reporter),
		pipeline.WithLedger(led),
	)

	ws := webhook.NewServer(cfg.APISecret, store, proc.ProcessByID)

	srv := &http.Server{
		Addr:         serveAddrFlag,
		Handler:      ws.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", serveAddrFlag)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		exitWithError(ExitError, "server error: %v", err)
	case <-done:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := ws.Close(ctx); err != nil {
		slog.Error("abandoning in-flight records", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
