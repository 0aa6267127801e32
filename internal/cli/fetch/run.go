package fetch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryankumar/usagemetrics/internal/analytics"
	"github.com/aryankumar/usagemetrics/internal/batch"
	"github.com/aryankumar/usagemetrics/internal/metrics"
	"github.com/aryankumar/usagemetrics/internal/output"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

// displayOptions are the per-command output switches
type displayOptions struct {
	full bool
	wide bool
}

// runBatch executes one batch with s and prints the report
func runBatch(cmd *cobra.Command, s *settings, req batch.Request, display displayOptions) error {
	ctx := cmd.Context()
	logger := slog.Default()

	if err := s.cfg.Validate(s.env); err != nil {
		return err
	}

	resolver, err := s.cfg.Resolver()
	if err != nil {
		return err
	}

	client := analytics.NewClient(
		analytics.WithTimeout(s.cfg.Defaults.Timeout),
		analytics.WithLogger(logger),
	)
	defer client.CloseIdleConnections()

	recorder := metrics.NewRecorder()
	if s.metricsAddr != "" {
		stop := serveMetrics(s.metricsAddr, recorder, logger)
		defer stop()
	}

	runner := batch.NewRunner(client, client, resolver,
		batch.WithLogger(logger),
		batch.WithRecorder(recorder))

	req.DiscoveryURL = s.cfg.DiscoveryURL
	req.Environment = s.env
	req.Concurrency = s.cfg.Defaults.Parallel

	report, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	formatter := output.NewFormatter(s.format,
		output.WithNoColor(s.cfg.Defaults.NoColor),
		output.WithFull(display.full),
		output.WithWide(display.wide))

	return formatter.FormatReport(cmd.OutOrStdout(), report)
}

// serveMetrics exposes the recorder on addr until the returned stop is called
func serveMetrics(addr string, recorder *metrics.Recorder, logger *slog.Logger) (stop func()) {
	r := chi.NewRouter()
	r.Handle("/metrics", recorder.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}
}
