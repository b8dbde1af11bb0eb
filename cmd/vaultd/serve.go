package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"oraclevault/internal/adapters/vaultapi"
	"oraclevault/internal/blob"
	"oraclevault/internal/core"
	"oraclevault/internal/oracle"
)

type serveOptions struct {
	listen       string
	eventLogPath string
	oracleSecret string
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vault HTTP API",
		Long: `Run the vault HTTP API.

Storage and blob backends are selected through ORACLEVAULT_* environment
variables; see the storage and blob package documentation for the full list.
The oracle shared secret may also be supplied via ORACLEVAULT_ORACLE_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.oracleSecret == "" {
				opts.oracleSecret = os.Getenv("ORACLEVAULT_ORACLE_SECRET")
			}
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.listen, "listen", ":8080", "address to listen on")
	cmd.Flags().StringVar(&opts.eventLogPath, "event-log", "", "append lifecycle events to this JSONL file")
	cmd.Flags().StringVar(&opts.oracleSecret, "oracle-secret", "", "shared secret for oracle callback proofs")
	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	store, err := core.OpenPersistentStore(core.NewDefaultRulesEngine())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() { _ = closer.Close() }()
	}

	blobs, err := blob.Open(ctx)
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	serviceOpts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(core.NewPrometheusMetricsRecorder(registry)),
		core.WithBlobStore(blobs),
	}
	if opts.eventLogPath != "" {
		serviceOpts = append(serviceOpts, core.WithEventSink(core.NewJSONLEventSink(opts.eventLogPath)))
	}
	if opts.oracleSecret != "" {
		lo := oracle.NewLoopback([]byte(opts.oracleSecret))
		serviceOpts = append(serviceOpts, core.WithOracleGateway(lo), core.WithVerifier(lo))
	} else {
		logger.Warn("no oracle secret configured, callbacks will be rejected")
	}

	service := core.NewService(store, serviceOpts...)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", vaultapi.NewHandler(service))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	server := &http.Server{
		Addr:              opts.listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("vaultd listening", "addr", opts.listen)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
