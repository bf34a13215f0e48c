package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/EthelSakyi/SIRVariation/internal/api"
	"github.com/EthelSakyi/SIRVariation/internal/config"
	"github.com/EthelSakyi/SIRVariation/internal/logging"
	"github.com/EthelSakyi/SIRVariation/internal/observability"
	"github.com/EthelSakyi/SIRVariation/runstore"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML server config file")
	addr := flag.String("addr", "", "HTTP address the API listens on (overrides config)")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// The logger's format comes from the config we failed to load,
		// so report plainly and bail.
		os.Stderr.WriteString("sirsim-server: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	log := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		log.Error(context.Background(), "failed to listen",
			logging.String("addr", cfg.Addr), logging.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(context.Background(), "server failed", logging.String("error", err.Error()))
		os.Exit(1)
	}
}

// run assembles the server from its parts and serves the API on lis
// until ctx is cancelled.
func run(ctx context.Context, cfg config.ServerConfig, log logging.Logger, lis net.Listener) error {
	collector, err := observability.NewSimCollector(nil)
	if err != nil {
		return fmt.Errorf("initialise metrics collector: %w", err)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	tracingCfg := observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}
	if !tracingCfg.Enabled {
		// Tracing not enabled in the config file can still be switched
		// on per deployment through SIRSIM_TRACING_* variables.
		tracingCfg = observability.TracingConfigFromEnv()
	}
	shutdownTracing, err := observability.InitTracing(ctx, tracingCfg, log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}

	store := runstore.NewStore()
	store.Subscribe(func(ev runstore.Event) {
		if ev.Type == runstore.EventRunCompleted {
			collector.ObserveRun(ev.Run)
		}
	})

	server := api.NewServer(store, collector, cfg.Limits, log)
	apiSrv := &http.Server{Handler: server.Handler()}

	log.Info(ctx, "starting API server",
		logging.String("addr", lis.Addr().String()),
		logging.Int("max_nodes", cfg.Limits.MaxNodes),
		logging.Int("max_steps", cfg.Limits.MaxSteps))
	go func() {
		if err := apiSrv.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Error(context.Background(), "API server exited", logging.String("error", err.Error()))
		}
	}()

	<-ctx.Done()

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn(context.Background(), "API shutdown", logging.String("error", err.Error()))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	return nil
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
