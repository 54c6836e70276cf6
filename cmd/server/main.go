// cmd/server exposes /start and /status for triggering backtests over HTTP,
// streams run events on /ws, and serves Prometheus metrics on a second port.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sma-vol-breakdown/config"
	"sma-vol-breakdown/internal/api"
	"sma-vol-breakdown/internal/app"
	"sma-vol-breakdown/internal/bus"
	"sma-vol-breakdown/internal/gateway"
	"sma-vol-breakdown/internal/logger"
	"sma-vol-breakdown/internal/metrics"
	"sma-vol-breakdown/internal/model"
	"sma-vol-breakdown/internal/pipeline"
	redisstore "sma-vol-breakdown/internal/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[server] config: %v", err)
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	lg := logger.Init("server", level)

	if err := cfg.RequireToken(); err != nil {
		lg.Warn("no Upstox token configured, runs will fail at the fetch stage", slog.String("error", err.Error()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := app.New(cfg, nil, lg)
	if err != nil {
		log.Fatalf("[server] %v", err)
	}
	defer c.Close()

	// Redis is optional: without it the run lock is process-local.
	runnerOpts := []pipeline.RunnerOption{pipeline.WithMetrics(c.Metrics), pipeline.WithLogger(lg)}
	var statusStore *redisstore.StatusStore
	if cfg.RedisAddr != "" {
		rdb, err := redisstore.Connect(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			log.Fatalf("[server] %v", err)
		}
		defer rdb.Close()
		statusStore = redisstore.NewStatusStore(rdb)
		runnerOpts = append(runnerOpts,
			pipeline.WithLocker(redisstore.NewRunLock(rdb, 0)),
			pipeline.WithStatusStore(statusStore))
		c.Health.AddProbe(metrics.RedisProbe(rdb))
	}
	c.Health.StartLivenessChecker(ctx, 15*time.Second)
	if err := c.Health.Err(); err != nil {
		log.Fatalf("[server] dependency check failed: %v", err)
	}

	// Run events: pipeline -> FanOut -> {websocket hub, monitor, redis relay}.
	fan := bus.New(256)
	subscribers := []string{"ws_hub", "monitor"}
	hub := gateway.NewHub(0)
	hub.OnClientCount = func(n int) { c.Metrics.WSClients.Set(float64(n)) }
	go hub.Run(ctx, fan.Subscribe())

	runner := pipeline.NewRunner(ctx, c.Pipeline(false, fan), runnerOpts...)
	go monitor(ctx, fan.Subscribe(), runner, c.Health)

	if statusStore != nil {
		subscribers = append(subscribers, "redis_relay")
		go statusStore.Relay(ctx, fan.Subscribe())
	}
	fan.OnDrop = func(i int) {
		c.Metrics.FanoutDropsTotal.WithLabelValues(subscribers[i]).Inc()
	}

	metricsSrv := metrics.NewServer(cfg.MetricsAddr, c.Health, nil)
	metricsSrv.Start()

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Runner:       runner,
			Outcomes:     c.Store,
			ResultsTable: cfg.ResultsTable(),
			Health:       c.Health,
			Events:       hub,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info("trigger server listening", slog.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[server] http server error: %v", err)
		}
	}()

	<-sigCh
	lg.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", slog.String("error", err.Error()))
	}

	// Cancelling the base context stops any in-flight run at the next stage
	// or instrument boundary.
	cancel()
	runner.Wait()
	fan.Close()
	metricsSrv.Stop(shutdownCtx)
	lg.Info("stopped")
}

// monitor logs run events, tracks the current stage and records completed
// runs for the health endpoint.
func monitor(ctx context.Context, events <-chan model.RunEvent, runner *pipeline.Runner, health *metrics.HealthStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			slog.Debug("run event",
				slog.String("type", string(ev.Type)),
				slog.String("run_id", ev.RunID),
				slog.String("stage", ev.Stage))
			runner.Track(ev)
			if ev.Type == model.EventRunFinished || ev.Type == model.EventRunFailed {
				health.SetLastRunAt(ev.TS)
			}
		}
	}
}
