package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"parkgrid/internal/admin"
	"parkgrid/internal/config"
	"parkgrid/internal/controller"
	"parkgrid/internal/events"
	"parkgrid/internal/export"
	"parkgrid/internal/ledger"
	"parkgrid/internal/metrics"
	"parkgrid/internal/models"
	"parkgrid/internal/parkapi"
	"parkgrid/internal/registry"
	"parkgrid/internal/session"
	"parkgrid/internal/store"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("PARKGRID_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.API.BaseURL == "" {
		logger.Fatal().Msg("set api.base_url in config")
	}

	kv, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store error")
	}
	defer kv.Close()

	gate := session.New(kv, &logger)

	client := parkapi.NewClient(cfg.API.BaseURL, gate.Token)
	client.UseRateLimit(cfg.API.RateLimitPerSecond, cfg.API.RateLimitBurst)

	var rdb *redis.Client
	if cfg.Redis.Address != "" && cfg.CacheTTL() > 0 {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		client.UseRedisCache(rdb, cfg.CacheTTL())
	}

	bus := events.NewBus()
	reg := registry.New(bus)
	led := ledger.New(bus)

	limits := controller.Limits{
		MinHours:     cfg.MinDuration(),
		MaxHours:     cfg.MaxDuration(),
		DefaultHours: cfg.DefaultDuration(),
	}
	ctrl := controller.New(client, reg, led, gate, limits, cfg.RequestTimeout(), &logger)
	adm := admin.New(client, reg, led, gate, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, client, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Str("base_url", cfg.API.BaseURL).Msg("parkgrid started")
	runRefreshLoop(ctx, cfg, client, reg, led, ctrl, adm, gate, &logger)
}

// runRefreshLoop polls slot status on the configured interval. With an
// active session it reconciles the booking ledger as well; admin sessions
// load the full dashboard and optionally write the Excel report.
func runRefreshLoop(
	ctx context.Context,
	cfg *config.Config,
	client *parkapi.Client,
	reg *registry.Registry,
	led *ledger.Ledger,
	ctrl *controller.Controller,
	adm *admin.Service,
	gate *session.Gate,
	logger *zerolog.Logger,
) {
	refresh := func() {
		reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout())
		defer cancel()

		if gate.RequireRole(models.RoleAdmin) {
			dash, err := adm.LoadDashboard(reqCtx)
			if err != nil {
				logger.Warn().Err(err).Msg("dashboard refresh failed")
				return
			}
			stats := reg.Stats()
			metrics.SetSlotsAvailable(stats.Available)
			logger.Info().
				Int("slots", len(dash.Slots)).
				Int("bookings", len(dash.Bookings)).
				Int("users", len(dash.Users)).
				Msg("dashboard refreshed")

			if cfg.Report.Path != "" {
				writeReport(cfg.Report.Path, dash, logger)
			}
			return
		}

		slots, err := client.GetSlotStatus(reqCtx)
		if err != nil {
			logger.Warn().Err(err).Msg("slot refresh failed")
			return
		}
		reg.Load(slots)

		stats := reg.Stats()
		metrics.SetSlotsAvailable(stats.Available)
		logger.Info().
			Int("available", stats.Available).
			Int("occupied", stats.Occupied).
			Int("total", stats.Total).
			Msg("slot status refreshed")

		if gate.Current() == nil {
			return
		}
		if err := ctrl.RefreshBookings(reqCtx); err != nil {
			logger.Warn().Err(err).Msg("booking refresh failed")
			return
		}
		counts := led.Counts(time.Now())
		logger.Info().
			Int("active", counts.Active).
			Int("upcoming", counts.Upcoming).
			Int("total", counts.Total).
			Msg("bookings refreshed")
	}

	refresh()
	ticker := time.NewTicker(cfg.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down")
			return
		case <-ticker.C:
			refresh()
		}
	}
}

func writeReport(path string, dash *admin.Dashboard, logger *zerolog.Logger) {
	report := export.NewReport()
	defer report.Close()

	now := time.Now()
	if err := report.AddBookings(dash.Bookings, now); err != nil {
		logger.Warn().Err(err).Msg("report bookings sheet failed")
		return
	}
	if err := report.AddSlots(dash.Slots); err != nil {
		logger.Warn().Err(err).Msg("report slots sheet failed")
		return
	}
	if err := report.SaveToFile(path); err != nil {
		logger.Warn().Err(err).Msg("report write failed")
		return
	}
	logger.Info().Str("path", path).Msg("report written")
}

func startHealthServer(ctx context.Context, port int, client *parkapi.Client, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := client.HealthCheck(ctxPing); err != nil {
			http.Error(w, "backend not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
