package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"expeditor/internal/audit"
	"expeditor/internal/bus"
	"expeditor/internal/config"
	"expeditor/internal/database"
	"expeditor/internal/engine"
	"expeditor/internal/monitoring"
	"expeditor/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		logger = logger.Level(level)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(cfg.Database.Dialect, cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	auditStore, err := audit.NewStore(db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate audit store")
	}

	notifier := bus.NewInProcess(logger)
	defer notifier.Close()

	monitor := monitoring.NewMonitor(prometheus.DefaultRegisterer)

	eng := engine.New(engine.Config{
		InstanceID:   cfg.Engine.InstanceID,
		Notifier:     notifier,
		Monitor:      monitor,
		Audit:        auditStore,
		Logger:       logger,
		TickInterval: cfg.TickInterval(),
	})
	defer eng.Close()
	go eng.Run(ctx)

	srv := server.New(eng, auditStore, notifier, logger)
	defer srv.Close()

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go startMetricsServer(cfg.Server.MetricsPort, logger)

	// Graceful shutdown: stop accepting requests, then stop the tick loop
	// so no transition fires after the boards unmount.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
		cancel()
	}()

	logger.Info().Int("port", cfg.Server.Port).Str("instance", cfg.Engine.InstanceID).
		Msg("starting API server")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("API server error")
	}
}

func startMetricsServer(port int, logger zerolog.Logger) {
	metricsRouter := gin.New()
	metricsRouter.GET("/metrics", gin.WrapH(promhttp.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	logger.Info().Int("port", port).Msg("starting metrics server")
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
