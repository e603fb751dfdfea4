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
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"CapIot.powerfeed/internal/config"
	"CapIot.powerfeed/internal/controller"
	"CapIot.powerfeed/internal/feed"
	"CapIot.powerfeed/internal/logging"
	"CapIot.powerfeed/internal/metrics"
	"CapIot.powerfeed/internal/middleware"
	"CapIot.powerfeed/internal/notify"
	"CapIot.powerfeed/internal/refresh"
	"CapIot.powerfeed/internal/repository"
	"CapIot.powerfeed/internal/routes"
	"CapIot.powerfeed/internal/service"
	"CapIot.powerfeed/internal/timecodec"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, health, closeSource := newSource(cfg, logger)
	defer closeSource()

	m := metrics.New(prometheus.DefaultRegisterer)

	queue := notify.NewQueue(cfg.ToastMaxItems, cfg.ToastTimeout)
	defer queue.Close()
	notifier := notify.Multi{notify.LogNotifier{Logger: logger}, queue}

	svc := service.NewDataService(source,
		service.WithNotifier(notifier),
		service.WithLogger(logger),
		service.WithUnits(cfg.Units),
		service.WithAccumulator(cfg.Accumulator),
		service.WithTargets(cfg.Targets),
		service.WithMetrics(m),
	)

	refreshOpts := []refresh.Option{refresh.WithLogger(logger), refresh.WithMetrics(m)}
	if cfg.RedisAddr != "" {
		client, err := newRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		ttl := cfg.FeedTimeout + cfg.RefreshInterval
		refreshOpts = append(refreshOpts, refresh.WithGuard(refresh.NewRedisGuard(client, cfg.RedisKey, ttl)))
		logger.Info("using Redis refresh guard", "addr", cfg.RedisAddr, "key", cfg.RedisKey)
	}
	refresher := refresh.New(svc, cfg.RefreshInterval, refreshOpts...)
	refresher.Start(ctx)
	defer refresher.Stop()

	var auth routes.Middleware
	if cfg.AuthEnabled() {
		auth, err = middleware.EnsureValidToken(cfg.Auth0Issuer, cfg.Auth0Audience)
		if err != nil {
			return err
		}
	}

	dataController := controller.NewDataController(refresher, svc, queue, timecodec.SystemClock{}, health, cfg.DefaultWindowMinutes, logger)
	router := routes.NewRouter(dataController, m, auth)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", server.Addr, "source", cfg.FeedSource)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newSource builds the configured feed source. The returned checker is nil
// for sources without a backend to probe.
func newSource(cfg config.Config, logger *slog.Logger) (feed.Source, controller.HealthChecker, func()) {
	switch cfg.FeedSource {
	case config.SourceFile:
		return feed.FileSource{Path: cfg.FeedFile}, nil, func() {}
	case config.SourceInflux:
		src := repository.NewInfluxDBSource(cfg.InfluxDBURL, cfg.InfluxDBToken, cfg.InfluxDBOrg, cfg.InfluxDBBucket,
			repository.WithMeasurement(cfg.InfluxDBMeasurement),
			repository.WithLookback(cfg.InfluxDBLookback),
			repository.WithLocation(cfg.TimeZone),
			repository.WithInfluxLogger(logger),
		)
		return src, src, src.Close
	default:
		return feed.NewHTTPSource(cfg.FeedURL, cfg.FeedTimeout), nil, func() {}
	}
}

func newRedisClient(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
