package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/caro-api/internal/api"
	"github.com/phrazzld/caro-api/internal/config"
	"github.com/phrazzld/caro-api/internal/domain/srs"
	"github.com/phrazzld/caro-api/internal/events"
	"github.com/phrazzld/caro-api/internal/platform/sqlstore"
	"github.com/phrazzld/caro-api/internal/service/analytics"
	"github.com/phrazzld/caro-api/internal/service/gamification"
	"github.com/phrazzld/caro-api/internal/service/notification"
	"github.com/phrazzld/caro-api/internal/service/review"
	"github.com/phrazzld/caro-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const readHeaderTimeout = 10 * time.Second

// application holds the shared dependencies of the server and closes them
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry        *prometheus.Registry
	tracerProvider  trace.TracerProvider
	shutdownTracing func(context.Context) error
	redis           *redis.Client

	bus          *events.Bus
	reviews      review.Service
	analytics    *analytics.Service
	gamification *gamification.Service

	handler http.Handler
}

// newApplication wires the stores, the event bus, its subscribers, and the
// HTTP router on top of an open, migrated database. The application owns db
// from here on.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	dialect sqlstore.Dialect,
) (_ *application, err error) {
	app := &application{
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}
	defer func() {
		if err != nil {
			app.close(context.Background())
		}
	}()

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, dialect.Name),
	)

	location, err := cfg.Review.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid review timezone: %w", err)
	}

	app.tracerProvider, app.shutdownTracing, err = setupTracing(cfg.Tracing, logWriter{logger})
	if err != nil {
		return nil, err
	}

	sender, err := app.newSender(ctx)
	if err != nil {
		return nil, err
	}

	// Stores
	records := sqlstore.NewReviewRecordStore(db, dialect, logger)
	progress := sqlstore.NewMemberProgressStore(db, dialect, logger)
	badges := sqlstore.NewBadgeStore(db, dialect, logger)
	dailyStats := sqlstore.NewDailyStatStore(db, dialect, logger)

	// Event bus
	eventMetrics := events.MustNewMetrics(app.registry)
	executor := task.NewExecutor(task.ExecutorConfig{
		MaxConcurrency: cfg.Events.MaxConcurrentHandlers,
	}, logger)
	executor.SetErrorHandler(eventMetrics.TaskFailed)
	app.bus = events.NewBus(logger,
		events.WithDispatchPolicy(events.NewAsyncPolicy(executor)),
		events.WithFailurePolicy(events.NewLogAndDiscard(logger)),
		events.WithMetrics(eventMetrics),
		events.WithTracerProvider(app.tracerProvider),
	)

	// Subscribers
	app.analytics = analytics.NewService(dailyStats, analytics.Config{Location: location}, logger)

	app.gamification, err = gamification.NewService(db, progress, badges, sender, gamification.Config{
		Location:       location,
		BadgeCacheSize: cfg.Gamification.BadgeCacheSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gamification service: %w", err)
	}

	goals := notification.NewGoalNotifier(app.analytics, sender, notification.GoalConfig{
		DailyGoalCards: cfg.Notification.DailyGoalCards,
		Location:       location,
	}, logger)

	subscriptions := []struct {
		id      string
		handler events.Handler
	}{
		{gamification.HandlerID, app.gamification},
		{analytics.HandlerID, app.analytics},
		{notification.GoalHandlerID, goals},
	}
	for _, s := range subscriptions {
		if err := app.bus.Subscribe(s.id, events.CardReviewedEventName, s.handler); err != nil {
			return nil, fmt.Errorf("failed to subscribe %s: %w", s.id, err)
		}
	}

	// Scheduler
	srsService := srs.NewServiceWithParams(srs.NewParams(srs.ParamsConfig{
		InitialEaseFactor: cfg.Review.InitialEaseFactor,
		MinEaseFactor:     cfg.Review.MinimumEaseFactor,
		MaxInterval:       cfg.Review.MaximumIntervalDays,
	}))
	app.reviews = review.NewService(db, records, srsService, app.bus, review.Config{
		Location:           location,
		MaxConflictRetries: cfg.Review.MaxConflictRetries,
		MapError:           dialect.MapError,
		TracerProvider:     app.tracerProvider,
	}, logger)

	app.handler = api.NewRouter(api.RouterDeps{
		Reviews:  api.NewReviewHandler(app.reviews, logger),
		Stats:    api.NewStatsHandler(app.gamification, app.analytics, logger),
		Health:   []api.HealthCheck{db.PingContext},
		Registry: app.registry,
		Logger:   logger,
	})

	logger.Info("application initialized",
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("timezone", location.String()),
		slog.Int("max_concurrent_handlers", cfg.Events.MaxConcurrentHandlers),
		slog.Bool("redis_notifications", app.redis != nil),
		slog.Bool("tracing", cfg.Tracing.Enabled))
	return app, nil
}

// newSender publishes notifications to Redis when an address is configured
// and logs them otherwise.
func (app *application) newSender(ctx context.Context) (notification.Sender, error) {
	if app.config.Redis.Addr == "" {
		return notification.NewLogSender(app.logger), nil
	}

	client, err := notification.DialRedis(ctx, notification.RedisOptions{
		Addr:     app.config.Redis.Addr,
		Password: app.config.Redis.Password,
		DB:       app.config.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.redis = client
	return notification.NewRedisSender(client, app.config.Notification.Channel, app.logger), nil
}

// Run listens on the configured port and serves until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", app.config.Server.Port))
	if err != nil {
		app.close(context.Background())
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.Serve(ctx, ln)
}

// Serve handles requests on ln until ctx is cancelled or the server fails,
// then drains in-flight requests and event deliveries and releases every
// resource.
func (app *application) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.logger.Info("starting server", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()
	app.close(context.Background())
	return err
}

// close releases resources in dependency order: the bus first so in-flight
// subscribers can still reach the database and Redis.
func (app *application) close(ctx context.Context) {
	if app.bus != nil {
		busCtx, cancel := context.WithTimeout(ctx, app.config.Events.ShutdownTimeout)
		if err := app.bus.Close(busCtx); err != nil {
			app.logger.Error("event bus did not drain", slog.String("error", err.Error()))
		}
		cancel()
	}

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error("failed to close redis client", slog.String("error", err.Error()))
		}
	}

	if app.shutdownTracing != nil {
		if err := app.shutdownTracing(ctx); err != nil {
			app.logger.Error("failed to flush traces", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}

// logWriter writes exported spans as log lines.
type logWriter struct {
	logger *slog.Logger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Info("trace exported", slog.String("spans", string(p)))
	return len(p), nil
}
