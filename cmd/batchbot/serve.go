package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/batch-extractor-bot/api/swagger"
	"github.com/noah-isme/batch-extractor-bot/internal/handler"
	"github.com/noah-isme/batch-extractor-bot/internal/middleware"
	"github.com/noah-isme/batch-extractor-bot/internal/repository"
	"github.com/noah-isme/batch-extractor-bot/internal/service"
	"github.com/noah-isme/batch-extractor-bot/pkg/cache"
	"github.com/noah-isme/batch-extractor-bot/pkg/config"
	"github.com/noah-isme/batch-extractor-bot/pkg/jobs"
	"github.com/noah-isme/batch-extractor-bot/pkg/logger"
	corsmiddleware "github.com/noah-isme/batch-extractor-bot/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/batch-extractor-bot/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the chat webhook and report download server",
	Annotations: map[string]string{"service": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getCfg(cmd)
		logr := getLogger(cmd)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cfg, logr)
		if err != nil {
			return err
		}

		checks := map[string]handler.ReadinessCheck{}
		sessions, closeSessions, err := newSessionStore(ctx, cfg, logr, checks)
		if err != nil {
			return err
		}
		defer closeSessions()

		queue := jobs.NewQueue("report-delivery", jobs.QueueConfig{
			Workers:    cfg.Delivery.Workers,
			MaxRetries: cfg.Delivery.MaxRetries,
			RetryDelay: cfg.Delivery.RetryDelay,
			Logger:     logr.Named("delivery"),
		})
		queue.Register(service.JobTypeDeleteReport, a.exports.HandleDeleteJob)
		queue.Start(ctx)
		defer queue.Stop()
		a.exports.UseQueue(queue)
		a.exports.StartCleanup(ctx, cfg.Exports.CleanupInterval)

		chat := service.NewChatService(a.catalog, sessions, a.summaries, a.exports, service.ChatConfig{
			ChunkLimit:   cfg.Chat.ChunkLimit,
			ExportFormat: a.format,
		}, a.metrics, logr.Named("chat"))

		router := buildRouter(cfg, logr, a, chat, checks)
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "sessions", cfg.Sessions.Store)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logr.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func buildRouter(cfg *config.Config, logr *zap.Logger, a *app, chat *service.ChatService, checks map[string]handler.ReadinessCheck) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(a.metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handler.RegisterRoutes(r, cfg.APIPrefix,
		handler.NewChatHandler(chat),
		handler.NewExportHandler(a.exports),
		handler.NewMetricsHandler(a.metrics, checks),
	)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	return r
}

// newSessionStore picks the memory or Redis store and registers its readiness check.
func newSessionStore(ctx context.Context, cfg *config.Config, logr *zap.Logger, checks map[string]handler.ReadinessCheck) (service.SessionStore, func(), error) {
	switch cfg.Sessions.Store {
	case config.SessionStoreRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, client) }
		store := repository.NewRedisSessionRepository(client, cfg.Sessions.KeyPrefix, cfg.Sessions.TTL, logr.Named("sessions"))
		return store, func() {
			if err := store.Close(); err != nil {
				logr.Warn("closing redis", zap.Error(err))
			}
		}, nil
	case config.SessionStoreMemory, "":
		return repository.NewMemorySessionRepository(cfg.Sessions.TTL, cfg.Sessions.MaxEntries), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown SESSION_STORE %q", cfg.Sessions.Store)
	}
}
