package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/vrajkachhadiya/pharmasync-erp/internal/app"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/auth"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/catalog"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/invoice"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/observability"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/orders"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/cache"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/platform/db"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/rbac"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/shared"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/stats"
	"github.com/vrajkachhadiya/pharmasync-erp/internal/users"
	"github.com/vrajkachhadiya/pharmasync-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokens := shared.NewTokenManager(redisClient, cfg.TokenSecret, cfg.TokenTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	rbacMiddleware := rbac.Middleware{Tokens: tokens, Logger: logger}

	statsCache := stats.NewCache(redisClient, cfg.StatsCacheTTL)
	statsService := stats.NewService(stats.NewRepository(dbpool), statsCache)
	statsHandler := stats.NewHandler(logger, statsService, rbacMiddleware)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokens)
	authHandler := auth.NewHandler(logger, authService, rbacMiddleware)

	catalogRepo := catalog.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, auditLogger).WithStats(statsService)
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	ordersService := orders.NewService(orders.NewRepository(dbpool), auditLogger).WithStats(statsService)
	ordersHandler := orders.NewHandler(logger, ordersService, rbacMiddleware)

	usersService := users.NewService(users.NewRepository(dbpool), tokens, auditLogger).WithStats(statsService)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	pdfExporter, err := invoice.NewPDFExporter(cfg.GotenbergURL, http.DefaultClient)
	if err != nil {
		logger.Error("init invoice exporter", slog.Any("error", err))
		os.Exit(1)
	}
	invoiceHandler := invoice.NewHandler(logger, ordersService, authRepo, catalogRepo, pdfExporter, rbacMiddleware)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		OrdersHandler:  ordersHandler,
		InvoiceHandler: invoiceHandler,
		StatsHandler:   statsHandler,
		UsersHandler:   usersHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
