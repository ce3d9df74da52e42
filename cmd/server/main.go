package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"betledger/internal/cache"
	"betledger/internal/config"
	cronrunner "betledger/internal/cron"
	"betledger/internal/db"
	"betledger/internal/generator"
	"betledger/internal/handler"
	"betledger/internal/logger"
	"betledger/internal/oracle"
	gormrepository "betledger/internal/repository/gorm"
	"betledger/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("BL_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("BL_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	cacheStore := cache.New(store, logger)

	oracleClient := oracle.NewClient(cfg.Oracle.BaseURL,
		oracle.WithTimeout(cfg.Oracle.Timeout),
		oracle.WithRateLimit(cfg.Oracle.RateLimit, cfg.Oracle.Burst),
	)
	generatorClient := generator.NewClient(cfg.Generator.BaseURL,
		generator.WithTimeout(cfg.Generator.Timeout),
	)

	settingsSvc := &service.SettingsService{Repo: store, Logger: logger, Config: cfg.Budget}
	strategySvc := &service.StrategyService{Repo: store, Logger: logger}
	ledgerSvc := &service.LedgerService{
		Repo:          store,
		Cache:         cacheStore,
		Settings:      settingsSvc,
		Logger:        logger,
		Config:        cfg.Ledger,
		SettlementTTL: cfg.Reconcile.SettlementTTL,
	}
	reconcileSvc := &service.ReconcileService{
		Repo:     store,
		Cache:    cacheStore,
		Oracle:   oracleClient,
		Strategy: strategySvc,
		Logger:   logger,
		Config:   cfg.Reconcile,
	}
	feedSvc := &service.FeedService{
		Cache:  cacheStore,
		Source: generatorClient,
		Logger: logger,
		Config: cfg.Feed,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	betsHandler := &handler.BetsHandler{Ledger: ledgerSvc}
	betsHandler.Register(engine)
	statsHandler := &handler.StatsHandler{Ledger: ledgerSvc}
	statsHandler.Register(engine)
	strategiesHandler := &handler.StrategiesHandler{Strategies: strategySvc}
	strategiesHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Settings: settingsSvc}
	settingsHandler.Register(engine)
	feedHandler := &handler.FeedHandler{Feed: feedSvc}
	feedHandler.Register(engine)
	reconcileHandler := &handler.ReconcileHandler{Reconcile: reconcileSvc}
	reconcileHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		if _, err := cronRunner.Add(cfg.Cron.Reconcile, func(ctx context.Context) {
			if err := reconcileSvc.TryRun(ctx); err != nil && err != service.ErrPassInFlight {
				logger.Warn("cron reconcile failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register reconcile failed", zap.Error(err))
		}
		if _, err := cronRunner.Add(cfg.Cron.Cleanup, func(ctx context.Context) {
			if _, err := ledgerSvc.Prune(ctx); err != nil {
				logger.Warn("cron cleanup failed", zap.Error(err))
			}
		}); err != nil {
			logger.Warn("cron register cleanup failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Session-ID")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
