package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phillip/isaithondar-go/auth"
	"github.com/phillip/isaithondar-go/cache"
	"github.com/phillip/isaithondar-go/config"
	controllers "github.com/phillip/isaithondar-go/controllers"
	"github.com/phillip/isaithondar-go/logger"
	"github.com/phillip/isaithondar-go/metrics"
	middleware "github.com/phillip/isaithondar-go/middleware"
	"github.com/phillip/isaithondar-go/routes"
	"github.com/phillip/isaithondar-go/services"
	"github.com/phillip/isaithondar-go/store"
	"github.com/phillip/isaithondar-go/store/memstore"
	"github.com/phillip/isaithondar-go/store/mongostore"
	"github.com/phillip/isaithondar-go/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx := context.Background()

	var db store.Store
	switch cfg.StoreDriver {
	case "memory":
		zl.Warn("using in-memory store; data is lost on restart")
		db = memstore.New()
	default:
		db, err = mongostore.Connect(ctx, cfg.MongoURI, cfg.DBName, zl)
		if err != nil {
			zl.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
	}

	var summaries cache.SummaryCache = cache.Nop{}
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			zl.Warn("redis unavailable, summary cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			summaries = cache.NewRedisSummaryCache(client, cfg.SummaryCacheTTL)
			zl.Info("summary cache enabled", zap.Duration("ttl", cfg.SummaryCacheTTL))
		}
	}

	var uploader utils.Uploader = utils.DisabledUploader{}
	if cfg.CloudinaryEnabled() {
		cld, err := utils.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			zl.Fatal("failed to configure Cloudinary", zap.Error(err))
		}
		uploader = cld
	} else {
		zl.Warn("Cloudinary not configured, uploads disabled")
	}

	var mailer utils.Mailer = utils.LogMailer{Log: zl}
	if cfg.MailEnabled() {
		mailer = utils.NewZeptoMailer(cfg.ZeptoAPIURL, cfg.ZeptoAPIKey, cfg.EmailFrom, zl)
	}

	if err := utils.RegisterValidators(); err != nil {
		zl.Fatal("failed to register validators", zap.Error(err))
	}

	m := metrics.New()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	env := &controllers.Env{
		Auth:        services.NewAuthService(db, tokens, zl, nil),
		Users:       services.NewUserService(db, zl, nil),
		Events:      services.NewEventService(db, uploader, summaries, zl, nil),
		Memberships: services.NewMembershipService(db, m, zl, nil),
		Expenses: services.NewExpenseService(services.ExpenseDeps{
			Store:    db,
			Cache:    summaries,
			Mailer:   mailer,
			Uploader: uploader,
			Metrics:  m,
			Log:      zl,
		}),
		Temples:   services.NewTempleService(db, zl, nil),
		Pathigams: services.NewPathigamService(db, zl, nil),
		Store:     db,
		Log:       zl,
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"ETag", "Last-Modified", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(zl))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(m.Middleware())

	routes.SetupRoutes(r, env, tokens, m)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("forced shutdown", zap.Error(err))
	}
	if err := db.Close(shutdownCtx); err != nil {
		zl.Error("failed to close store", zap.Error(err))
	}
	zl.Info("server stopped")
}
