package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/iabdinur/blog/analytics"
	"github.com/iabdinur/blog/auth"
	"github.com/iabdinur/blog/authors"
	"github.com/iabdinur/blog/cache"
	"github.com/iabdinur/blog/comments"
	"github.com/iabdinur/blog/common"
	"github.com/iabdinur/blog/config"
	"github.com/iabdinur/blog/database"
	"github.com/iabdinur/blog/email"
	"github.com/iabdinur/blog/newsletter"
	"github.com/iabdinur/blog/posts"
	"github.com/iabdinur/blog/search"
	"github.com/iabdinur/blog/storage"
	"github.com/iabdinur/blog/tags"
	"github.com/iabdinur/blog/users"
)

func main() {
	cfg := config.Load()
	slog.SetDefault(slog.New(common.NewSlogHandler(cfg.Debug, os.Stderr)))

	db, err := common.ConnectDb(cfg.DatabaseFile)
	if err != nil {
		slog.Error("could not open database", "file", cfg.DatabaseFile, "err", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(db); err != nil {
		os.Exit(1)
	}

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiry)
	mailer := email.NewSMTPMailer(cfg, db)
	images := storage.NewImageStore(cfg.UploadDir)
	responseCache := cache.NewCache(time.Minute)
	analyticsModule := analytics.NewModule(db)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(common.CORS(cfg.CORSAllowedOrigins))

	minuteLimiter := common.NewRateLimiter(60, time.Minute)
	hourLimiter := common.NewRateLimiter(1000, time.Hour)
	router.Use(minuteLimiter.Middleware(common.SkipViewTracking))
	router.Use(hourLimiter.Middleware(common.SkipViewTracking))

	api := router.Group("/api/v1")
	posts.NewModule(db, responseCache, analyticsModule, issuer).RegisterRoutes(api)
	comments.NewModule(db, responseCache, issuer).RegisterRoutes(api)
	tags.NewModule(db, responseCache, issuer).RegisterRoutes(api)
	authors.NewModule(db, responseCache, issuer).RegisterRoutes(api)
	users.NewModule(db, issuer, mailer, images).RegisterRoutes(api)
	newsletter.NewModule(db).RegisterRoutes(api)
	search.NewModule(db).RegisterRoutes(api)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	posts.NewScheduler(db, mailer, responseCache).Start(schedulerCtx)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "err", err)
	}
	slog.Info("server stopped")
}
