// Package main runs the ad store HTTP server with a websocket change feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-webinar/adstore/config"
	"github.com/aura-webinar/adstore/internal/ads"
	"github.com/aura-webinar/adstore/internal/auth"
	"github.com/aura-webinar/adstore/internal/middleware"
	"github.com/aura-webinar/adstore/internal/realtime"
	"github.com/aura-webinar/adstore/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer be.close()
	logger.Info("ad storage ready", zap.String("backend", cfg.Storage.Backend), zap.String("key", cfg.Storage.Key))

	repo := ads.NewRepository(be.store, logger, ads.WithKey(cfg.Storage.Key))

	var hub *realtime.Hub
	if be.redis != nil {
		feed := realtime.NewRedisPubSub(be.redis.Client, cfg.Storage.Key, logger)
		hub = realtime.NewHub(logger, feed, feed)
	} else {
		hub = realtime.NewHub(logger, nil, nil)
	}
	adHandler := ads.NewHandler(repo, hub, logger)

	var rotator *ads.Rotator
	if cfg.Ads.RotateIntervalSec > 0 {
		rotator = ads.NewRotator(repo, hub, time.Duration(cfg.Ads.RotateIntervalSec)*time.Second, logger)
		rotator.Start()
		defer rotator.Stop()
	}

	// Mutations need an admin token once a secret is configured.
	var guard []gin.HandlerFunc
	if cfg.JWT.Secret != "" {
		jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
		guard = append(guard, middleware.JWT(jwtService), middleware.RequireRole(auth.RoleAdmin))
	} else {
		logger.Warn("JWT_SECRET not set; ad mutations are unauthenticated")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	adHandler.Routes(router, guard...)
	router.GET("/ws", realtime.ServeWs(hub, logger, func(c *gin.Context) (string, interface{}) {
		return ads.EventAdsChanged, repo.Load(c.Request.Context())
	}))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
