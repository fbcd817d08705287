package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/appminic/kamera/internal/api"
	"github.com/appminic/kamera/internal/config"
	"github.com/appminic/kamera/internal/logging"
	"github.com/appminic/kamera/internal/mapscreen"
	"github.com/appminic/kamera/internal/repository"
	"github.com/appminic/kamera/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	log := logging.Setup(cfg.Logging.Level)
	defer func() { _ = log.Sync() }()

	log.Info("Server starting",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		logging.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	client := store.NewClient(db, log)

	sessions := mapscreen.NewSessions(client, cfg.Map.DefaultRegion, cfg.Server.SessionTTL, log)
	sessions.Run(ctx, cfg.Server.SessionTTL/2)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))
	router.Use(api.RateLimitMiddleware(cfg.Server.RateLimitRPS))
	router.Use(api.RequestLogger(log))

	handler := api.NewHandler(db, client, sessions, log)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	cancel()
	sessions.Stop() // ends open event streams

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	}

	log.Info("shutdown complete")
}
