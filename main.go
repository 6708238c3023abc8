package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"repricer/config"
	"repricer/controllers"
	"repricer/logger"
	"repricer/routes"
	"repricer/scheduler"
	"repricer/services/events"
	"repricer/services/marketplace"
	"repricer/services/pricecache"
	"repricer/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if err := logger.Initialize(cfg.Environment); err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer logger.Sync()
	appLog := logger.Component("main")

	appLog.Infof("Repricer starting: %d accounts, %d tracked apps", len(cfg.MarketAPIKeys), len(cfg.AppIDs))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	kv, err := store.NewRedisKV(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	cancel()
	if err != nil {
		appLog.Fatalf("Store error: %v", err)
	}
	defer kv.Close()

	audit, err := store.NewAuditStore(cfg.SQLitePath)
	if err != nil {
		appLog.Fatalf("Audit store error: %v", err)
	}
	defer audit.Close()

	api := marketplace.NewClient(cfg.MarketAPIURL)
	cache := pricecache.New(kv, api, cfg.AppIDs, cfg.KeyNamespace)
	checkpoints := store.NewCheckpointStore(kv, cfg.KeyNamespace)
	hub := events.NewHub()
	defer hub.Close()

	supervisor := scheduler.NewSupervisor(cfg, api, cache, checkpoints, audit, hub)
	if err := supervisor.Start(); err != nil {
		appLog.Fatalf("Scheduler error: %v", err)
	}

	// Ops surface: health, status, run history, event stream
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	status := controllers.NewStatusController(supervisor, audit, kv, cache, hub)
	routes.SetupRoutes(router, cfg, status)

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLog.Infof("Ops server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down...")

	supervisor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Warnf("Server shutdown error: %v", err)
	}

	appLog.Info("Shutdown complete")
}
