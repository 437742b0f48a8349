package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/adpulse-org/adpulse/config"
	"github.com/adpulse-org/adpulse/insights"
	"github.com/adpulse-org/adpulse/logger"
	"github.com/adpulse-org/adpulse/schema"
	"github.com/adpulse-org/adpulse/server"
	"github.com/adpulse-org/adpulse/store"
	"github.com/adpulse-org/adpulse/translator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer log.Sync()

	st := store.NewMemory()
	registry := schema.NewRegistry()

	ins := insights.NewService(st, log)
	// Vendor fetchers register here once their API clients exist; until then
	// the sync endpoint takes already-decoded rows in the request body.
	syncer := insights.NewSyncer(st, nil, log)

	gemini := translator.NewGemini(translator.GeminiConfig{
		APIKey:   cfg.Gemini.APIKey,
		Model:    cfg.Gemini.Model,
		Endpoint: cfg.Gemini.Endpoint,
	})
	tr := translator.NewService(registry, gemini, ins, log)

	handler := server.NewHandler(ins, tr, syncer, cfg.Sync.DefaultWindowDays, log)
	router := server.NewRouter(handler, log)

	srv := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
