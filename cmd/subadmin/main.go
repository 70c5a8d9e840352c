// Package main запускает HTTP-сервер панели управления подписками.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/config"
	"github.com/mmeshcher/subscription-admin/internal/dayview"
	"github.com/mmeshcher/subscription-admin/internal/handler"
	"github.com/mmeshcher/subscription-admin/internal/middleware"
	"github.com/mmeshcher/subscription-admin/internal/repository"
	"github.com/mmeshcher/subscription-admin/internal/service"
	"github.com/mmeshcher/subscription-admin/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	policy, err := dayview.ParseDuplicatePolicy(cfg.DuplicateMeals)
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	// Без базы данных журнал действий не ведётся.
	var repo service.Repository
	if cfg.DatabaseURI != "" {
		pg, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
		repo = pg
	} else {
		sugar.Warn("DATABASE_URI is empty, action log is disabled")
	}

	client := actions.NewClient(cfg.APIBaseURL, cfg.APITimeout, logger)
	sessions := session.NewRegistry(cfg.SessionTTL, logger)

	svc := service.NewService(client, repo, sessions, logger, service.Options{
		DuplicatePolicy: policy,
		PriceDebounce:   cfg.PriceDebounce,
	})
	defer svc.Close()

	sessionMiddleware := middleware.NewSessionMiddleware(cfg.SessionSecret, cfg.SessionTTL)
	h := handler.NewHandler(svc, logger, sessionMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	sessions.StartReaper(ctx, cfg.SessionTTL/4)

	g.Go(func() error {
		sugar.Infow("starting subscription admin server", "addr", cfg.RunAddress, "api", cfg.APIBaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
