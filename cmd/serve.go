package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"CrudAPI/internal/cache"
	"CrudAPI/internal/config"
	"CrudAPI/internal/db"
	"CrudAPI/internal/logger"
	"CrudAPI/internal/query"
	"CrudAPI/internal/resource"
	"CrudAPI/internal/router"
	"CrudAPI/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func serve(ctx context.Context) error {
	cfg := config.LoadConfig()
	if err := logger.Init(cfg.LogDir); err != nil {
		return err
	}
	logger.SetDebug(debug)

	reg, sers, err := loadModels(cfg)
	if err != nil {
		logger.Error("registry_init_failed", map[string]any{"error": err.Error()})
		return err
	}
	logger.Info("models_initialized", map[string]any{"models": len(reg.Models)})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.InitPostgres(ctx, cfg.PostgresDSN); err != nil {
		logger.Error("postgres_init_failed", map[string]any{"error": err.Error()})
		return err
	}
	defer db.ClosePostgres()
	logger.Info("postgres_connected", nil)

	db.InitRedis(cfg.CountCache.Addr)
	defer db.CloseRedis()
	if db.RDB != nil {
		if err := db.PingRedis(ctx); err != nil {
			// counts fall back to the database per request
			logger.Warn("redis_unreachable", map[string]any{"addr": cfg.CountCache.Addr, "error": err.Error()})
		}
	}

	h := resource.New(reg, sers, store.New(db.Pool), resource.Options{
		Paging: query.ParamConfig{
			DefaultPerPage: cfg.Paging.DefaultPerPage,
			MaxPerPage:     cfg.Paging.MaxPerPage,
		},
		Counts: cache.NewCountCache(db.RDB, cfg.CountCache.TTL),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router.New(h, cfg.APIPrefix, cfg.CORS),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"port": cfg.Port, "prefix": cfg.APIPrefix})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server_error", map[string]any{"error": err.Error()})
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("server_shutdown", nil)
	return srv.Shutdown(shutdownCtx)
}
