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

	"github.com/joho/godotenv"

	"pharmacy/m/internal/api"
	"pharmacy/m/internal/backup"
	"pharmacy/m/internal/checkout"
	"pharmacy/m/internal/config"
	"pharmacy/m/internal/database"
	"pharmacy/m/internal/logging"
	"pharmacy/m/internal/migrations"
	"pharmacy/m/internal/monitor"
	"pharmacy/m/internal/reconcile"
	"pharmacy/m/internal/seed"
	"pharmacy/m/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "pharmacy",
		Output:      os.Stdout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()
	if path := cfg.DatabasePath(); path != "" {
		logger.Info("database opened", "path", path)
	}

	applied, err := migrations.Run(ctx, db)
	if err != nil {
		log.Fatalf("migrations failed: %v", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", "versions", applied)
	}

	backup.RunBestEffort(ctx, db, cfg.BackupDir, time.Now(), logger)

	st := store.New(db, logger)
	if cfg.SeedCSV != "" {
		if n, err := seed.LoadMedicines(ctx, st, cfg.SeedCSV, logger); err != nil {
			logger.Warn("medicine seed skipped", "path", cfg.SeedCSV, "error", err)
		} else {
			logger.Info("medicines seeded", "path", cfg.SeedCSV, "count", n)
		}
	}

	engine := reconcile.New(st, logger)
	refresher := monitor.NewRefresher(st, cfg.RefreshInterval, cfg.LowStockThreshold, cfg.NearExpiryDays, logger)
	go refresher.Run(ctx)

	handler := api.New(api.Deps{
		Store:          st,
		Engine:         engine,
		Checkout:       checkout.New(st, engine),
		Refresher:      refresher,
		Logger:         logger,
		AllowedOrigin:  cfg.AllowedOrigin,
		NearExpiryDays: cfg.NearExpiryDays,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("pharmacy server starting", "addr", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
