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

	"clinicstock/m/internal/api"
	"clinicstock/m/internal/config"
	"clinicstock/m/internal/database"
	"clinicstock/m/internal/ledger"
	"clinicstock/m/internal/migrations"
	"clinicstock/m/internal/monitor"
	"clinicstock/m/internal/seed"
	"clinicstock/m/internal/store"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inventory := store.NewInventoryRepo(db)
	if n, err := seed.LoadInventory(ctx, inventory, cfg.SeedCSV); err != nil {
		log.Printf("inventory seed failed: %v", err)
	} else if n > 0 {
		log.Printf("seeded %d inventory lots from %s", n, cfg.SeedCSV)
	}

	opts := ledger.Options{
		Horizon:           ledger.Days(cfg.AlertHorizonDays),
		LowStockThreshold: cfg.LowStockThreshold,
	}
	if cfg.AlertHorizonMonth {
		opts.Horizon = ledger.CalendarMonth()
	}
	alerts := monitor.New(inventory, opts, monitor.WithInterval(cfg.RefreshInterval))
	if err := alerts.Refresh(ctx); err != nil {
		log.Printf("initial alert refresh failed: %v", err)
	}
	go alerts.Run(ctx)

	handler := api.New(db, cfg.Secret, alerts, cfg.CORSOrigins)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("clinic stock server starting on :%s", cfg.HTTPPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("server stopped")
}
