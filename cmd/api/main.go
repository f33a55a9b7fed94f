package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/punchamoorthee/qrtopup/internal/api"
	"github.com/punchamoorthee/qrtopup/internal/config"
	"github.com/punchamoorthee/qrtopup/internal/service"
	"github.com/punchamoorthee/qrtopup/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewStore(cfg.DBSource)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatal(err)
	}

	if cfg.WebhookSecret == "" {
		log.Printf("WEBHOOK_SECRET not set, bank webhooks are accepted unsigned")
	}

	// Initialize Layers
	intents := service.NewIntentService(db, cfg.Channels, cfg.Payee)
	settlements := service.NewSettlementService(db.Db)
	handler := api.NewHandler(intents, settlements, cfg.WebhookSecret, slog.Default())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server starting on :%s (%s)", cfg.Port, cfg.Env)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
