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

	"github.com/Simplici0/studio-quotes/internal/cache"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/config"
	"github.com/Simplici0/studio-quotes/internal/db"
	"github.com/Simplici0/studio-quotes/internal/engine"
	"github.com/Simplici0/studio-quotes/internal/export"
	"github.com/Simplici0/studio-quotes/internal/logger"
	"github.com/Simplici0/studio-quotes/internal/mailer"
	"github.com/Simplici0/studio-quotes/internal/migrations"
	"github.com/Simplici0/studio-quotes/internal/seed"
	"github.com/Simplici0/studio-quotes/internal/store"
	"github.com/Simplici0/studio-quotes/internal/suggest"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	appLogger := logger.NewZapAdapter(zl)
	defer appLogger.Sync()

	for _, w := range cfg.Warnings {
		appLogger.Warn(w, nil)
	}

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			log.Fatalf("failed to load catalog: %v", err)
		}
	}

	database, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := migrations.Up(database, cfg.DBDriver, cfg.MigrationsDir); err != nil {
		log.Fatalf("failed to run database migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New(database, cfg.DBDriver)
	if cfg.IsDev() {
		stats, err := seed.Run(ctx, st, cat, time.Now())
		if err != nil {
			log.Fatalf("failed to seed demo data: %v", err)
		}
		appLogger.Info("seed complete", map[string]interface{}{"inserts": stats.Inserts, "updates": stats.Updates})
	}

	opts := []engine.Option{
		engine.WithPDFConverter(export.NewChrome(cfg.ChromePath, cfg.PDFTimeout)),
	}
	if cfg.RedisAddr != "" {
		rc := cache.NewRedis(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			appLogger.WithError(err).Warn("redis unreachable; lookups will miss until it recovers", nil)
		}
		opts = append(opts, engine.WithCache(rc))
	}
	if cfg.SuggestionsURL != "" {
		opts = append(opts, engine.WithSuggester(suggest.NewClient(suggest.Config{
			BaseURL:    cfg.SuggestionsURL,
			Timeout:    cfg.SuggestionsTimeout,
			MaxRetries: 2,
		}, appLogger.WithFields(map[string]interface{}{"collaborator": "suggest"}))))
	}
	if cfg.SESFromEmail != "" {
		m, err := mailer.NewSES(ctx, cfg.AWSRegion, cfg.SESFromEmail)
		if err != nil {
			appLogger.WithError(err).Warn("proposal email disabled", nil)
		} else {
			opts = append(opts, engine.WithMailer(m))
		}
	}

	srv := &server{
		svc:    engine.New(st, cat, appLogger, opts...),
		logger: appLogger,
		ping:   database.PingContext,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	appLogger.Info("listening", map[string]interface{}{
		"addr":           httpServer.Addr,
		"catalogVersion": cat.Version,
		"dbDriver":       cfg.DBDriver,
	})
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server stopped: %v", err)
	}
}
