package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/config"
	"github.com/mamadbah2/bakery/internal/repository"
	"github.com/mamadbah2/bakery/internal/repository/memory"
	"github.com/mamadbah2/bakery/internal/repository/mongodb"
	"github.com/mamadbah2/bakery/internal/repository/sheets"
	"github.com/mamadbah2/bakery/internal/scheduler"
	"github.com/mamadbah2/bakery/internal/server/handlers"
	"github.com/mamadbah2/bakery/internal/server/router"
	commandsvc "github.com/mamadbah2/bakery/internal/service/commands"
	productionsvc "github.com/mamadbah2/bakery/internal/service/production"
	reportingsvc "github.com/mamadbah2/bakery/internal/service/reporting"
	stocksvc "github.com/mamadbah2/bakery/internal/service/stock"
	whatsappsvc "github.com/mamadbah2/bakery/internal/service/whatsapp"
	whatsappclient "github.com/mamadbah2/bakery/pkg/clients/whatsapp"
	"github.com/mamadbah2/bakery/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(logger.Options{Level: cfg.Logger.Level, File: cfg.Logger.File}))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	loc, err := cfg.Location()
	if err != nil {
		baseLogger.Fatal("invalid timezone", zap.Error(err))
	}

	store, err := openStore(cfg, baseLogger.Named("repo"))
	if err != nil {
		baseLogger.Fatal("failed to init storage", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			baseLogger.Error("failed to close storage", zap.Error(err))
		}
	}()

	pricing := cfg.Pricing()
	ledger := stocksvc.NewLedger(store, baseLogger.Named("svc.stock"))
	productionSvc := productionsvc.NewService(store, ledger, pricing, loc, baseLogger.Named("svc.production"))
	reportingSvc := reportingsvc.NewService(store, pricing, loc, baseLogger.Named("svc.reporting"))

	var waClient *whatsappclient.CloudClient
	if cfg.WhatsApp.AccessToken != "" {
		waClient = whatsappclient.NewClient(cfg.WhatsApp)
	}

	var webhookHandler *handlers.WebhookHandler
	if cfg.WebhookEnabled() {
		dispatcher := commandsvc.NewService(productionSvc, ledger, reportingSvc, loc, baseLogger.Named("svc.commands"))
		messaging := whatsappsvc.NewMetaWhatsAppService(cfg.WhatsApp.VerifyToken, dispatcher, waClient, baseLogger.Named("svc.whatsapp"))
		webhookHandler = handlers.NewWebhookHandler(messaging, baseLogger.Named("handlers.webhook"))
		baseLogger.Info("whatsapp command webhook enabled")
	}

	materialsHandler := handlers.NewMaterialsHandler(ledger, baseLogger.Named("handlers.materials"))
	productionHandler := handlers.NewProductionHandler(productionSvc, reportingSvc, loc, baseLogger.Named("handlers.production"))
	engine := router.New(materialsHandler, productionHandler, router.Options{
		Mode:           cfg.Server.Mode,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Webhook:        webhookHandler,
	}, baseLogger.Named("router"))

	var notifier scheduler.Notifier
	if cfg.NotificationsEnabled() {
		notifier = whatsappclient.NewNotifier(waClient, cfg.WhatsApp.ReportRecipient)
		baseLogger.Info("whatsapp daily report enabled")
	} else {
		baseLogger.Warn("whatsapp report recipient missing, daily report will only be logged")
	}

	var exporter scheduler.Exporter
	if cfg.SheetsEnabled() {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(context.Background(), cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		exporter = sheets.NewSummaryExporter(sheetsRepo)
	}

	sched := scheduler.NewScheduler(cfg.Reporting, loc, reportingSvc, productionSvc, notifier, exporter, baseLogger.Named("scheduler"))
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func openStore(cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("using in-memory storage, data is lost on restart")
		return memory.NewRepository(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
	defer cancel()
	return mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, log.Named("mongodb"))
}
