package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/lsurma/data-manager/internal/api"
	"github.com/lsurma/data-manager/internal/auth"
	"github.com/lsurma/data-manager/internal/config"
	"github.com/lsurma/data-manager/internal/cultures"
	"github.com/lsurma/data-manager/internal/db"
	"github.com/lsurma/data-manager/internal/export"
	"github.com/lsurma/data-manager/internal/hierarchy"
	"github.com/lsurma/data-manager/internal/ingestion"
	"github.com/lsurma/data-manager/internal/materialize"
	"github.com/lsurma/data-manager/internal/middleware"
	"github.com/lsurma/data-manager/internal/query"
	"github.com/lsurma/data-manager/internal/repository"
	"github.com/lsurma/data-manager/internal/versioning"
	"github.com/lsurma/data-manager/internal/webhook"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(os.Getenv("DM_CONFIG_PATH"), logger)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Database, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Create repositories
	dataSetRepo := repository.NewDataSetRepository(conn.Pool)
	translationRepo := repository.NewTranslationRepository(conn.Pool)

	// Create services
	gate := auth.NewGate(dataSetRepo, cfg.Auth.AdminIdentities)
	composer := query.NewComposer(query.NewRegistry(), gate)
	hierarchySvc := hierarchy.NewService(dataSetRepo)
	materializer := materialize.NewService(translationRepo, hierarchySvc, logger,
		materialize.WithBatchSize(cfg.Sync.BatchSize))
	writer := versioning.NewService(translationRepo, logger)
	exporter := export.NewService(materializer, logger)
	importer := ingestion.NewHTTPHandler(ingestion.NewService(writer, logger))
	cultureProvider := cultures.NewProvider(nil)

	notifier := webhook.NewNotifier(logger, webhook.Config{
		Workers: cfg.Webhook.Workers,
		Timeout: time.Duration(cfg.Webhook.TimeoutSeconds) * time.Second,
	})
	notifier.Start(ctx)
	defer notifier.Stop()

	// Periodic materialization sweep over every data set with includes
	scheduler := cron.New()
	if cfg.Sync.MaterializeSchedule != "" {
		_, err := scheduler.AddFunc(cfg.Sync.MaterializeSchedule, func() {
			sweep(ctx, logger, dataSetRepo, materializer)
		})
		if err != nil {
			logger.Fatal("Invalid materialize schedule", zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	router := api.NewRouter(api.Deps{
		Logger:       logger,
		DataSets:     dataSetRepo,
		Translations: translationRepo,
		Composer:     composer,
		Gate:         gate,
		Hierarchy:    hierarchySvc,
		Materializer: materializer,
		Writer:       writer,
		Exporter:     exporter,
		Importer:     importer,
		Notifier:     notifier,
		Cultures:     cultureProvider,
	})

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	handler := corsHandler.Handler(
		middleware.LoggingMiddleware(logger)(
			middleware.IdentityMiddleware(
				middleware.DataLoaderMiddleware(translationRepo)(router),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// sweep re-materializes every data set that includes others. It runs with an
// authorization bypass since no caller identity applies.
func sweep(ctx context.Context, logger *zap.Logger, dataSets repository.DataSetRepository, m *materialize.Service) {
	ctx = auth.ContextWithBypass(ctx)

	all, err := dataSets.ListAll(ctx)
	if err != nil {
		logger.Error("Materialize sweep failed to list data sets", zap.Error(err))
		return
	}

	for _, ds := range all {
		if len(ds.Includes) == 0 {
			continue
		}
		result, err := m.Materialize(ctx, ds.ID)
		if err != nil {
			logger.Error("Materialize sweep failed",
				zap.String("dataSet", ds.Name), zap.Error(err))
			continue
		}
		if result.Touched() > 0 {
			logger.Info("Materialize sweep updated data set",
				zap.String("dataSet", ds.Name),
				zap.Int("inserted", result.Inserted),
				zap.Int("updated", result.Updated),
				zap.Int("removed", result.Removed))
		}
	}
}
