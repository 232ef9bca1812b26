// backend-go/cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/dairyplan/backend-go/internal/api"
	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
	"github.com/andresuchdata/dairyplan/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		logger.Configure(os.Stdout, true)
		logger.SetLevel(cfg.Server.Mode)
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	// The sales database is optional; uploads are kept in memory without it
	var repo repository.SalesRepository
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer db.Close()

		repo = postgres.NewSalesRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to prepare sales schema")
		}
	}

	stack, err := service.Bootstrap(ctx, cfg, repo)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize planning services")
	}

	if repo != nil {
		if _, err := stack.Planning.LoadFromRepository(ctx, domain.SalesFilter{}); err != nil {
			logger.Log.Warn().Err(err).Msg("No stored sales loaded at startup")
		}
	}

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{Planning: stack.Planning}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
