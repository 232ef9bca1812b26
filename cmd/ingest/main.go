package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
	"github.com/andresuchdata/dairyplan/backend-go/internal/drive"
	"github.com/andresuchdata/dairyplan/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/dairyplan/backend-go/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(cfg.Server.Mode)
	ctx := context.Background()

	// Initialize Google Drive service
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	if err != nil {
		log.Fatalf("Failed to initialize Google Drive service: %v", err)
	}

	// Initialize Database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	salesRepo := postgres.NewSalesRepository(db)
	if err := salesRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to prepare sales schema: %v", err)
	}

	// Initialize Services
	ingestService := drive.NewIngestService(driveService, salesRepo)

	// Register routes
	r := mux.NewRouter()
	driveHandler := drive.NewHandler(driveService, ingestService)
	driveHandler.RegisterRoutes(r)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logger.Log.Info().Str("addr", addr).Msg("Drive ingest server starting")
	log.Fatal(http.ListenAndServe(addr, r))
}
