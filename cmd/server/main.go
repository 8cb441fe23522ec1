package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-resolver/backend/internal/api"
	"github.com/codyseavey/card-resolver/backend/internal/config"
	"github.com/codyseavey/card-resolver/backend/internal/database"
	"github.com/codyseavey/card-resolver/backend/internal/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	services.SetLogLevel(cfg.Server.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	if err := database.Initialize(cfg.DB.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Card source: the Pokemon TCG API, or the local JSON export
	var cardSource services.CardSource
	if cfg.UseLocalCards() {
		index, err := services.NewLocalCardIndex(cfg.TCG.DataDir, cfg.TCG.DownloadData)
		if err != nil {
			log.Fatalf("Failed to load local card data: %v", err)
		}
		log.Printf("Loaded %d Pokemon cards from %d sets", index.GetCardCount(), index.GetSetCount())
		cardSource = index
	} else {
		cardSource = services.NewPokemonTCGService(services.PokemonTCGOptions{
			APIKey:           cfg.TCG.APIKey,
			BaseURL:          cfg.TCG.BaseURL,
			RateLimitPerHour: cfg.TCG.RateLimitPerHour,
			CacheTTL:         cfg.TCG.CacheTTL,
			CacheSize:        cfg.TCG.CacheSize,
		})
	}

	extractor := services.NewGeminiExtractor(services.GeminiOptions{
		APIKey: cfg.Gemini.APIKey,
		Model:  cfg.Gemini.Model,
	})
	imageStorage := services.NewImageStorageService(cfg.Storage.ScannedImagesDir)
	history := services.NewScanHistory(database.GetDB())
	resolver := services.NewCardResolver(cardSource)
	scanService := services.NewScanService(extractor, resolver, imageStorage, history)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var refreshWorker *services.CardRefreshWorker
	if cfg.Refresh.Enabled {
		refreshWorker = services.NewCardRefreshWorker(cardSource, database.GetDB(), services.RefreshOptions{
			BatchSize:  cfg.Refresh.BatchSize,
			Interval:   cfg.Refresh.Interval,
			StaleAfter: cfg.Refresh.StaleAfter,
		})

		// Start refresh worker in background with panic recovery
		go func() {
			for {
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in refresh worker: %v - restarting in 30 seconds", r)
						}
					}()
					refreshWorker.Start(ctx)
				}()

				select {
				case <-ctx.Done():
					return
				case <-time.After(30 * time.Second):
					log.Println("Refresh worker restarting after panic recovery...")
				}
			}
		}()
	}

	router := api.SetupRouter(api.RouterOptions{
		ScanService:      scanService,
		CardSource:       cardSource,
		History:          history,
		RefreshWorker:    refreshWorker,
		ImageStorage:     imageStorage,
		CORSOrigins:      cfg.Server.CORSOrigins,
		FrontendDistPath: cfg.Server.FrontendDistPath,
	})

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s (card source: %s)", cfg.Server.Port, cfg.TCG.CardSource)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the refresh worker
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
