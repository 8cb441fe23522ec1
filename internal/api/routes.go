package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/card-resolver/backend/internal/api/handlers"
	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/services"
)

// RouterOptions carries the services and settings the router needs.
// CardSource, History, RefreshWorker and ImageStorage may be nil.
type RouterOptions struct {
	ScanService      *services.ScanService
	CardSource       services.CardSource
	History          *services.ScanHistory
	RefreshWorker    *services.CardRefreshWorker
	ImageStorage     *services.ImageStorageService
	CORSOrigins      []string
	FrontendDistPath string
}

// metricsMiddleware records request counts and latency by route template.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

func SetupRouter(opts RouterOptions) *gin.Engine {
	router := gin.Default()
	router.Use(metricsMiddleware())

	serveFrontend := opts.FrontendDistPath != "" && dirExists(opts.FrontendDistPath)

	// CORS configuration - allow configured origins or use defaults
	config := cors.DefaultConfig()
	if len(opts.CORSOrigins) > 0 {
		config.AllowOrigins = opts.CORSOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	cardHandler := handlers.NewCardHandler(opts.ScanService, opts.CardSource)
	setHandler := handlers.NewSetHandler()

	// Serve scanned images
	if opts.ImageStorage != nil {
		router.Static("/images/scanned", opts.ImageStorage.GetStorageDir())
	}

	api := router.Group("/api")
	{
		cards := api.Group("/cards")
		{
			cards.POST("/resolve", cardHandler.ResolveCard)
			cards.POST("/scan", cardHandler.ScanCard)
			cards.GET("/:id", cardHandler.GetCard)
		}

		if opts.History != nil {
			scanHandler := handlers.NewScanHandler(opts.History)
			scans := api.Group("/scans")
			{
				scans.GET("", scanHandler.ListScans)
				scans.GET("/stats", scanHandler.GetStats)
				scans.GET("/:id", scanHandler.GetScan)
			}
		}

		if opts.RefreshWorker != nil {
			refreshHandler := handlers.NewRefreshHandler(opts.RefreshWorker)
			api.POST("/cards/:id/refresh", refreshHandler.RefreshCard)
			api.GET("/refresh/status", refreshHandler.GetRefreshStatus)
		}

		sets := api.Group("/sets")
		{
			sets.GET("/family", setHandler.GetFamily)
			sets.GET("/correct", setHandler.CorrectSet)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":             "ok",
			"extraction_enabled": opts.ScanService.ExtractionEnabled(),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Serve frontend static files
	if serveFrontend {
		indexPath := filepath.Join(opts.FrontendDistPath, "index.html")

		router.Static("/assets", filepath.Join(opts.FrontendDistPath, "assets"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
