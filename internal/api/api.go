// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/dairyplan/backend-go/internal/api/handlers"
	"github.com/andresuchdata/dairyplan/backend-go/internal/api/middleware"
	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
)

type Services struct {
	Planning *service.PlanningService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger("/health"))
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok"}
		if services != nil && services.Planning != nil {
			body["models_loaded"] = len(services.Planning.Models())
		}
		c.JSON(http.StatusOK, body)
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Planning != nil {
		salesHandler := handlers.NewSalesHandler(services.Planning)
		salesGroup := apiGroup.Group("/sales")
		{
			salesGroup.POST("/upload", salesHandler.Upload)
			salesGroup.GET("/summary", salesHandler.Summary)
		}

		modelHandler := handlers.NewModelHandler(services.Planning)
		modelGroup := apiGroup.Group("/models")
		{
			modelGroup.POST("/train", modelHandler.Train)
			modelGroup.GET("", modelHandler.List)
			modelGroup.GET("/:key", modelHandler.Get)
			modelGroup.GET("/:key/storage", modelHandler.Storage)
			modelGroup.DELETE("/:key", modelHandler.Delete)
		}

		forecastHandler := handlers.NewForecastHandler(services.Planning)
		forecastGroup := apiGroup.Group("/forecasts")
		{
			forecastGroup.GET("/:key", forecastHandler.Forecast)
			forecastGroup.GET("/:key/summary", forecastHandler.Summary)
		}

		optimizeHandler := handlers.NewOptimizeHandler(services.Planning)
		optimizeGroup := apiGroup.Group("/optimize")
		{
			optimizeGroup.POST("/production", optimizeHandler.Production)
			optimizeGroup.POST("/inventory", optimizeHandler.Inventory)
			optimizeGroup.POST("/summary", optimizeHandler.Summary)
			optimizeGroup.POST("/capacity", optimizeHandler.Capacity)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
