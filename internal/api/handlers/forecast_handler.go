package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
)

type ForecastHandler struct {
	service *service.PlanningService
}

func NewForecastHandler(service *service.PlanningService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

// Forecast serves GET /forecasts/:key?horizon=&include_history=.
func (h *ForecastHandler) Forecast(c *gin.Context) {
	horizon := 0
	if raw := c.Query("horizon"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			badRequest(c, "horizon must be a positive integer")
			return
		}
		horizon = v
	}

	includeHistory := false
	if raw := c.Query("include_history"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "include_history must be a boolean")
			return
		}
		includeHistory = v
	}

	fc, err := h.service.Forecast(c.Request.Context(), c.Param("key"), horizon, includeHistory)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fc)
}

func (h *ForecastHandler) Summary(c *gin.Context) {
	key := c.Param("key")
	periods, err := h.service.ForecastSummary(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product_key": key, "periods": periods})
}
