package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
)

type OptimizeHandler struct {
	service *service.PlanningService
}

func NewOptimizeHandler(service *service.PlanningService) *OptimizeHandler {
	return &OptimizeHandler{service: service}
}

type portfolioRequest struct {
	ProductKeys []string `json:"product_keys"`
	Horizon     int      `json:"horizon"`
}

func (h *OptimizeHandler) Production(c *gin.Context) {
	var req service.ProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductKey == "" {
		badRequest(c, "product_key is required")
		return
	}

	plan, err := h.service.OptimizeProduction(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *OptimizeHandler) Inventory(c *gin.Context) {
	var req service.InventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductKey == "" {
		badRequest(c, "product_key is required")
		return
	}

	plan, err := h.service.OptimizeInventory(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *OptimizeHandler) bindPortfolio(c *gin.Context) (portfolioRequest, bool) {
	var req portfolioRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return req, false
		}
	}
	if req.Horizon < 0 {
		badRequest(c, "horizon must be positive")
		return req, false
	}
	return req, true
}

func (h *OptimizeHandler) Summary(c *gin.Context) {
	req, ok := h.bindPortfolio(c)
	if !ok {
		return
	}

	summary, err := h.service.OptimizationSummary(c.Request.Context(), req.ProductKeys, req.Horizon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *OptimizeHandler) Capacity(c *gin.Context) {
	req, ok := h.bindPortfolio(c)
	if !ok {
		return
	}

	rows, err := h.service.CapacityUtilization(c.Request.Context(), req.ProductKeys, req.Horizon)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"capacity_utilization": rows})
}
