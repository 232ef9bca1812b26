package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
)

type ModelHandler struct {
	service *service.PlanningService
}

func NewModelHandler(service *service.PlanningService) *ModelHandler {
	return &ModelHandler{service: service}
}

type trainRequest struct {
	Products []string `json:"products"`
	Company  string   `json:"company"`
}

func (h *ModelHandler) Train(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	results, err := h.service.TrainProducts(c.Request.Context(), req.Products, req.Company)
	if err != nil {
		respondError(c, err)
		return
	}

	trained := 0
	for _, r := range results {
		if r.Success {
			trained++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"trained": trained,
		"failed":  len(results) - trained,
	})
}

func (h *ModelHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.service.Models()})
}

func (h *ModelHandler) Get(c *gin.Context) {
	st, err := h.service.Model(c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Storage reports what the model backend holds for a key, loaded or not.
func (h *ModelHandler) Storage(c *gin.Context) {
	state, err := h.service.ModelPersistence(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *ModelHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if err := h.service.DeleteModel(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Model deleted for " + key})
}
