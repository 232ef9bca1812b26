package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
	"github.com/andresuchdata/dairyplan/backend-go/internal/service"
)

type SalesHandler struct {
	service *service.PlanningService
}

func NewSalesHandler(service *service.PlanningService) *SalesHandler {
	return &SalesHandler{service: service}
}

// Upload loads a CSV or XLSX sales table sent as the "file" form field.
func (h *SalesHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "no file provided")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "invalid file")
		return
	}
	defer f.Close()

	res, err := h.service.UploadSales(c.Request.Context(), fh.Filename, f)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "validation": res.Report})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SalesHandler) Summary(c *gin.Context) {
	summary, err := h.service.SalesSummary()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
