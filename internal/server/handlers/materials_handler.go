package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
)

// MaterialService is the stock ledger surface exposed over HTTP.
type MaterialService interface {
	ListMaterials(ctx context.Context) ([]models.MaterialView, error)
	ReceiveStock(ctx context.Context, receipt models.StockReceipt) (models.RawMaterialBatch, error)
	UpdateMaterial(ctx context.Context, id string, patch models.MaterialPatch) (models.RawMaterialBatch, error)
}

// MaterialsHandler serves the raw-material endpoints.
type MaterialsHandler struct {
	svc    MaterialService
	logger *zap.Logger
}

// NewMaterialsHandler constructs the HTTP handler adapter.
func NewMaterialsHandler(svc MaterialService, logger *zap.Logger) *MaterialsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialsHandler{svc: svc, logger: logger}
}

// List returns every batch with used and remaining quantities.
func (h *MaterialsHandler) List(c *gin.Context) {
	materials, err := h.svc.ListMaterials(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "failed listing materials", err)
		return
	}
	c.JSON(http.StatusOK, materials)
}

// Receive records a stock purchase.
func (h *MaterialsHandler) Receive(c *gin.Context) {
	var req models.StockReceipt
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "invalid stock receipt", err)
		return
	}

	batch, err := h.svc.ReceiveStock(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, "failed receiving stock", err)
		return
	}
	c.JSON(http.StatusCreated, models.NewMaterialView(batch))
}

// Update patches one batch.
func (h *MaterialsHandler) Update(c *gin.Context) {
	var patch models.MaterialPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, h.logger, "invalid material update", err)
		return
	}

	batch, err := h.svc.UpdateMaterial(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, "failed updating material", err)
		return
	}
	c.JSON(http.StatusOK, models.NewMaterialView(batch))
}
