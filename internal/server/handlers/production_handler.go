package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/service/production"
)

// ProductionService records submissions and settles wages.
type ProductionService interface {
	LogProduction(ctx context.Context, entry models.ProductionEntry) (models.ProductionLog, error)
	LogCakeProduction(ctx context.Context, shift string, date *time.Time, counts models.ProductionCounts) (models.ProductionLog, error)
	LogMaterialsUsage(ctx context.Context, shift string, date *time.Time, materials []models.MaterialRequest) (models.ProductionLog, error)
	PayWages(ctx context.Context, shift string, date time.Time) (int64, error)
	DailyReset(ctx context.Context) (production.ResetResult, error)
}

// SummaryService computes daily and range summaries.
type SummaryService interface {
	DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error)
	RangeSummary(ctx context.Context, start, end time.Time) (models.RangeSummary, error)
}

// ProductionHandler serves the production and summary endpoints.
type ProductionHandler struct {
	svc     ProductionService
	summary SummaryService
	loc     *time.Location
	logger  *zap.Logger
}

// NewProductionHandler constructs the HTTP handler adapter. Dates without a
// time zone are read in loc.
func NewProductionHandler(svc ProductionService, summary SummaryService, loc *time.Location, logger *zap.Logger) *ProductionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ProductionHandler{svc: svc, summary: summary, loc: loc, logger: logger}
}

type productionRequest struct {
	Shift            string                   `json:"shift"`
	Date             string                   `json:"date"`
	Production       *models.ProductionCounts `json:"production"`
	RawMaterialsUsed []models.MaterialRequest `json:"rawMaterialsUsed"`
}

type cakeProductionRequest struct {
	Shift         string `json:"shift"`
	Date          string `json:"date"`
	StandardCakes int    `json:"standardCakes"`
	Bread         int    `json:"bread"`
}

type materialsUsageRequest struct {
	Shift     string                   `json:"shift"`
	Date      string                   `json:"date"`
	Materials []models.MaterialRequest `json:"materials"`
}

type payWagesRequest struct {
	Shift string `json:"shift" binding:"required"`
	Date  string `json:"date" binding:"required"`
}

// Log records a combined submission with production counts and/or materials.
func (h *ProductionHandler) Log(c *gin.Context) {
	var req productionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "invalid production payload", err)
		return
	}
	date, err := parseOptionalDate(req.Date, h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid production date", err)
		return
	}

	log, err := h.svc.LogProduction(c.Request.Context(), models.ProductionEntry{
		Shift:      req.Shift,
		Date:       date,
		Production: req.Production,
		Materials:  req.RawMaterialsUsed,
	})
	if err != nil {
		respondError(c, h.logger, "failed logging production", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Production logged successfully", "production": log})
}

// LogCakes records cake and bread production for a shift.
func (h *ProductionHandler) LogCakes(c *gin.Context) {
	var req cakeProductionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "invalid cake production payload", err)
		return
	}
	date, err := parseOptionalDate(req.Date, h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid production date", err)
		return
	}

	counts := models.ProductionCounts{StandardCakes: req.StandardCakes, Bread: req.Bread}
	log, err := h.svc.LogCakeProduction(c.Request.Context(), req.Shift, date, counts)
	if err != nil {
		respondError(c, h.logger, "failed logging cake production", err)
		return
	}
	c.JSON(http.StatusCreated, log)
}

// LogMaterials records the raw materials a shift consumed.
func (h *ProductionHandler) LogMaterials(c *gin.Context) {
	var req materialsUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "invalid materials usage payload", err)
		return
	}
	date, err := parseOptionalDate(req.Date, h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid production date", err)
		return
	}

	log, err := h.svc.LogMaterialsUsage(c.Request.Context(), req.Shift, date, req.Materials)
	if err != nil {
		respondError(c, h.logger, "failed logging materials usage", err)
		return
	}
	c.JSON(http.StatusCreated, log)
}

// PayWages marks a shift's wages paid for one day.
func (h *ProductionHandler) PayWages(c *gin.Context) {
	var req payWagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, h.logger, "shift and date are required", err)
		return
	}
	day, err := models.ParseDay(req.Date, h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid wage date", err)
		return
	}

	updated, err := h.svc.PayWages(c.Request.Context(), req.Shift, day)
	if err != nil {
		respondError(c, h.logger, "failed paying wages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Wages marked as paid", "updated": updated})
}

// DailyReset settles all unpaid logs.
func (h *ProductionHandler) DailyReset(c *gin.Context) {
	result, err := h.svc.DailyReset(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "daily reset failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Daily reset completed", "result": result})
}

// DailySummary reports one day per shift.
func (h *ProductionHandler) DailySummary(c *gin.Context) {
	day, err := models.ParseDay(c.Query("date"), h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid summary date", err)
		return
	}

	summary, err := h.summary.DailySummary(c.Request.Context(), day)
	if err != nil {
		respondError(c, h.logger, "failed computing daily summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// RangeSummary reports an inclusive range of days.
func (h *ProductionHandler) RangeSummary(c *gin.Context) {
	start, err := models.ParseDay(c.Query("start"), h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid summary start date", err)
		return
	}
	end, err := models.ParseDay(c.Query("end"), h.loc)
	if err != nil {
		respondError(c, h.logger, "invalid summary end date", err)
		return
	}

	summary, err := h.summary.RangeSummary(c.Request.Context(), start, end)
	if err != nil {
		respondError(c, h.logger, "failed computing range summary", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
