package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kxw147-gmail/token-pricing-system/internal/model"
	"github.com/kxw147-gmail/token-pricing-system/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Prefetcher triggers out-of-schedule ingestion for one symbol without
// waiting for the result.
type Prefetcher interface {
	TriggerAsync(symbol string)
}

// PriceHandler handles price query requests
type PriceHandler struct {
	priceService *service.PriceService
	prefetcher   Prefetcher
	logger       *zap.Logger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(priceService *service.PriceService, prefetcher Prefetcher, logger *zap.Logger) *PriceHandler {
	return &PriceHandler{
		priceService: priceService,
		prefetcher:   prefetcher,
		logger:       logger,
	}
}

// GetHistoricalPrices returns samples for a symbol within a time range
// GET /api/v1/prices/:symbol?granularity=&start_time=&end_time=&limit=&offset=
func (h *PriceHandler) GetHistoricalPrices(c *gin.Context) {
	symbol := c.Param("symbol")
	granularity := c.Query("granularity")

	start, err := time.Parse(time.RFC3339, c.Query("start_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be a valid RFC 3339 timestamp"})
		return
	}
	end, err := time.Parse(time.RFC3339, c.Query("end_time"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be a valid RFC 3339 timestamp"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	prices, err := h.priceService.GetHistory(c.Request.Context(), model.PriceQuery{
		Symbol:      symbol,
		Granularity: granularity,
		Start:       start,
		End:         end,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, prices)
}

// GetLatestPrice returns the most recent sample for a symbol
// GET /api/v1/prices/latest/:symbol?granularity=
func (h *PriceHandler) GetLatestPrice(c *gin.Context) {
	symbol := c.Param("symbol")
	granularity := c.Query("granularity")

	price, err := h.priceService.GetLatest(c.Request.Context(), symbol, granularity)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, price)
}

// GetSymbols lists all symbols with stored data
// GET /api/v1/prices/symbols
func (h *PriceHandler) GetSymbols(c *gin.Context) {
	symbols, err := h.priceService.ListSymbols(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

// PrefetchPrice triggers immediate ingestion for a symbol and returns
// without waiting for it to finish
// POST /api/v1/prices/prefetch/:symbol
func (h *PriceHandler) PrefetchPrice(c *gin.Context) {
	symbol := c.Param("symbol")

	h.prefetcher.TriggerAsync(symbol)

	c.JSON(http.StatusAccepted, gin.H{
		"message": fmt.Sprintf("Prefetch for %s initiated. Data will be available shortly.", symbol),
	})
}

// respondError maps service errors to HTTP status codes.
func (h *PriceHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No price data found for the given criteria"})
	default:
		h.logger.Error("price query failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
