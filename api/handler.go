package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/core"
	"github.com/AaronSotoPacheco/criptoapi/internal/service"
	"github.com/gin-gonic/gin"
)

// GetKPIs handles GET /api/v1/kpis requests
func (h *APIHandler) GetKPIs(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	kpis, err := h.dashboard.KPIs(ctx)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, kpis)
}

// GetCoins handles GET /api/v1/coins requests
func (h *APIHandler) GetCoins(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	search, err := h.validator.ValidateSearch(c.Query("search"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	coins, err := h.dashboard.Coins(ctx, search)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, coins)
}

// GetExchanges handles GET /api/v1/exchanges requests
func (h *APIHandler) GetExchanges(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	search, err := h.validator.ValidateSearch(c.Query("search"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	exchanges, err := h.dashboard.Exchanges(ctx, search)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exchanges)
}

// GetCoinChart handles GET /api/v1/charts/coins requests
func (h *APIHandler) GetCoinChart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	search, err := h.validator.ValidateSearch(c.Query("search"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	spec, err := h.dashboard.CoinChart(ctx, search)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, spec)
}

// GetExchangeChart handles GET /api/v1/charts/exchanges requests
func (h *APIHandler) GetExchangeChart(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	spec, err := h.dashboard.ExchangeChart(ctx)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, spec)
}

// PostRefresh handles POST /api/v1/refresh requests.
// A failed fetch keeps the previous data and answers 502.
func (h *APIHandler) PostRefresh(c *gin.Context) {
	if h.refresher == nil {
		h.handleError(c, errors.New("refresher not configured"), http.StatusServiceUnavailable, "Refresh unavailable")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	if err := h.refresher.Refresh(ctx); err != nil {
		var failure *core.FetchFailure
		if errors.As(err, &failure) {
			h.handleError(c, err, http.StatusBadGateway, failure.Error())
			return
		}
		h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
		return
	}

	c.JSON(http.StatusOK, h.refresher.Status())
}

// HealthCheck handles GET /health requests
func (h *APIHandler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":    "OK",
		"service":   ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   ServiceVersion,
	}
	if h.refresher != nil {
		response["refresh"] = h.refresher.Status()
	}

	c.JSON(http.StatusOK, response)
}

// handleServiceError maps read-side errors to HTTP status codes
func (h *APIHandler) handleServiceError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNoSnapshot) {
		h.handleError(c, err, http.StatusServiceUnavailable, "Market data not loaded yet")
		return
	}
	h.handleError(c, err, http.StatusInternalServerError, "Internal server error")
}

// handleError logs the error and sends appropriate HTTP response
func (h *APIHandler) handleError(c *gin.Context, err error, statusCode int, userMessage string) {
	requestIDStr := requestID(c)

	h.logger.Error("API error",
		slog.String("request_id", requestIDStr),
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
		slog.Int("status_code", statusCode),
	)

	c.JSON(statusCode, gin.H{
		"error":      userMessage,
		"request_id": requestIDStr,
	})
}

// handleValidationError handles validation errors specifically
func (h *APIHandler) handleValidationError(c *gin.Context, err error) {
	h.handleError(c, err, http.StatusBadRequest, err.Error())
}

func requestID(c *gin.Context) string {
	if value, exists := c.Get(RequestIDContextKey); exists {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return "unknown"
}
