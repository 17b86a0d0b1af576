package api

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/gin-gonic/gin"
)

// This file serves as the main entry point for the API package. It defines the APIHandler struct and its dependencies.
// The package structure is as follows:
// - api.go: Main API handler, dependencies and server lifecycle (this file)
// - handler.go: JSON request handlers
// - dashboard.go: HTML dashboard page
// - stream.go: Websocket KPI stream
// - middleware.go: Middleware functions
// - validator.go: Request validation

// Constants
const (
	DefaultTimeout      = 30 * time.Second
	ShutdownTimeout     = 5 * time.Second
	ServiceVersion      = "1.0.0"
	ServiceName         = "criptoapi-dashboard"
	RequestIDContextKey = "request_id"
	RequestIDHeaderKey  = "X-Request-ID"
)

// DashboardService is an interface defining the read side used by the handlers
type DashboardService interface {
	KPIs(ctx context.Context) (model.KPISummary, error)
	Coins(ctx context.Context, search string) ([]model.CoinRow, error)
	Exchanges(ctx context.Context, search string) ([]model.ExchangeRow, error)
	CoinChart(ctx context.Context, search string) (model.ChartSpec, error)
	ExchangeChart(ctx context.Context) (model.ChartSpec, error)
}

// Refresher runs the refresh pipeline on demand
type Refresher interface {
	Refresh(ctx context.Context) error
	Trigger()
	Status() model.RefreshStatus
}

// APIHandler handles HTTP requests using Gin framework
type APIHandler struct {
	dashboard DashboardService
	refresher Refresher
	stream    *StreamHub
	validator *Validator
	logger    *slog.Logger
}

// NewAPIHandler creates a new API handler. The returned handler's Stream
// should be subscribed to the refresh pipeline.
func NewAPIHandler(dashboard DashboardService, refresher Refresher, logger *slog.Logger) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}

	var onRefresh func()
	if refresher != nil {
		onRefresh = refresher.Trigger
	}

	return &APIHandler{
		dashboard: dashboard,
		refresher: refresher,
		stream:    NewStreamHub(onRefresh, logger),
		validator: GetValidator(),
		logger:    logger,
	}
}

// Stream returns the websocket hub that pushes KPI updates
func (h *APIHandler) Stream() *StreamHub {
	return h.stream
}

// StartServer serves HTTP on addr until ctx is cancelled
func (h *APIHandler) StartServer(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           h.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		h.stream.Close()
		if err := server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}()

	h.logger.Info("http server listening", slog.String("addr", addr))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes() *gin.Engine {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Add middleware
	router.Use(requestIDMiddleware())
	router.Use(ginLoggerMiddleware())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.SetHTMLTemplate(template.Must(template.New(dashboardTemplateName).Parse(dashboardTemplate)))

	// Dashboard page
	router.GET("/", h.Dashboard)

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/kpis", h.GetKPIs)
		v1.GET("/coins", h.GetCoins)
		v1.GET("/exchanges", h.GetExchanges)
		v1.GET("/charts/coins", h.GetCoinChart)
		v1.GET("/charts/exchanges", h.GetExchangeChart)
		v1.POST("/refresh", h.PostRefresh)
		v1.GET("/stream", h.stream.ServeWS)
	}

	router.GET("/health", h.HealthCheck)

	return router
}
