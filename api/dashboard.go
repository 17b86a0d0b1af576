package api

import (
	"context"
	_ "embed"
	"errors"
	"net/http"

	"github.com/AaronSotoPacheco/criptoapi/internal/format"
	"github.com/AaronSotoPacheco/criptoapi/internal/model"
	"github.com/AaronSotoPacheco/criptoapi/internal/service"
	"github.com/gin-gonic/gin"
)

const dashboardTemplateName = "dashboard.tmpl"

//go:embed templates/dashboard.tmpl
var dashboardTemplate string

type dashboardPage struct {
	KPIs           model.KPISummary
	Coins          []model.CoinRow
	Exchanges      []model.ExchangeRow
	CoinSearch     string
	ExchangeSearch string
	Placeholder    string
	Status         model.RefreshStatus
}

// Dashboard handles GET / requests. Widgets without data render placeholders.
func (h *APIHandler) Dashboard(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), DefaultTimeout)
	defer cancel()

	coinSearch, err := h.validator.ValidateSearch(c.Query("coin_search"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}
	exchangeSearch, err := h.validator.ValidateSearch(c.Query("exchange_search"))
	if err != nil {
		h.handleValidationError(c, err)
		return
	}

	page := dashboardPage{
		KPIs:           placeholderKPIs(),
		CoinSearch:     coinSearch,
		ExchangeSearch: exchangeSearch,
		Placeholder:    format.Placeholder,
	}
	if h.refresher != nil {
		page.Status = h.refresher.Status()
	}

	kpis, err := h.dashboard.KPIs(ctx)
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		c.HTML(http.StatusOK, dashboardTemplateName, page)
		return
	case err != nil:
		h.handleServiceError(c, err)
		return
	}
	page.KPIs = kpis

	if page.Coins, err = h.dashboard.Coins(ctx, coinSearch); err != nil {
		h.handleServiceError(c, err)
		return
	}
	if page.Exchanges, err = h.dashboard.Exchanges(ctx, exchangeSearch); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.HTML(http.StatusOK, dashboardTemplateName, page)
}

func placeholderKPIs() model.KPISummary {
	return model.KPISummary{
		ExchangeCountText:   format.Placeholder,
		AveragePriceDisplay: format.Placeholder,
		TopCoinName:         format.Placeholder,
	}
}
