package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stroymarket/backend/internal/geo"
	"github.com/stroymarket/backend/internal/logging"
)

type GeoHandler struct {
	Suggest  *geo.SuggestClient
	Delivery *geo.DeliveryCalculator
}

func (h *GeoHandler) AddressSuggest(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return c.JSON(http.StatusOK, []geo.Suggestion{})
	}

	suggestions, err := h.Suggest.Suggest(c.Request().Context(), q)
	if err != nil {
		// Autocomplete is advisory: a provider outage degrades to no hints.
		logging.FromContext(c.Request().Context()).Warn("address_suggest_failed", "error", err)
		return c.JSON(http.StatusOK, []geo.Suggestion{})
	}
	return c.JSON(http.StatusOK, suggestions)
}

func (h *GeoHandler) DeliveryCost(c echo.Context) error {
	var req struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	quote, err := h.Delivery.Cost(req.Lat, req.Lon)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, quote)
}
