package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stroymarket/backend/internal/feed"
)

type ProductHandler struct {
	Feed *feed.Client
}

// GetProducts serves the feed-backed catalog. The feed never errors out; an
// unreachable source yields an empty list and the storefront shows fallbacks.
func (h *ProductHandler) GetProducts(c echo.Context) error {
	f := feed.Filter{
		Category: c.QueryParam("category"),
		Class:    c.QueryParam("class"),
	}
	products := h.Feed.Products(c.Request().Context(), f)
	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) GetFilters(c echo.Context) error {
	f := feed.Filter{
		Category: c.QueryParam("category"),
		Class:    c.QueryParam("class"),
	}
	facets := h.Feed.FacetsFor(c.Request().Context(), f)
	return c.JSON(http.StatusOK, facets)
}
