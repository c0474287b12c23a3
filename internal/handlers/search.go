package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/models"
	"github.com/stroymarket/backend/internal/search"
	"github.com/stroymarket/backend/internal/util"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

type searchResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Products []models.Product `json:"products"`
}

func (h *SearchHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if page < 1 {
		page = 1
	}
	offset, limit := util.Calculate(page, size)

	if h.ES == nil {
		return c.JSON(http.StatusOK, searchResponse{Page: page, PageSize: limit, Products: []models.Product{}})
	}

	ctx := c.Request().Context()
	total, products, err := search.Search(ctx, h.ES, h.Index, query, offset, limit)
	if err != nil {
		logging.FromContext(ctx).Warn("search_failed", "query", query, "error", err)
		return c.JSON(http.StatusOK, searchResponse{Page: page, PageSize: limit, Products: []models.Product{}})
	}

	return c.JSON(http.StatusOK, searchResponse{
		Total:    total,
		Page:     page,
		PageSize: limit,
		Products: products,
	})
}
