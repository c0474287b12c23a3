package handlers

import (
	"errors"
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/feed"
	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/models"
	"github.com/stroymarket/backend/internal/search"
)

// statusTransitions is the forward path of an order; cancellation is handled
// separately and is allowed from every state except delivered.
var statusTransitions = map[string]string{
	models.OrderStatusNew:        models.OrderStatusConfirmed,
	models.OrderStatusConfirmed:  models.OrderStatusProcessing,
	models.OrderStatusProcessing: models.OrderStatusShipped,
	models.OrderStatusShipped:    models.OrderStatusDelivered,
}

type AdminHandler struct {
	DB    *gorm.DB
	Feed  *feed.Client
	ES    *elasticsearch.Client
	Index string
}

func (h *AdminHandler) ListOrders(c echo.Context) error {
	var orders []models.Order
	q := h.DB.WithContext(c.Request().Context()).Order("created_at DESC")
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus moves an order along new → confirmed → processing →
// shipped → delivered. Item lines and the total never change; only the status
// does, and only one step at a time.
func (h *AdminHandler) UpdateOrderStatus(c echo.Context) error {
	id := c.Param("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var order models.Order
	if err := h.DB.WithContext(c.Request().Context()).First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "order not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if !transitionAllowed(order.Status, req.Status) {
		return echo.NewHTTPError(http.StatusConflict, "invalid status transition")
	}

	if err := h.DB.WithContext(c.Request().Context()).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("status", req.Status).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	order.Status = req.Status
	return c.JSON(http.StatusOK, order)
}

func transitionAllowed(from, to string) bool {
	if from == to {
		return false
	}
	if to == models.OrderStatusCancelled {
		return from != models.OrderStatusDelivered && from != models.OrderStatusCancelled
	}
	return statusTransitions[from] == to
}

func (h *AdminHandler) Stats(c echo.Context) error {
	ctx := c.Request().Context()

	var newOrders, newMessages int64
	if err := h.DB.WithContext(ctx).Model(&models.Order{}).
		Where("status = ?", models.OrderStatusNew).Count(&newOrders).Error; err != nil {
		logging.FromContext(ctx).Warn("stats_orders_failed", "error", err)
	}
	if err := h.DB.WithContext(ctx).Model(&models.ContactMessage{}).
		Where("status = ?", "new").Count(&newMessages).Error; err != nil {
		logging.FromContext(ctx).Warn("stats_messages_failed", "error", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"new_orders":   newOrders,
		"new_messages": newMessages,
	})
}

// Reindex snapshots the feed into the search index.
func (h *AdminHandler) Reindex(c echo.Context) error {
	if h.ES == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "search is not configured")
	}

	ctx := c.Request().Context()
	products := h.Feed.Products(ctx, feed.Filter{})
	if len(products) == 0 {
		return echo.NewHTTPError(http.StatusBadGateway, "feed returned no products")
	}

	indexed, err := search.Reindex(ctx, h.ES, h.Index, products)
	if err != nil {
		logging.FromContext(ctx).Error("reindex_failed", "error", err)
		return echo.NewHTTPError(http.StatusBadGateway, "reindex failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"indexed": indexed})
}
