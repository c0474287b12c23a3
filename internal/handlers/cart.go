package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stroymarket/backend/internal/auth"
	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/events"
	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/models"
)

type CartHandler struct {
	Carts    *cart.Manager
	Producer *events.Producer
}

func (h *CartHandler) store(c echo.Context) *cart.Store {
	s := h.Carts.Store(auth.CurrentSession(c))
	s.Activate(c.Request().Context(), auth.CurrentUserID(c))
	return s
}

type cartResponse struct {
	Items      []cart.Line `json:"items"`
	TotalItems int         `json:"total_items"`
	TotalPrice float64     `json:"total_price"`
}

func (h *CartHandler) respond(c echo.Context, s *cart.Store) error {
	return c.JSON(http.StatusOK, cartResponse{
		Items:      s.Lines(),
		TotalItems: s.TotalItems(),
		TotalPrice: s.TotalPrice(),
	})
}

func (h *CartHandler) GetCart(c echo.Context) error {
	return h.respond(c, h.store(c))
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	var req struct {
		Product  models.Product `json:"product"`
		Quantity int            `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Product.ID == "" || req.Product.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	s := h.store(c)
	s.AddLine(c.Request().Context(), req.Product, req.Quantity)

	h.publish(c, map[string]any{
		"type":       "cart_item_added",
		"user_id":    auth.CurrentUserID(c),
		"product_id": req.Product.ID,
		"quantity":   s.GetQuantity(req.Product.ID),
	})
	return h.respond(c, s)
}

func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	productID := c.Param("productID")
	if productID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	s := h.store(c)
	s.SetQuantity(c.Request().Context(), productID, req.Quantity)

	h.publish(c, map[string]any{
		"type":       "cart_quantity_updated",
		"user_id":    auth.CurrentUserID(c),
		"product_id": productID,
		"quantity":   req.Quantity,
	})
	return h.respond(c, s)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	productID := c.Param("productID")
	if productID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	s := h.store(c)
	s.RemoveLine(c.Request().Context(), productID)

	h.publish(c, map[string]any{
		"type":       "cart_item_removed",
		"user_id":    auth.CurrentUserID(c),
		"product_id": productID,
	})
	return h.respond(c, s)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	s := h.store(c)
	s.Clear(c.Request().Context())

	h.publish(c, map[string]any{
		"type":    "cart_cleared",
		"user_id": auth.CurrentUserID(c),
	})
	return h.respond(c, s)
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	ctx := c.Request().Context()
	if err := h.Producer.Publish(ctx, events.TopicCartEvents, fmt.Sprint(event["user_id"]), event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", events.TopicCartEvents, "error", err)
	}
}
