package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stroymarket/backend/internal/auth"
	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/checkout"
)

type CheckoutHandler struct {
	Carts        *cart.Manager
	Orchestrator *checkout.Orchestrator
}

// SubmitOrder runs the checkout flow against the caller's current cart.
// Validation problems come back as 400 with a human-readable reason; a
// persistence failure is a backend fault and maps to 502.
func (h *CheckoutHandler) SubmitOrder(c echo.Context) error {
	var info checkout.CustomerInfo
	if err := c.Bind(&info); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID := auth.CurrentUserID(c)
	store := h.Carts.Store(auth.CurrentSession(c))
	store.Activate(c.Request().Context(), userID)

	result := h.Orchestrator.SubmitOrder(c.Request().Context(), store, info, userID)
	if !result.Success {
		status := http.StatusBadRequest
		if result.Unavailable {
			status = http.StatusBadGateway
		}
		return c.JSON(status, result)
	}
	return c.JSON(http.StatusOK, result)
}
