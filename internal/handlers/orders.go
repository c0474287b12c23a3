package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/auth"
	"github.com/stroymarket/backend/internal/models"
)

type OrderHandler struct {
	DB *gorm.DB
}

func (h *OrderHandler) ListMyOrders(c echo.Context) error {
	userID := auth.CurrentUserID(c)

	var orders []models.Order
	if err := h.DB.WithContext(c.Request().Context()).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, orders)
}
