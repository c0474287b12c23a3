package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/models"
)

type PartnerHandler struct {
	DB *gorm.DB
}

func (h *PartnerHandler) ListPartners(c echo.Context) error {
	var partners []models.Partner
	if err := h.DB.WithContext(c.Request().Context()).
		Order("name ASC").Find(&partners).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, partners)
}
