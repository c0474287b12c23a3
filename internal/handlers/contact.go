package handlers

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/checkout"
	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/models"
	"github.com/stroymarket/backend/internal/notify"
)

type ContactHandler struct {
	DB            *gorm.DB
	Email         notify.Sender
	Telegram      notify.Sender
	NotifyTimeout time.Duration
}

// SubmitMessage stores a callback request and pings the operators. Unlike
// checkout, the DB save is not the success criterion here: reaching any
// channel counts.
func (h *ContactHandler) SubmitMessage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "contact")

	var req struct {
		Name             string `json:"name"`
		Phone            string `json:"phone"`
		Email            string `json:"email"`
		Message          string `json:"message"`
		PreferredContact string `json:"preferred_contact"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "укажите имя и сообщение")
	}
	phone, err := checkout.NormalizePhone(req.Phone)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := checkout.ValidateEmail(req.Email); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	msg := models.ContactMessage{
		Name:             strings.TrimSpace(req.Name),
		Phone:            phone,
		Email:            req.Email,
		Message:          strings.TrimSpace(req.Message),
		PreferredContact: req.PreferredContact,
		Status:           "new",
	}

	dbSaved := true
	if err := h.DB.WithContext(ctx).Create(&msg).Error; err != nil {
		dbSaved = false
		l.Error("contact_save_failed", "error", err)
	}

	n := notify.ForContact(notify.ContactData{
		Name:             msg.Name,
		Phone:            msg.Phone,
		Email:            msg.Email,
		Message:          msg.Message,
		PreferredContact: msg.PreferredContact,
	})

	timeout := h.NotifyTimeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	var emailSent, telegramSent bool
	var wg sync.WaitGroup
	send := func(s notify.Sender, channel string, ok *bool) {
		defer wg.Done()
		if s == nil {
			return
		}
		sendCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Send(sendCtx, n); err != nil {
			l.Warn("contact_notify_failed", "channel", channel, "error", err)
			return
		}
		*ok = true
	}
	wg.Add(2)
	go send(h.Email, "email", &emailSent)
	go send(h.Telegram, "telegram", &telegramSent)
	wg.Wait()

	success := dbSaved || emailSent || telegramSent
	status := http.StatusOK
	if !success {
		status = http.StatusBadGateway
	}
	return c.JSON(status, echo.Map{
		"success":       success,
		"db_saved":      dbSaved,
		"email_sent":    emailSent,
		"telegram_sent": telegramSent,
	})
}
