package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/cart"
	"github.com/stroymarket/backend/internal/events"
	"github.com/stroymarket/backend/internal/logging"
	"github.com/stroymarket/backend/internal/models"
)

type Handler struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	Producer      *events.Producer
	CartCache     *cart.SQLiteCache
	Carts         *cart.Manager
}

func (h *Handler) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_register")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"full_name"`
		Phone    string `json:"phone"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("register_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return echo.NewHTTPError(http.StatusBadRequest, "укажите корректный email")
	}
	if len(req.Password) < 6 {
		return echo.NewHTTPError(http.StatusBadRequest, "пароль должен быть не короче 6 символов")
	}
	if strings.TrimSpace(req.FullName) == "" {
		req.FullName = strings.SplitN(req.Email, "@", 2)[0]
	}

	var existing models.User
	err := h.DB.Where("email = ?", req.Email).First(&existing).Error
	if err == nil {
		l.Warn("register_failed", "status", 409, "reason", "user_exists")
		return echo.NewHTTPError(http.StatusConflict, "пользователь с таким email уже зарегистрирован")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	pwHash, err := HashPassword(req.Password)
	if err != nil {
		l.Error("register_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	user := models.User{Email: req.Email, PasswordHash: pwHash}
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		profile := models.Profile{
			ID:       user.ID,
			Email:    user.Email,
			FullName: strings.TrimSpace(req.FullName),
			Phone:    strings.TrimSpace(req.Phone),
		}
		return tx.Create(&profile).Error
	})
	if txErr != nil {
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, MapAuthError(txErr))
	}

	h.publish(c, events.TopicUserEvents, map[string]any{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
	})

	l.Info("register_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"id": user.ID, "email": user.Email})
}

func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		l.Warn("login_failed", "status", 401, "reason", "unknown_email")
		return echo.NewHTTPError(http.StatusUnauthorized, "неверный email или пароль")
	}
	if !CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "bad_password")
		return echo.NewHTTPError(http.StatusUnauthorized, "неверный email или пароль")
	}

	access, err := SignAccessToken(user.ID, h.JWTSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}

	jti := newJTI()
	refresh, err := SignRefreshToken(user.ID, jti, h.RefreshSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	if err := SaveRefreshToken(h.DB, refresh, jti, user.ID); err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(CreateCookie(AccessCookie, access, "/", time.Now().Add(AccessTokenTTL)))
	c.SetCookie(CreateCookie(RefreshCookie, refresh, "/", time.Now().Add(RefreshTokenTTL)))

	// The profile row may still be settling right after registration.
	profile, err := LoadProfile(ctx, h.DB, user.ID)
	if err != nil {
		l.Warn("profile_load_failed", "user_id", user.ID, "error", err)
	}

	h.publish(c, events.TopicUserEvents, map[string]any{
		"type":    "user_logged_in",
		"user_id": user.ID,
		"email":   user.Email,
	})

	resp := echo.Map{"id": user.ID, "email": user.Email, "is_admin": false}
	if profile != nil {
		resp["full_name"] = profile.FullName
		resp["is_admin"] = profile.IsAdmin
	}
	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_logout")

	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		result := h.DB.Model(&models.RefreshToken{}).
			Where("token = ?", sha256Hex(cookie.Value)).
			Update("revoked", true)
		if result.Error != nil {
			l.Error("logout_failed", "reason", "cannot revoke refresh token", "error", result.Error)
		}
	} else {
		l.Warn("logout_without_refresh_cookie")
	}

	// Session and cart artifacts are cleared together: the cart survives only
	// in the remote table.
	if userID, err := UserFromRequest(c, h.JWTSecret); err == nil && h.CartCache != nil {
		if err := h.CartCache.Delete(ctx, fmt.Sprintf("user:%d", userID)); err != nil {
			l.Warn("cart_cache_clear_failed", "user_id", userID, "error", err)
		}
	}
	if session := CurrentSession(c); session != "" {
		if h.CartCache != nil {
			if err := h.CartCache.Delete(ctx, "guest:"+session); err != nil {
				l.Warn("cart_cache_clear_failed", "session", session, "error", err)
			}
		}
		if h.Carts != nil {
			h.Carts.Drop(session)
		}
	}

	c.SetCookie(DeleteCookie(AccessCookie, "/"))
	c.SetCookie(DeleteCookie(RefreshCookie, "/"))

	l.Info("logout_success")
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Refresh redeems the refresh cookie for a new cookie pair. Rotation is
// strict: the presented token is revoked before its successor is stored, so a
// replayed cookie dies on the second use.
func (h *Handler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth_refresh")

	cookie, err := c.Cookie(RefreshCookie)
	if err != nil || cookie.Value == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	userID, err := ValidateRefresh(cookie.Value, h.RefreshSecret, h.DB)
	if err != nil {
		l.Warn("refresh_failed", "status", 401, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	if err := h.DB.Model(&models.RefreshToken{}).
		Where("token = ?", sha256Hex(cookie.Value)).
		Update("revoked", true).Error; err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot revoke old token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	access, err := SignAccessToken(userID, h.JWTSecret)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	jti := newJTI()
	refresh, err := SignRefreshToken(userID, jti, h.RefreshSecret)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot create token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create token")
	}
	if err := SaveRefreshToken(h.DB, refresh, jti, userID); err != nil {
		l.Error("refresh_failed", "status", 500, "reason", "cannot store refresh token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(CreateCookie(AccessCookie, access, "/", time.Now().Add(AccessTokenTTL)))
	c.SetCookie(CreateCookie(RefreshCookie, refresh, "/", time.Now().Add(RefreshTokenTTL)))

	l.Info("refresh_success", "user_id", userID)
	return c.JSON(http.StatusOK, echo.Map{"id": userID})
}

func (h *Handler) GetProfile(c echo.Context) error {
	userID := CurrentUserID(c)

	profile, err := LoadProfile(c.Request().Context(), h.DB, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, MapAuthError(err))
	}
	if profile == nil {
		return c.JSON(http.StatusOK, echo.Map{"profile": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"profile": profile})
}

func (h *Handler) UpdateProfile(c echo.Context) error {
	userID := CurrentUserID(c)

	var req struct {
		FullName *string `json:"full_name"`
		Phone    *string `json:"phone"`
		Address  *string `json:"address"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	updates := map[string]any{"updated_at": time.Now()}
	if req.FullName != nil {
		updates["full_name"] = strings.TrimSpace(*req.FullName)
	}
	if req.Phone != nil {
		updates["phone"] = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}

	if err := h.DB.Model(&models.Profile{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, MapAuthError(err))
	}

	profile, err := LoadProfile(c.Request().Context(), h.DB, userID)
	if err != nil || profile == nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, echo.Map{"profile": profile})
}

// AdminCheck is the authoritative admin gate: the flag is re-read from the
// profile row on every call, the token only identifies the caller.
func (h *Handler) AdminCheck(c echo.Context) error {
	userID, err := UserFromRequest(c, h.JWTSecret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false})
	}

	var profile models.Profile
	if err := h.DB.WithContext(c.Request().Context()).First(&profile, userID).Error; err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"ok": false})
	}
	if !profile.IsAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"ok": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

func (h *Handler) publish(c echo.Context, topic string, event map[string]any) {
	ctx := c.Request().Context()
	if err := h.Producer.Publish(ctx, topic, fmt.Sprint(event["user_id"]), event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "topic", topic, "error", err)
	}
}
