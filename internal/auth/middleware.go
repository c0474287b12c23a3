package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/models"
)

const (
	SessionCookie = "cartSession"

	ctxUserID  = "userID"
	ctxSession = "cartSession"
)

// UserFromRequest identifies the caller from the access cookie or a bearer
// header. It does not refresh tokens; an expired access token is just invalid.
func UserFromRequest(c echo.Context, secret []byte) (uint, error) {
	token := ""
	if cookie, err := c.Cookie(AccessCookie); err == nil {
		token = cookie.Value
	}
	if token == "" {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return 0, errors.New("missing token")
	}
	return ParseAccess(token, secret)
}

func CurrentUserID(c echo.Context) uint {
	if v, ok := c.Get(ctxUserID).(uint); ok {
		return v
	}
	return 0
}

func CurrentSession(c echo.Context) string {
	if v, ok := c.Get(ctxSession).(string); ok {
		return v
	}
	return ""
}

// Session guarantees every storefront caller a cart session key and attaches
// the user id when a valid token is present. Guests pass through untouched.
func Session(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := ""
			if cookie, err := c.Cookie(SessionCookie); err == nil && cookie.Value != "" {
				session = cookie.Value
			} else {
				session = uuid.NewString()
				c.SetCookie(&http.Cookie{
					Name:     SessionCookie,
					Value:    session,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}
			c.Set(ctxSession, session)

			if userID, err := UserFromRequest(c, secret); err == nil {
				c.Set(ctxUserID, userID)
			}
			return next(c)
		}
	}
}

func RequireLogin(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := UserFromRequest(c, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.Set(ctxUserID, userID)
			return next(c)
		}
	}
}

// AdminOnly re-reads is_admin from the database on every request. Whatever
// flag the client holds is advisory; this check is the one that counts.
func AdminOnly(db *gorm.DB, secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := UserFromRequest(c, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			var profile models.Profile
			if err := db.WithContext(c.Request().Context()).First(&profile, userID).Error; err != nil {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			if !profile.IsAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}

			c.Set(ctxUserID, userID)
			return next(c)
		}
	}
}
