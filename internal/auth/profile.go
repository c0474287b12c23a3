package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stroymarket/backend/internal/models"
)

const (
	profileAttempts = 5
	profileBackoff  = 200 * time.Millisecond
)

// LoadProfile reads the user's profile with a bounded retry: the row may lag
// registration for a moment. After the attempts run out the caller proceeds
// with a nil profile rather than failing the session.
func LoadProfile(ctx context.Context, db *gorm.DB, userID uint) (*models.Profile, error) {
	var lastErr error
	for attempt := 0; attempt < profileAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(profileBackoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var profile models.Profile
		err := db.WithContext(ctx).First(&profile, userID).Error
		if err == nil {
			return &profile, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		lastErr = err
	}
	_ = lastErr
	return nil, nil
}

// MapAuthError converts backend errors into the strings the storefront shows.
// Matching is a best-effort substring check; anything unknown falls through to
// a generic retry message.
func MapAuthError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique"):
		return "пользователь с таким email уже зарегистрирован"
	case strings.Contains(msg, "record not found") || strings.Contains(msg, "hashedpassword"):
		return "неверный email или пароль"
	default:
		return "не удалось выполнить запрос, попробуйте ещё раз"
	}
}
