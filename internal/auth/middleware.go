package auth

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/models"
)

const ContextProfileIDKey = "profile_id"

// IdentityMiddleware resolves the request profile. A request without an
// Authorization header is the guest profile; a header that fails validation is
// rejected instead of silently downgraded to guest.
func IdentityMiddleware(manager *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" || manager == nil {
				c.Set(ContextProfileIDKey, models.GuestProfileID)
				return next(c)
			}

			userID, err := parseBearer(manager, authHeader)
			if err != nil {
				return err
			}

			c.Set(ContextProfileIDKey, userID)
			return next(c)
		}
	}
}

// ProfileIDFromContext возвращает профиль запроса; по умолчанию гостевой.
func ProfileIDFromContext(c echo.Context) uuid.UUID {
	if profileID, ok := c.Get(ContextProfileIDKey).(uuid.UUID); ok {
		return profileID
	}
	return models.GuestProfileID
}

// UserIDFromContext извлекает идентификатор авторизованного пользователя.
func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	profileID := ProfileIDFromContext(c)
	return profileID, profileID != models.GuestProfileID
}

func parseBearer(manager *TokenManager, header string) (uuid.UUID, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
	}

	claims, err := manager.ParseAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	userID, err := claims.ProfileID()
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
	}

	return userID, nil
}
