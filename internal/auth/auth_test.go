package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/config"
	"example.com/receipt-tracker/backend/internal/models"
)

func newTestManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "receipt-tracker",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
}

// TestTokenPairRoundTrip проверяет выпуск и разбор токенов.
func TestTokenPairRoundTrip(t *testing.T) {
	manager := newTestManager()
	userID := uuid.New()
	refreshID := uuid.New()

	pair, err := manager.NewTokenPair(userID, refreshID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	access, err := manager.ParseAccessToken(pair.AccessToken)
	if err != nil || access.Subject != userID.String() {
		t.Fatalf("unexpected access claims %+v (err=%v)", access, err)
	}

	refresh, err := manager.ParseRefreshToken(pair.RefreshToken)
	if err != nil || refresh.ID != refreshID.String() {
		t.Fatalf("unexpected refresh claims %+v (err=%v)", refresh, err)
	}

	if _, err := manager.ParseRefreshToken(pair.AccessToken); !errors.Is(err, ErrTokenType) {
		t.Fatalf("expected token type error, got %v", err)
	}
}

// TestTokenExpired проверяет отказ для просроченного токена.
func TestTokenExpired(t *testing.T) {
	manager := newTestManager()
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return issued }

	pair, err := manager.NewTokenPair(uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	manager.now = func() time.Time { return issued.Add(time.Hour) }
	if _, err := manager.ParseAccessToken(pair.AccessToken); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

// TestGuestGetsNoToken проверяет, что гостевой профиль не получает токены.
func TestGuestGetsNoToken(t *testing.T) {
	if _, err := newTestManager().NewTokenPair(models.GuestProfileID, uuid.New()); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

// TestPasswordHashing проверяет хэширование пароля.
func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ComparePassword(hash, "correct horse") != nil {
		t.Fatal("expected password to match")
	}
	if ComparePassword(hash, "wrong") == nil {
		t.Fatal("expected password mismatch")
	}
	if _, err := HashPassword(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected too long error, got %v", err)
	}
}

// TestTokenHash проверяет сравнение хэша refresh-токена.
func TestTokenHash(t *testing.T) {
	hash := HashToken("token")
	if !CompareTokenHash(hash, "token") || CompareTokenHash(hash, "other") {
		t.Fatal("unexpected token hash comparison")
	}
}

func runIdentity(t *testing.T, manager *TokenManager, header string) (uuid.UUID, int) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var profileID uuid.UUID
	handler := IdentityMiddleware(manager)(func(c echo.Context) error {
		profileID = ProfileIDFromContext(c)
		return c.NoContent(http.StatusNoContent)
	})

	if err := handler(c); err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return profileID, httpErr.Code
		}
		t.Fatalf("unexpected error %v", err)
	}

	return profileID, rec.Code
}

// TestIdentityMiddleware проверяет гостевой, авторизованный и ошибочный запросы.
func TestIdentityMiddleware(t *testing.T) {
	manager := newTestManager()
	userID := uuid.New()
	pair, err := manager.NewTokenPair(userID, uuid.New())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	profileID, code := runIdentity(t, manager, "")
	if profileID != models.GuestProfileID || code != http.StatusNoContent {
		t.Fatalf("expected guest profile, got %v (%d)", profileID, code)
	}

	profileID, code = runIdentity(t, manager, "Bearer "+pair.AccessToken)
	if profileID != userID || code != http.StatusNoContent {
		t.Fatalf("expected user profile, got %v (%d)", profileID, code)
	}

	_, code = runIdentity(t, manager, "Bearer broken")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}

	_, code = runIdentity(t, manager, "Basic abc")
	if code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}
