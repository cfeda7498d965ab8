package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/auth"
	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/repository"
)

type AuthHandler struct {
	Users        *repository.UserRepository
	Tokens       *repository.RefreshTokenRepository
	TokenManager *auth.TokenManager
}

// NewAuthHandler создает обработчик авторизации.
func NewAuthHandler(users *repository.UserRepository, tokens *repository.RefreshTokenRepository, manager *auth.TokenManager) *AuthHandler {
	return &AuthHandler{
		Users:        users,
		Tokens:       tokens,
		TokenManager: manager,
	}
}

type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=8,max=72"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type AuthUser struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  *string   `json:"name,omitempty"`
}

type AuthResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         AuthUser `json:"user"`
}

// ProfileResponse describes who the request acts as; guests have no user.
type ProfileResponse struct {
	ProfileID uuid.UUID `json:"profile_id"`
	Guest     bool      `json:"guest"`
	User      *AuthUser `json:"user,omitempty"`
}

var errRefreshRejected = errors.New("refresh token rejected")

// Register регистрирует пользователя и выдает токены.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if msg := decodeRequest(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	passwordHash, err := auth.HashPassword(strings.TrimSpace(req.Password))
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return badRequest(c, "password is too long")
		}
		return serverError(c)
	}

	user, err := h.Users.Create(c.Request().Context(), normalizeEmail(req.Email), passwordHash, normalizeName(req.Name))
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflict(c, "user already exists")
		}
		return serverError(c)
	}

	return h.respondWithTokens(c, http.StatusCreated, user)
}

// Login выполняет вход и выдает токены.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if msg := decodeRequest(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	user, err := h.Users.GetByEmail(c.Request().Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	if err := auth.ComparePassword(user.PasswordHash, strings.TrimSpace(req.Password)); err != nil {
		return unauthorized(c)
	}

	return h.respondWithTokens(c, http.StatusOK, user)
}

// Refresh обновляет пару токенов, отзывая предыдущий refresh-токен.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if msg := decodeRequest(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	ctx := c.Request().Context()
	stored, err := h.verifyRefresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, errRefreshRejected) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	user, err := h.Users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	newRefreshID := uuid.New()
	pair, err := h.TokenManager.NewTokenPair(user.ID, newRefreshID)
	if err != nil {
		return serverError(c)
	}

	newToken := models.RefreshToken{
		ID:        newRefreshID,
		UserID:    user.ID,
		TokenHash: auth.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
	}

	if err := h.Tokens.Rotate(ctx, stored.ID, newToken); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c)
		}
		return serverError(c)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toAuthUser(user),
	})
}

// Logout отзывает refresh-токен; повторный выход не считается ошибкой.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req RefreshRequest
	if msg := decodeRequest(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	claims, err := h.TokenManager.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return unauthorized(c)
	}

	refreshID, err := claims.TokenID()
	if err != nil {
		return unauthorized(c)
	}

	if err := h.Tokens.Revoke(c.Request().Context(), refreshID, nil); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return serverError(c)
	}

	return c.NoContent(http.StatusNoContent)
}

// Me возвращает текущий профиль: гостевой или пользователя.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusOK, ProfileResponse{ProfileID: models.GuestProfileID, Guest: true})
	}

	user, err := h.Users.GetByID(c.Request().Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound(c, "user not found")
		}
		return serverError(c)
	}

	authUser := toAuthUser(user)
	return c.JSON(http.StatusOK, ProfileResponse{ProfileID: user.ID, User: &authUser})
}

func (h *AuthHandler) verifyRefresh(ctx context.Context, token string) (models.RefreshToken, error) {
	claims, err := h.TokenManager.ParseRefreshToken(token)
	if err != nil {
		return models.RefreshToken{}, errRefreshRejected
	}

	refreshID, err := claims.TokenID()
	if err != nil {
		return models.RefreshToken{}, errRefreshRejected
	}

	userID, err := claims.ProfileID()
	if err != nil {
		return models.RefreshToken{}, errRefreshRejected
	}

	stored, err := h.Tokens.GetByID(ctx, refreshID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.RefreshToken{}, errRefreshRejected
		}
		return models.RefreshToken{}, err
	}

	switch {
	case stored.RevokedAt != nil, time.Now().After(stored.ExpiresAt):
		return models.RefreshToken{}, errRefreshRejected
	case stored.UserID != userID:
		return models.RefreshToken{}, errRefreshRejected
	case !auth.CompareTokenHash(stored.TokenHash, token):
		return models.RefreshToken{}, errRefreshRejected
	}

	return stored, nil
}

func (h *AuthHandler) respondWithTokens(c echo.Context, status int, user models.User) error {
	refreshID := uuid.New()
	pair, err := h.TokenManager.NewTokenPair(user.ID, refreshID)
	if err != nil {
		return serverError(c)
	}

	if err := h.Tokens.Create(c.Request().Context(), models.RefreshToken{
		ID:        refreshID,
		UserID:    user.ID,
		TokenHash: auth.HashToken(pair.RefreshToken),
		ExpiresAt: pair.RefreshExpiresAt,
	}); err != nil {
		return serverError(c)
	}

	return c.JSON(status, AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         toAuthUser(user),
	})
}

func toAuthUser(user models.User) AuthUser {
	return AuthUser{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeName(name *string) *string {
	if name == nil {
		return nil
	}

	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}

	return &trimmed
}
