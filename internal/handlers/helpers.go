package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/auth"
	"example.com/receipt-tracker/backend/internal/repository"
)

// StoreResolver выбирает хранилище профиля запроса.
type StoreResolver interface {
	Resolve(profileID uuid.UUID) repository.ReceiptStore
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func storeFor(c echo.Context, stores StoreResolver) (repository.ReceiptStore, uuid.UUID) {
	profileID := auth.ProfileIDFromContext(c)
	return stores.Resolve(profileID), profileID
}

// decodeRequest возвращает текст ошибки для клиента или пустую строку.
func decodeRequest(c echo.Context, req interface{}) string {
	if err := c.Bind(req); err != nil {
		return "invalid payload"
	}
	if err := c.Validate(req); err != nil {
		return "validation failed: " + err.Error()
	}
	return ""
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
}

func conflict(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, ErrorResponse{Error: message})
}

func notFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{Error: message})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func unavailable(c echo.Context, message string) error {
	return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: message})
}
