package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/repository"
)

type SettingsHandler struct {
	Stores          StoreResolver
	WarningFraction float64
	Logger          *slog.Logger
}

// NewSettingsHandler создает обработчик бюджета и темы оформления.
func NewSettingsHandler(stores StoreResolver, warningFraction float64, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SettingsHandler{Stores: stores, WarningFraction: warningFraction, Logger: logger}
}

type BudgetRequest struct {
	Allowance float64 `json:"allowance" validate:"required,gt=0"`
}

type BudgetResponse struct {
	Allowance       float64 `json:"allowance"`
	WarningFraction float64 `json:"warning_fraction"`
}

type ThemeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark system"`
}

type ThemeResponse struct {
	Theme models.Theme `json:"theme"`
}

// GetBudget возвращает месячный бюджет профиля.
func (h *SettingsHandler) GetBudget(c echo.Context) error {
	store, _ := storeFor(c, h.Stores)

	allowance, err := store.GetAllowance(c.Request().Context())
	if err != nil {
		h.Logger.ErrorContext(c.Request().Context(), "read allowance", slog.String("error", err.Error()))
		return serverError(c)
	}

	return c.JSON(http.StatusOK, BudgetResponse{Allowance: allowance, WarningFraction: h.WarningFraction})
}

// UpdateBudget задает месячный бюджет профиля.
func (h *SettingsHandler) UpdateBudget(c echo.Context) error {
	var req BudgetRequest
	if msg := decodeRequest(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	store, _ := storeFor(c, h.Stores)
	if err := store.SetAllowance(c.Request().Context(), req.Allowance); err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "allowance must be a positive number")
		}
		h.Logger.ErrorContext(c.Request().Context(), "write allowance", slog.String("error", err.Error()))
		return serverError(c)
	}

	return c.JSON(http.StatusOK, BudgetResponse{Allowance: req.Allowance, WarningFraction: h.WarningFraction})
}

// GetTheme возвращает сохраненную тему оформления.
func (h *SettingsHandler) GetTheme(c echo.Context) error {
	store, _ := storeFor(c, h.Stores)

	theme, err := store.GetTheme(c.Request().Context())
	if err != nil {
		h.Logger.ErrorContext(c.Request().Context(), "read theme", slog.String("error", err.Error()))
		return serverError(c)
	}

	return c.JSON(http.StatusOK, ThemeResponse{Theme: theme})
}

// UpdateTheme сохраняет тему оформления.
func (h *SettingsHandler) UpdateTheme(c echo.Context) error {
	var req ThemeRequest
	if msg := decodeRequest(c, &req); msg != "" {
		return badRequest(c, msg)
	}

	theme := models.Theme(req.Theme)
	store, _ := storeFor(c, h.Stores)
	if err := store.SetTheme(c.Request().Context(), theme); err != nil {
		if errors.Is(err, repository.ErrInvalid) {
			return badRequest(c, "unknown theme")
		}
		h.Logger.ErrorContext(c.Request().Context(), "write theme", slog.String("error", err.Error()))
		return serverError(c)
	}

	return c.JSON(http.StatusOK, ThemeResponse{Theme: theme})
}
