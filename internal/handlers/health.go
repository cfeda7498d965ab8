package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool; wrap *sql.DB as PingFunc(db.PingContext).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

type HealthHandler struct {
	Local  Pinger
	Remote Pinger
}

type HealthResponse struct {
	Status string `json:"status"`
	Local  string `json:"local"`
	Remote string `json:"remote"`
}

// NewHealthHandler создает обработчик проверки состояния; remote может быть nil.
func NewHealthHandler(local, remote Pinger) *HealthHandler {
	return &HealthHandler{Local: local, Remote: remote}
}

// Health возвращает статус сервиса и хранилищ.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "ok", Local: probe(ctx, h.Local), Remote: probe(ctx, h.Remote)}
	if response.Local == "down" || response.Remote == "down" {
		response.Status = "degraded"
		return c.JSON(http.StatusServiceUnavailable, response)
	}

	return c.JSON(http.StatusOK, response)
}

func probe(ctx context.Context, pinger Pinger) string {
	if pinger == nil {
		return "disabled"
	}
	if err := pinger.Ping(ctx); err != nil {
		return "down"
	}
	return "up"
}
