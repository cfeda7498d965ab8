package server

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/receipt-tracker/backend/internal/ai"
	"example.com/receipt-tracker/backend/internal/auth"
	"example.com/receipt-tracker/backend/internal/config"
	"example.com/receipt-tracker/backend/internal/handlers"
	"example.com/receipt-tracker/backend/internal/metrics"
	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/notifications"
	"example.com/receipt-tracker/backend/internal/receipts"
	"example.com/receipt-tracker/backend/internal/repository"
)

// New собирает HTTP-сервер Echo с роутами и зависимостями. pool равен nil,
// если удаленное хранилище не настроено: тогда доступен только гостевой профиль.
func New(cfg config.Config, logger *slog.Logger, local *sql.DB, pool *pgxpool.Pool) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))
	e.Use(middleware.BodyLimit(uploadBodyLimit(cfg.Ingest)))

	appMetrics := metrics.New()
	hub := notifications.NewHub()

	localStore := repository.NewLocalStore(local, cfg.Local, cfg.Budget.DefaultAllowance, hub)
	health := handlers.NewHealthHandler(handlers.PingFunc(local.PingContext), nil)

	var (
		remote         *repository.RemoteStores
		tokenManager   *auth.TokenManager
		authHandler    *handlers.AuthHandler
		extractionLogs handlers.ExtractionLogger
	)
	if pool != nil {
		remote = repository.NewRemoteStores(
			repository.NewReceiptRepository(pool),
			repository.NewBudgetRepository(pool),
			cfg.Budget.DefaultAllowance,
			hub,
		)
		tokenManager = auth.NewTokenManager(cfg.Auth)
		authHandler = handlers.NewAuthHandler(repository.NewUserRepository(pool), repository.NewRefreshTokenRepository(pool), tokenManager)
		extractionLogs = repository.NewExtractionLogRepository(pool)
		health.Remote = pool
	}
	stores := repository.NewResolver(localStore, remote)

	extractor := ai.NewService(newExtractionClient(cfg.AI, appMetrics))
	pipeline := receipts.NewPipeline(extractor, receipts.NewTripClassifier(cfg.Ingest.OfficeKeywords), receipts.PipelineConfig{
		MaxFileBytes: cfg.Ingest.MaxFileBytes,
		Concurrency:  cfg.Ingest.Concurrency,
	})

	receiptHandler := handlers.NewReceiptHandler(stores, pipeline, cfg.Ingest.MaxFiles, appMetrics, extractionLogs, cfg.AI.Provider, cfg.AI.Model, logger)
	dashboardHandler := handlers.NewDashboardHandler(stores, cfg.Budget.WarningFraction, logger)
	settingsHandler := handlers.NewSettingsHandler(stores, cfg.Budget.WarningFraction, logger)
	streamHandler := handlers.NewStreamHandler(stores, hub, cfg.Budget.WarningFraction, logger)

	registerRoutes(e, routes{
		health:          health,
		metrics:         echo.WrapHandler(appMetrics.Handler()),
		auth:            authHandler,
		receipts:        receiptHandler,
		dashboard:       dashboardHandler,
		settings:        settingsHandler,
		stream:          streamHandler,
		identity:        auth.IdentityMiddleware(tokenManager),
		authRateLimiter: authRateLimiter(cfg.Auth),
		aiRateLimiter:   aiRateLimiter(cfg.AI),
	})

	return e
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func newExtractionClient(cfg config.AIConfig, appMetrics *metrics.Metrics) ai.Client {
	var client ai.Client
	switch strings.ToLower(cfg.Provider) {
	case "groq":
		client = ai.NewGroqClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.MaxOutputTokens)
	default:
		client = ai.NewGeminiClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Timeout, cfg.MaxOutputTokens)
	}

	return ai.NewBreakerClient(client, cfg.Provider, cfg.BreakerFailures, cfg.BreakerCooldown, func(name string, state int) {
		appMetrics.SetBreakerState(name, state)
	})
}

// uploadBodyLimit допускает пачку файлов максимального размера с запасом на заголовки multipart.
func uploadBodyLimit(cfg config.IngestConfig) string {
	files := int64(cfg.MaxFiles)
	if files <= 0 {
		files = 1
	}
	megabytes := (cfg.MaxFileBytes*files)/(1024*1024) + 1
	return fmt.Sprintf("%dM", megabytes)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("request_id", v.RequestID),
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.Duration("latency", v.Latency),
				slog.Bool("guest", auth.ProfileIDFromContext(c) == models.GuestProfileID),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

func authRateLimiter(cfg config.AuthConfig) echo.MiddlewareFunc {
	return rateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

// aiRateLimiter ограничивает загрузки; каждая загрузка вызывает модель по числу файлов.
func aiRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	return rateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
}

func rateLimiter(perMinute, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / 60.0),
		Burst:     burst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiter(store)
}
