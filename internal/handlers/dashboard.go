package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/receipt-tracker/backend/internal/models"
	"example.com/receipt-tracker/backend/internal/receipts"
)

type DashboardHandler struct {
	Stores          StoreResolver
	WarningFraction float64
	Logger          *slog.Logger
	Now             func() time.Time
}

// NewDashboardHandler создает обработчик месячной сводки.
func NewDashboardHandler(stores StoreResolver, warningFraction float64, logger *slog.Logger) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &DashboardHandler{
		Stores:          stores,
		WarningFraction: warningFraction,
		Logger:          logger,
		Now:             time.Now,
	}
}

type DashboardResponse struct {
	View          receipts.ViewState   `json:"view"`
	PreviousMonth string               `json:"previous_month"`
	NextMonth     string               `json:"next_month"`
	Allowance     float64              `json:"allowance"`
	Selected      models.MonthlyStat   `json:"selected"`
	Months        []models.MonthlyStat `json:"months"`
	Receipts      []models.Receipt     `json:"receipts"`
}

// Get возвращает статистику по месяцам и данные выбранного месяца.
func (h *DashboardHandler) Get(c echo.Context) error {
	view := receipts.NewViewState(h.Now())

	if month := c.QueryParam("month"); month != "" {
		if !receipts.IsMonthKey(month) {
			return badRequest(c, "invalid month")
		}
		view.SelectMonth(month)
	}

	if navigate := c.QueryParam("navigate"); navigate != "" {
		direction, err := strconv.Atoi(navigate)
		if err != nil {
			return badRequest(c, "invalid navigate direction")
		}
		if err := view.Navigate(direction); err != nil {
			return badRequest(c, err.Error())
		}
	}

	if key := c.QueryParam("sort"); key != "" {
		config, err := receipts.ParseSortConfig(key, c.QueryParam("direction"))
		if err != nil {
			return badRequest(c, err.Error())
		}
		view.Sort = config
	}

	// toggle is the column the user just clicked; sort/direction carry the previous config.
	if key := c.QueryParam("toggle"); key != "" {
		clicked, err := receipts.ParseSortConfig(key, "")
		if err != nil {
			return badRequest(c, err.Error())
		}
		view.ToggleSort(clicked.Key)
	}

	ctx := c.Request().Context()
	store, _ := storeFor(c, h.Stores)

	stored, err := store.List(ctx)
	if err != nil {
		h.Logger.ErrorContext(ctx, "list receipts for dashboard", slog.String("error", err.Error()))
		return serverError(c)
	}

	allowance, err := store.GetAllowance(ctx)
	if err != nil {
		h.Logger.ErrorContext(ctx, "read allowance", slog.String("error", err.Error()))
		return serverError(c)
	}

	theme, err := store.GetTheme(ctx)
	if err != nil {
		h.Logger.WarnContext(ctx, "read theme", slog.String("error", err.Error()))
		theme = models.ThemeSystem
	}
	view.Theme = theme

	budget := receipts.Budget{Allowance: allowance, WarningFraction: h.WarningFraction}
	months := budget.Aggregate(stored)

	previous, _ := receipts.ShiftMonth(view.SelectedMonth, -1)
	next, _ := receipts.ShiftMonth(view.SelectedMonth, 1)

	monthReceipts := view.Receipts(stored)
	if c.QueryParam("sort") != "" || c.QueryParam("toggle") != "" {
		monthReceipts = receipts.Sort(monthReceipts, view.Sort)
	}

	return c.JSON(http.StatusOK, DashboardResponse{
		View:          view,
		PreviousMonth: previous,
		NextMonth:     next,
		Allowance:     allowance,
		Selected:      view.Stats(months, budget),
		Months:        months,
		Receipts:      monthReceipts,
	})
}
