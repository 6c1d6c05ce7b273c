package analytics_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"train-station/internal/analytics"
	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, logger *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: logger}
}

// RegisterRoutes registers the analytics routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/daily-tickets/", h.GetDailyTickets)
		r.Get("/routes/", h.GetRoutes)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Debug("ANALYTICS", fmt.Sprintf("%s: rejected with %d: %v", op, status, err))
}

func parseDay(r *http.Request, field string) (time.Time, error) {
	raw := r.URL.Query().Get(field)
	if raw == "" {
		return time.Time{}, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, apperr.Field(field, apperr.ErrInvalid, "date must be in YYYY-MM-DD format")
	}
	return day, nil
}

// GetDailyTickets handles GET /reports/daily-tickets/?from=&to=
func (h *Handler) GetDailyTickets(w http.ResponseWriter, r *http.Request) {
	var rng analytics.DateRange
	var err error
	if rng.From, err = parseDay(r, "from"); err != nil {
		h.fail(w, "GetDailyTickets", err)
		return
	}
	if rng.To, err = parseDay(r, "to"); err != nil {
		h.fail(w, "GetDailyTickets", err)
		return
	}

	report, err := h.Service.GetDailyTickets(r.Context(), auth.FromContext(r.Context()), rng)
	if err != nil {
		h.fail(w, "GetDailyTickets", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, report)
}

// GetRoutes handles GET /reports/routes/
func (h *Handler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.GetRouteReport(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.fail(w, "GetRoutes", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, report)
}
