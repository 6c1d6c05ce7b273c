package trip_api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/trip"
	"train-station/internal/utils"
)

const dateLayout = "2006-01-02"

type Handler struct {
	TripService *trip.TripService
	Logger      *logger.Logger
}

func NewHandler(tripService *trip.TripService, log *logger.Logger) *Handler {
	return &Handler{TripService: tripService, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/trips", func(r chi.Router) {
		r.Get("/", h.ListTrips)
		r.Post("/", h.CreateTrip)
		r.Get("/{tripId}/", h.GetTrip)
		r.Put("/{tripId}/", h.UpdateTrip)
		r.Patch("/{tripId}/", h.UpdateTrip)
		r.Delete("/{tripId}/", h.DeleteTrip)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("%s: rejected with %d: %v", op, status, err))
}

func parseFilter(r *http.Request) (models.TripFilter, error) {
	q := r.URL.Query()
	filter := models.TripFilter{Route: q.Get("route")}
	var errs apperr.Errors
	for field, dst := range map[string]**time.Time{"departure": &filter.Departure, "arrival": &filter.Arrival} {
		raw := q.Get(field)
		if raw == "" {
			continue
		}
		day, err := time.Parse(dateLayout, raw)
		if err != nil {
			errs = append(errs, apperr.Field(field, apperr.ErrInvalid, "date must be in YYYY-MM-DD format"))
			continue
		}
		*dst = &day
	}
	return filter, errs.OrNil()
}

func (h *Handler) ListTrips(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListTrips", err)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, "ListTrips", err)
		return
	}

	trips, count, err := h.TripService.ListTrips(r.Context(), auth.FromContext(r.Context()), filter, page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, trips, models.NewTripListView)
	}
	if err != nil {
		h.fail(w, "ListTrips", err)
	}
}

func (h *Handler) GetTrip(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "tripId"))
	if err != nil {
		h.fail(w, "GetTrip", err)
		return
	}
	view, err := h.TripService.GetTrip(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "GetTrip", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	var req models.TripRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateTrip", err)
		return
	}
	view, err := h.TripService.CreateTrip(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateTrip", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "tripId"))
	if err != nil {
		h.fail(w, "UpdateTrip", err)
		return
	}
	var patch models.TripPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		h.fail(w, "UpdateTrip", err)
		return
	}
	view, err := h.TripService.UpdateTrip(r.Context(), auth.FromContext(r.Context()), id, patch, r.Method == http.MethodPatch)
	if err != nil {
		h.fail(w, "UpdateTrip", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "tripId"))
	if err == nil {
		err = h.TripService.DeleteTrip(r.Context(), auth.FromContext(r.Context()), id)
	}
	if err != nil {
		h.fail(w, "DeleteTrip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
