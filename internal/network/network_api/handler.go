package network_api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/network"
	"train-station/internal/utils"
)

type Handler struct {
	NetworkService *network.NetworkService
	MediaURL       string
	Logger         *logger.Logger
}

func NewHandler(networkService *network.NetworkService, mediaURL string, log *logger.Logger) *Handler {
	return &Handler{NetworkService: networkService, MediaURL: mediaURL, Logger: log}
}

// RegisterRoutes mounts the reference-data resources on r, which is expected
// to be the /station router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/train-types", func(r chi.Router) {
		r.Get("/", h.ListTrainTypes)
		r.Post("/", h.CreateTrainType)
	})
	r.Route("/trains", func(r chi.Router) {
		r.Get("/", h.ListTrains)
		r.Post("/", h.CreateTrain)
		r.Get("/{trainId}/", h.GetTrain)
		r.Put("/{trainId}/", h.UpdateTrain)
		r.Patch("/{trainId}/", h.UpdateTrain)
		r.Delete("/{trainId}/", h.DeleteTrain)
	})
	r.Route("/stations", func(r chi.Router) {
		r.Get("/", h.ListStations)
		r.Post("/", h.CreateStation)
		r.Post("/{stationId}/upload-image/", h.UploadStationImage)
	})
	r.Route("/routes", func(r chi.Router) {
		r.Get("/", h.ListRoutes)
		r.Post("/", h.CreateRoute)
		r.Get("/{routeId}/", h.GetRoute)
		r.Put("/{routeId}/", h.UpdateRoute)
		r.Patch("/{routeId}/", h.UpdateRoute)
		r.Delete("/{routeId}/", h.DeleteRoute)
	})
	r.Route("/crews", func(r chi.Router) {
		r.Get("/", h.ListCrews)
		r.Post("/", h.CreateCrew)
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

func (h *Handler) stationView(s *models.Station) models.StationView {
	return models.NewStationView(s, h.MediaURL)
}

// ---------------- TRAIN TYPES ----------------

func (h *Handler) ListTrainTypes(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListTrainTypes", err)
		return
	}
	types, count, err := h.NetworkService.ListTrainTypes(r.Context(), auth.FromContext(r.Context()), page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, types, models.NewTrainTypeView)
	}
	if err != nil {
		h.fail(w, "ListTrainTypes", err)
	}
}

func (h *Handler) CreateTrainType(w http.ResponseWriter, r *http.Request) {
	var req models.TrainTypeRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateTrainType", err)
		return
	}
	t, err := h.NetworkService.CreateTrainType(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateTrainType", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateTrainType: created train type %d", t.ID))
	_ = utils.WriteJSON(w, http.StatusCreated, models.NewTrainTypeView(t))
}

// ---------------- TRAINS ----------------

func (h *Handler) ListTrains(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListTrains", err)
		return
	}
	trains, count, err := h.NetworkService.ListTrains(r.Context(), auth.FromContext(r.Context()), page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, trains, models.NewTrainView)
	}
	if err != nil {
		h.fail(w, "ListTrains", err)
	}
}

func (h *Handler) GetTrain(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "trainId"))
	if err != nil {
		h.fail(w, "GetTrain", err)
		return
	}
	view, err := h.NetworkService.GetTrain(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "GetTrain", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) CreateTrain(w http.ResponseWriter, r *http.Request) {
	var req models.TrainRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateTrain", err)
		return
	}
	train, err := h.NetworkService.CreateTrain(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateTrain", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateTrain: created train %d", train.ID))
	_ = utils.WriteJSON(w, http.StatusCreated, models.NewTrainView(train))
}

func (h *Handler) UpdateTrain(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "trainId"))
	if err != nil {
		h.fail(w, "UpdateTrain", err)
		return
	}
	var patch models.TrainPatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		h.fail(w, "UpdateTrain", err)
		return
	}
	train, err := h.NetworkService.UpdateTrain(r.Context(), auth.FromContext(r.Context()), id, patch, r.Method == http.MethodPatch)
	if err != nil {
		h.fail(w, "UpdateTrain", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.NewTrainView(train))
}

func (h *Handler) DeleteTrain(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "trainId"))
	if err == nil {
		err = h.NetworkService.DeleteTrain(r.Context(), auth.FromContext(r.Context()), id)
	}
	if err != nil {
		h.fail(w, "DeleteTrain", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteTrain: deleted train %d", id))
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- STATIONS ----------------

func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListStations", err)
		return
	}
	stations, count, err := h.NetworkService.ListStations(r.Context(), auth.FromContext(r.Context()), page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, stations, h.stationView)
	}
	if err != nil {
		h.fail(w, "ListStations", err)
	}
}

func (h *Handler) CreateStation(w http.ResponseWriter, r *http.Request) {
	var req models.StationRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateStation", err)
		return
	}
	station, err := h.NetworkService.CreateStation(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateStation", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, h.stationView(station))
}

// UploadStationImage accepts a multipart form with an "image" file part.
func (h *Handler) UploadStationImage(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "stationId"))
	if err != nil {
		h.fail(w, "UploadStationImage", err)
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		h.fail(w, "UploadStationImage", apperr.Field("image", apperr.ErrInvalid, "no file was submitted"))
		return
	}
	defer file.Close()

	station, err := h.NetworkService.UploadStationImage(r.Context(), auth.FromContext(r.Context()), id, file)
	if err != nil {
		h.fail(w, "UploadStationImage", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("UploadStationImage: stored %s for station %d", station.Image, id))
	_ = utils.WriteJSON(w, http.StatusOK, h.stationView(station))
}

// ---------------- ROUTES ----------------

func (h *Handler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListRoutes", err)
		return
	}
	filter := models.RouteFilter{
		Source:      r.URL.Query().Get("source"),
		Destination: r.URL.Query().Get("destination"),
	}
	routes, count, err := h.NetworkService.ListRoutes(r.Context(), auth.FromContext(r.Context()), filter, page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, routes, models.NewRouteView)
	}
	if err != nil {
		h.fail(w, "ListRoutes", err)
	}
}

func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "routeId"))
	if err != nil {
		h.fail(w, "GetRoute", err)
		return
	}
	route, err := h.NetworkService.GetRoute(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "GetRoute", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.NewRouteView(route))
}

func (h *Handler) CreateRoute(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateRoute", err)
		return
	}
	route, err := h.NetworkService.CreateRoute(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateRoute", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateRoute: created route %d", route.ID))
	_ = utils.WriteJSON(w, http.StatusCreated, models.NewRouteView(route))
}

func (h *Handler) UpdateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "routeId"))
	if err != nil {
		h.fail(w, "UpdateRoute", err)
		return
	}
	var patch models.RoutePatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		h.fail(w, "UpdateRoute", err)
		return
	}
	route, err := h.NetworkService.UpdateRoute(r.Context(), auth.FromContext(r.Context()), id, patch, r.Method == http.MethodPatch)
	if err != nil {
		h.fail(w, "UpdateRoute", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.NewRouteView(route))
}

func (h *Handler) DeleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "routeId"))
	if err == nil {
		err = h.NetworkService.DeleteRoute(r.Context(), auth.FromContext(r.Context()), id)
	}
	if err != nil {
		h.fail(w, "DeleteRoute", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("DeleteRoute: deleted route %d", id))
	w.WriteHeader(http.StatusNoContent)
}

// ---------------- CREWS ----------------

func (h *Handler) ListCrews(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListCrews", err)
		return
	}
	crews, count, err := h.NetworkService.ListCrews(r.Context(), auth.FromContext(r.Context()), page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, crews, models.NewCrewView)
	}
	if err != nil {
		h.fail(w, "ListCrews", err)
	}
}

func (h *Handler) CreateCrew(w http.ResponseWriter, r *http.Request) {
	var req models.CrewRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateCrew", err)
		return
	}
	crew, err := h.NetworkService.CreateCrew(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateCrew", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, models.NewCrewView(crew))
}
