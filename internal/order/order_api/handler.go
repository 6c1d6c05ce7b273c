package order_api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/order"
	"train-station/internal/utils"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{OrderService: orderService, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.ListOrders)
		r.Post("/", h.CreateOrder)
		r.Get("/{orderId}/", h.GetOrder)
		r.Delete("/{orderId}/", h.DeleteOrder)
		r.Get("/{orderId}/tickets/{ticketId}/qr/", h.GetTicketQR)
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

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "CreateOrder", err)
		return
	}
	view, err := h.OrderService.Book(r.Context(), auth.FromContext(r.Context()), req)
	if err != nil {
		h.fail(w, "CreateOrder", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, view)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := utils.ParsePage(r)
	if err != nil {
		h.fail(w, "ListOrders", err)
		return
	}
	orders, count, err := h.OrderService.ListOrders(r.Context(), auth.FromContext(r.Context()), page)
	if err == nil {
		err = utils.WritePage(w, r, page, count, orders, models.NewOrderListView)
	}
	if err != nil {
		h.fail(w, "ListOrders", err)
	}
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	o, err := h.OrderService.GetOrder(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		h.fail(w, "GetOrder", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.NewOrderListView(o))
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := utils.ParseID(chi.URLParam(r, "orderId"))
	if err == nil {
		err = h.OrderService.DeleteOrder(r.Context(), auth.FromContext(r.Context()), id)
	}
	if err != nil {
		h.fail(w, "DeleteOrder", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetTicketQR(w http.ResponseWriter, r *http.Request) {
	orderID, err := utils.ParseID(chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "GetTicketQR", err)
		return
	}
	ticketID, err := utils.ParseID(chi.URLParam(r, "ticketId"))
	if err != nil {
		h.fail(w, "GetTicketQR", err)
		return
	}
	png, err := h.OrderService.TicketQR(r.Context(), auth.FromContext(r.Context()), orderID, ticketID)
	if err != nil {
		h.fail(w, "GetTicketQR", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
