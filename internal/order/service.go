// Package order places bookings: an order and its tickets are written
// together or not at all.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/order/redis"
	"train-station/internal/utils"
	"train-station/internal/validation"
)

type DBLayer interface {
	TripsWithTrains(ctx context.Context, ids []int64) (map[int64]*models.Trip, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	ListOrders(ctx context.Context, userID int64, page utils.Page) ([]models.Order, int, error)
	GetOrder(ctx context.Context, userID, id int64) (*models.Order, error)
	DeleteOrder(ctx context.Context, userID, id int64) error
	GetTicket(ctx context.Context, userID, orderID, ticketID int64) (*models.Ticket, error)
}

type SeatHolder interface {
	Hold(ctx context.Context, seats []redis.Seat, owner string) (bool, *redis.Seat, error)
	Release(ctx context.Context, seats []redis.Seat, owner string) error
}

type KafkaPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderDeleted(ctx context.Context, order *models.Order) error
}

type QRGenerator interface {
	GenerateEncryptedQR(ticket *models.Ticket) ([]byte, error)
}

// OrderService books tickets. Holds and Kafka are optional; a nil value
// switches the step off.
type OrderService struct {
	DB     DBLayer
	Holds  SeatHolder
	Kafka  KafkaPublisher
	QR     QRGenerator
	Logger *logger.Logger

	now func() time.Time
}

func NewOrderService(db DBLayer, holds SeatHolder, kafka KafkaPublisher, qr QRGenerator, log *logger.Logger) *OrderService {
	return &OrderService{DB: db, Holds: holds, Kafka: kafka, QR: qr, Logger: log, now: time.Now}
}

// Book validates every ticket of req against its trip's train and stores the
// order with all of its tickets in one transaction.
func (s *OrderService) Book(ctx context.Context, p auth.Principal, req models.OrderRequest) (*models.OrderView, error) {
	if err := auth.Authorize(p, auth.ResourceOrder, auth.ActionWrite); err != nil {
		return nil, err
	}
	if req.User != nil && *req.User != p.UserID {
		s.Logger.LogSecurity("ORDER_FOR_OTHER_USER", fmt.Sprintf("user %d tried to order for user %d", p.UserID, *req.User))
		return nil, fmt.Errorf("order for user %d: %w", *req.User, apperr.ErrPermissionDenied)
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	order, err := s.buildOrder(ctx, p.UserID, req.Tickets)
	if err != nil {
		return nil, err
	}

	seats := make([]redis.Seat, 0, len(order.Tickets))
	for _, t := range order.Tickets {
		seats = append(seats, redis.Seat{Trip: t.TripID, Seat: t.Seat})
	}
	if s.Holds != nil {
		owner := uuid.NewString()
		ok, contended, err := s.Holds.Hold(ctx, seats, owner)
		if err != nil {
			return nil, fmt.Errorf("hold seats: %w", err)
		}
		if !ok {
			return nil, heldSeatError(req.Tickets, contended)
		}
		defer func() {
			// Released on a fresh context so a cancelled request still frees them.
			if err := s.Holds.Release(context.Background(), seats, owner); err != nil {
				s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release seat holds: %v", err))
			}
		}()
	}

	if err := s.DB.CreateOrder(ctx, order); err != nil {
		if apperr.IsClientError(err) {
			s.Logger.Debug("ORDER", fmt.Sprintf("Booking rejected for user %d: %v", p.UserID, err))
			return nil, err
		}
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.Logger.LogOrder("CREATED", order.ID, fmt.Sprintf("user %d booked %d ticket(s)", p.UserID, len(order.Tickets)))

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderCreated(ctx, order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish order %d created: %v", order.ID, err))
		}
	}

	view := models.NewOrderView(order)
	return &view, nil
}

// buildOrder resolves the trips and validates each requested ticket. Field
// paths are reported as tickets[i].field.
func (s *OrderService) buildOrder(ctx context.Context, userID int64, reqs []models.TicketRequest) (*models.Order, error) {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.Trip)
	}
	trips, err := s.DB.TripsWithTrains(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load trips: %w", err)
	}

	order := &models.Order{UserID: userID, CreatedAt: s.now().UTC(), Tickets: make([]*models.Ticket, 0, len(reqs))}
	var errs apperr.Errors
	seen := make(map[redis.Seat]int, len(reqs))
	for i, r := range reqs {
		prefix := fmt.Sprintf("tickets[%d]", i)
		trip, ok := trips[r.Trip]
		if !ok || trip.Train == nil {
			errs = append(errs, apperr.Field(prefix+".trip", apperr.ErrNotFound, "invalid pk %d - object does not exist", r.Trip))
			continue
		}
		if err := validation.ValidateTicket(r.Seat, *trip.Train, r.LuggageWeight); err != nil {
			errs = appendPrefixed(errs, prefix, err)
			continue
		}
		key := redis.Seat{Trip: r.Trip, Seat: r.Seat}
		if first, dup := seen[key]; dup {
			errs = append(errs, apperr.Field(prefix+".seat", apperr.ErrSeatAlreadyTaken, "seat %d on trip %d is already in tickets[%d]", r.Seat, r.Trip, first))
			continue
		}
		seen[key] = i

		ticket := &models.Ticket{TripID: r.Trip, Seat: r.Seat}
		if r.LuggageWeight != nil {
			ticket.LuggageWeight = *r.LuggageWeight
		}
		order.Tickets = append(order.Tickets, ticket)
	}
	if err := errs.OrNil(); err != nil {
		return nil, err
	}
	return order, nil
}

func appendPrefixed(errs apperr.Errors, prefix string, err error) apperr.Errors {
	prefixed := apperr.Prefix(prefix, err)
	if es, ok := prefixed.(apperr.Errors); ok {
		return append(errs, es...)
	}
	if fe, ok := prefixed.(*apperr.FieldError); ok {
		return append(errs, fe)
	}
	return append(errs, apperr.Field(prefix, apperr.ErrInvalid, "%v", err))
}

// heldSeatError reports a seat held by another in-flight booking. The seat is
// not sold yet, so the caller gets a retryable conflict rather than
// ErrSeatAlreadyTaken.
func heldSeatError(reqs []models.TicketRequest, seat *redis.Seat) error {
	if seat != nil {
		for i, r := range reqs {
			if r.Trip == seat.Trip && r.Seat == seat.Seat {
				return apperr.Field(fmt.Sprintf("tickets[%d].seat", i), apperr.ErrConflict,
					"seat %d on trip %d is being booked by another order, retry", seat.Seat, seat.Trip)
			}
		}
	}
	return apperr.Field("tickets", apperr.ErrConflict, "a seat is being booked by another order, retry")
}

func (s *OrderService) ListOrders(ctx context.Context, p auth.Principal, page utils.Page) ([]models.Order, int, error) {
	if err := auth.Authorize(p, auth.ResourceOrder, auth.ActionRead); err != nil {
		return nil, 0, err
	}
	orders, count, err := s.DB.ListOrders(ctx, p.UserID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	return orders, count, nil
}

func (s *OrderService) GetOrder(ctx context.Context, p auth.Principal, id int64) (*models.Order, error) {
	if err := auth.Authorize(p, auth.ResourceOrder, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.DB.GetOrder(ctx, p.UserID, id)
}

// DeleteOrder cancels the caller's order and frees its seats.
func (s *OrderService) DeleteOrder(ctx context.Context, p auth.Principal, id int64) error {
	if err := auth.Authorize(p, auth.ResourceOrder, auth.ActionWrite); err != nil {
		return err
	}
	order, err := s.DB.GetOrder(ctx, p.UserID, id)
	if err != nil {
		return err
	}
	if err := s.DB.DeleteOrder(ctx, p.UserID, id); err != nil {
		return err
	}
	s.Logger.LogOrder("DELETED", id, fmt.Sprintf("freed %d seat(s)", len(order.Tickets)))

	if s.Kafka != nil {
		if err := s.Kafka.PublishOrderDeleted(ctx, order); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish order %d deleted: %v", id, err))
		}
	}
	return nil
}

// TicketQR renders the boarding QR code of one ticket of the caller's order.
func (s *OrderService) TicketQR(ctx context.Context, p auth.Principal, orderID, ticketID int64) ([]byte, error) {
	if err := auth.Authorize(p, auth.ResourceOrder, auth.ActionRead); err != nil {
		return nil, err
	}
	ticket, err := s.DB.GetTicket(ctx, p.UserID, orderID, ticketID)
	if err != nil {
		return nil, err
	}
	png, err := s.QR.GenerateEncryptedQR(ticket)
	if err != nil {
		return nil, fmt.Errorf("qr for ticket %d: %w", ticketID, err)
	}
	return png, nil
}
