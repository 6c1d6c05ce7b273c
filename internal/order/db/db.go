package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"train-station/internal/apperr"
	"train-station/internal/database"
	"train-station/internal/models"
	"train-station/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

// TripsWithTrains loads the given trips with their trains, keyed by id.
// Unknown ids are absent from the result.
func (d *DB) TripsWithTrains(ctx context.Context, ids []int64) (map[int64]*models.Trip, error) {
	out := make(map[int64]*models.Trip, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var trips []*models.Trip
	err := d.Bun.NewSelect().
		Model(&trips).
		Relation("Train").
		Where("trip.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range trips {
		out[t.ID] = t
	}
	return out, nil
}

// CreateOrder writes the order and its tickets in one transaction. A seat
// that is already sold, whether seen by the pre-check or by the unique
// constraint, fails the whole order with ErrSeatAlreadyTaken.
func (d *DB) CreateOrder(ctx context.Context, order *models.Order) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i, t := range order.Tickets {
			taken, err := tx.NewSelect().
				Model((*models.Ticket)(nil)).
				Where("trip_id = ? AND seat = ?", t.TripID, t.Seat).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("check seat: %w", err)
			}
			if taken {
				return seatTaken(i, t)
			}
		}

		if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		for _, t := range order.Tickets {
			t.OrderID = order.ID
		}
		if _, err := tx.NewInsert().Model(&order.Tickets).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("insert tickets: %w", apperr.Field("tickets", apperr.ErrSeatAlreadyTaken, "a seat was sold while the order was being placed"))
			}
			return fmt.Errorf("insert tickets: %w", err)
		}
		return nil
	})
}

func seatTaken(i int, t *models.Ticket) error {
	return apperr.Field(fmt.Sprintf("tickets[%d].seat", i), apperr.ErrSeatAlreadyTaken,
		"seat %d on trip %d is already taken", t.Seat, t.TripID)
}

func (d *DB) selectOrders(model interface{}, userID int64) *bun.SelectQuery {
	return d.Bun.NewSelect().
		Model(model).
		Relation("Tickets", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ticket.id")
		}).
		Relation("Tickets.Trip").
		Relation("Tickets.Trip.Route").
		Relation("Tickets.Trip.Train").
		Where(`"order"."user_id" = ?`, userID)
}

// ListOrders returns the user's orders, oldest first.
func (d *DB) ListOrders(ctx context.Context, userID int64, page utils.Page) ([]models.Order, int, error) {
	var orders []models.Order
	count, err := d.selectOrders(&orders, userID).
		Order("order.created_at", "order.id").
		Limit(page.Size).
		Offset(page.Offset()).
		ScanAndCount(ctx)
	return orders, count, err
}

// GetOrder returns the order only when it belongs to userID.
func (d *DB) GetOrder(ctx context.Context, userID, id int64) (*models.Order, error) {
	var order models.Order
	err := d.selectOrders(&order, userID).Where(`"order"."id" = ?`, id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// DeleteOrder removes the user's order; its tickets go with it.
func (d *DB) DeleteOrder(ctx context.Context, userID, id int64) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Order)(nil)).
		Where("id = ? AND user_id = ?", id, userID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// GetTicket returns one ticket of the user's order with its trip.
func (d *DB) GetTicket(ctx context.Context, userID, orderID, ticketID int64) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("Order").
		Relation("Trip").
		Relation("Trip.Route").
		Relation("Trip.Train").
		Where("ticket.id = ?", ticketID).
		Where("ticket.order_id = ?", orderID).
		Where(`"order"."user_id" = ?`, userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ticket %d: %w", ticketID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}
