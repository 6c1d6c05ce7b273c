package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"train-station/internal/apperr"
	"train-station/internal/database"
	"train-station/internal/models"
	"train-station/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

// availableSeatsExpr derives free seats from the ticket table in the same
// SELECT that loads the trip; it needs the "train" relation joined.
const availableSeatsExpr = `"train"."seat_capacity" - (SELECT COUNT(*) FROM "tickets" AS "tk" WHERE "tk"."trip_id" = "trip"."id") AS "available_seats"`

func (d *DB) selectTrips(model interface{}) *bun.SelectQuery {
	return d.Bun.NewSelect().
		Model(model).
		ColumnExpr(`"trip".*`).
		ColumnExpr(availableSeatsExpr).
		Relation("Route").
		Relation("Train")
}

func dayRange(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

func (d *DB) ListTrips(ctx context.Context, filter models.TripFilter, page utils.Page) ([]models.Trip, int, error) {
	var trips []models.Trip
	q := d.selectTrips(&trips).Order("trip.departure_time", "trip.id")

	if filter.Departure != nil {
		start, end := dayRange(*filter.Departure)
		q = q.Where("trip.departure_time >= ?", start).Where("trip.departure_time < ?", end)
	}
	if filter.Arrival != nil {
		start, end := dayRange(*filter.Arrival)
		q = q.Where("trip.arrival_time >= ?", start).Where("trip.arrival_time < ?", end)
	}
	if filter.Route != "" {
		pattern := "%" + database.EscapeLike(strings.ToLower(strings.TrimSpace(filter.Route))) + "%"
		q = q.Where(`LOWER(route.name) LIKE ? ESCAPE '!'`, pattern)
	}

	count, err := q.Limit(page.Size).Offset(page.Offset()).ScanAndCount(ctx)
	return trips, count, err
}

func (d *DB) GetTrip(ctx context.Context, id int64) (*models.Trip, error) {
	var trip models.Trip
	err := d.selectTrips(&trip).Where("trip.id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trip %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// TakenSeats lists the booked seat numbers of a trip in ascending order.
func (d *DB) TakenSeats(ctx context.Context, tripID int64) ([]int, error) {
	var seats []int
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("seat").
		Where("trip_id = ?", tripID).
		Order("seat").
		Scan(ctx, &seats)
	return seats, err
}

func (d *DB) CrewForTrip(ctx context.Context, tripID int64) ([]models.Crew, error) {
	var crews []models.Crew
	err := d.Bun.NewSelect().
		Model(&crews).
		Join(`JOIN "trip_crews" AS "tc" ON "tc"."crew_id" = "crew"."id"`).
		Where(`"tc"."trip_id" = ?`, tripID).
		Order("crew.id").
		Scan(ctx)
	return crews, err
}

// CountCrews returns how many of ids name existing crews.
func (d *DB) CountCrews(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return d.Bun.NewSelect().
		Model((*models.Crew)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Count(ctx)
}

func (d *DB) Exists(ctx context.Context, model interface{}, id int64) (bool, error) {
	return d.Bun.NewSelect().Model(model).Where("id = ?", id).Exists(ctx)
}

func (d *DB) CreateTrip(ctx context.Context, trip *models.Trip, crew []int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(trip).Exec(ctx); err != nil {
			return fmt.Errorf("insert trip: %w", err)
		}
		return assignCrew(ctx, tx, trip.ID, crew)
	})
}

// UpdateTrip saves the trip columns and, when crew is not nil, replaces the
// crew assignment. A train too small for the seats already sold on the trip
// is refused.
func (d *DB) UpdateTrip(ctx context.Context, trip *models.Trip, crew *[]int64) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := checkCapacity(ctx, tx, trip); err != nil {
			return err
		}
		_, err := tx.NewUpdate().
			Model(trip).
			Column("route_id", "train_id", "departure_time", "arrival_time").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update trip: %w", err)
		}
		if crew == nil {
			return nil
		}
		if _, err := tx.NewDelete().Model((*models.TripCrew)(nil)).Where("trip_id = ?", trip.ID).Exec(ctx); err != nil {
			return fmt.Errorf("clear trip crew: %w", err)
		}
		return assignCrew(ctx, tx, trip.ID, *crew)
	})
}

func checkCapacity(ctx context.Context, tx bun.Tx, trip *models.Trip) error {
	var capacity int
	err := tx.NewSelect().
		Model((*models.Train)(nil)).
		Column("seat_capacity").
		Where("id = ?", trip.TrainID).
		Scan(ctx, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Field("train", apperr.ErrNotFound, "invalid pk %d - object does not exist", trip.TrainID)
	}
	if err != nil {
		return fmt.Errorf("seat capacity of train %d: %w", trip.TrainID, err)
	}

	var top int
	err = tx.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(MAX(seat), 0)").
		Where("trip_id = ?", trip.ID).
		Scan(ctx, &top)
	if err != nil {
		return fmt.Errorf("highest sold seat of trip %d: %w", trip.ID, err)
	}
	if top > capacity {
		return apperr.Field("train", apperr.ErrSeatOutOfRange,
			"seat %d is already sold on this trip; train %d has %d seats", top, trip.TrainID, capacity)
	}
	return nil
}

func assignCrew(ctx context.Context, tx bun.Tx, tripID int64, crew []int64) error {
	if len(crew) == 0 {
		return nil
	}
	rows := make([]models.TripCrew, 0, len(crew))
	for _, id := range crew {
		rows = append(rows, models.TripCrew{TripID: tripID, CrewID: id})
	}
	if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("assign trip crew: %w", err)
	}
	return nil
}

func (d *DB) DeleteTrip(ctx context.Context, id int64) error {
	res, err := d.Bun.NewDelete().Model((*models.Trip)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("trip %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
