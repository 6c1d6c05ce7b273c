package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"train-station/internal/apperr"
	"train-station/internal/database"
	"train-station/internal/models"
	"train-station/internal/utils"
)

type DB struct {
	Bun *bun.DB
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, apperr.ErrNotFound)
	}
	return err
}

func paginate(q *bun.SelectQuery, page utils.Page) *bun.SelectQuery {
	return q.Limit(page.Size).Offset(page.Offset())
}

// Exists reports whether a row with the given id exists in model's table.
func (d *DB) Exists(ctx context.Context, model interface{}, id int64) (bool, error) {
	return d.Bun.NewSelect().Model(model).Where("id = ?", id).Exists(ctx)
}

// ---------------- TRAIN TYPES ----------------

func (d *DB) ListTrainTypes(ctx context.Context, page utils.Page) ([]models.TrainType, int, error) {
	var types []models.TrainType
	count, err := paginate(d.Bun.NewSelect().Model(&types).Order("train_type.id"), page).ScanAndCount(ctx)
	return types, count, err
}

func (d *DB) CreateTrainType(ctx context.Context, t *models.TrainType) error {
	_, err := d.Bun.NewInsert().Model(t).Exec(ctx)
	return err
}

// ---------------- TRAINS ----------------

func (d *DB) ListTrains(ctx context.Context, page utils.Page) ([]models.Train, int, error) {
	var trains []models.Train
	q := d.Bun.NewSelect().
		Model(&trains).
		Relation("TrainType").
		Order("train.name", "train.id")
	count, err := paginate(q, page).ScanAndCount(ctx)
	return trains, count, err
}

func (d *DB) GetTrain(ctx context.Context, id int64) (*models.Train, error) {
	var train models.Train
	err := d.Bun.NewSelect().
		Model(&train).
		Relation("TrainType").
		Where("train.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "train", id)
	}
	return &train, nil
}

// TripsForTrain returns the trips run by a train, with their routes.
func (d *DB) TripsForTrain(ctx context.Context, trainID int64) ([]models.Trip, error) {
	var trips []models.Trip
	err := d.Bun.NewSelect().
		Model(&trips).
		Relation("Route").
		Where("trip.train_id = ?", trainID).
		Order("trip.departure_time").
		Scan(ctx)
	return trips, err
}

func (d *DB) CreateTrain(ctx context.Context, t *models.Train) error {
	_, err := d.Bun.NewInsert().Model(t).Exec(ctx)
	return err
}

// UpdateTrain saves a train unless the new seat capacity would leave a sold
// seat on one of its trips out of range.
func (d *DB) UpdateTrain(ctx context.Context, t *models.Train) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var top int
		err := tx.NewSelect().
			TableExpr(`"tickets" AS "tk"`).
			Join(`JOIN "trips" AS "trip" ON "trip"."id" = "tk"."trip_id"`).
			ColumnExpr(`COALESCE(MAX("tk"."seat"), 0)`).
			Where(`"trip"."train_id" = ?`, t.ID).
			Scan(ctx, &top)
		if err != nil {
			return fmt.Errorf("highest sold seat of train %d: %w", t.ID, err)
		}
		if top > t.SeatCapacity {
			return apperr.Field("seat_capacity", apperr.ErrSeatOutOfRange,
				"seat %d is already sold on a trip of this train; capacity must be at least %d", top, top)
		}

		_, err = tx.NewUpdate().
			Model(t).
			Column("name", "seat_capacity", "luggage_capacity", "train_type_id").
			WherePK().
			Exec(ctx)
		return err
	})
}

func (d *DB) DeleteTrain(ctx context.Context, id int64) error {
	return d.delete(ctx, (*models.Train)(nil), "train", id)
}

func (d *DB) delete(ctx context.Context, model interface{}, what string, id int64) error {
	res, err := d.Bun.NewDelete().Model(model).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, apperr.ErrNotFound)
	}
	return nil
}

// ---------------- STATIONS ----------------

func (d *DB) ListStations(ctx context.Context, page utils.Page) ([]models.Station, int, error) {
	var stations []models.Station
	count, err := paginate(d.Bun.NewSelect().Model(&stations).Order("station.id"), page).ScanAndCount(ctx)
	return stations, count, err
}

func (d *DB) GetStation(ctx context.Context, id int64) (*models.Station, error) {
	var s models.Station
	err := d.Bun.NewSelect().Model(&s).Where("station.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err, "station", id)
	}
	return &s, nil
}

func (d *DB) CreateStation(ctx context.Context, s *models.Station) error {
	_, err := d.Bun.NewInsert().Model(s).Exec(ctx)
	return err
}

func (d *DB) SetStationImage(ctx context.Context, id int64, image string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Station)(nil)).
		Set("image = ?", image).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

// ---------------- ROUTES ----------------

func (d *DB) ListRoutes(ctx context.Context, filter models.RouteFilter, page utils.Page) ([]models.Route, int, error) {
	var routes []models.Route
	q := d.Bun.NewSelect().
		Model(&routes).
		Relation("Source").
		Relation("Destination").
		Order("route.name", "route.id")
	if filter.Source != "" {
		q = q.Where(`LOWER(source.name) LIKE ? ESCAPE '!'`, likePattern(filter.Source))
	}
	if filter.Destination != "" {
		q = q.Where(`LOWER(destination.name) LIKE ? ESCAPE '!'`, likePattern(filter.Destination))
	}
	count, err := paginate(q, page).ScanAndCount(ctx)
	return routes, count, err
}

// likePattern builds a case-insensitive substring pattern; the caller's % and
// _ match literally.
func likePattern(s string) string {
	return "%" + database.EscapeLike(strings.ToLower(strings.TrimSpace(s))) + "%"
}

func (d *DB) GetRoute(ctx context.Context, id int64) (*models.Route, error) {
	var route models.Route
	err := d.Bun.NewSelect().
		Model(&route).
		Relation("Source").
		Relation("Destination").
		Where("route.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err, "route", id)
	}
	return &route, nil
}

func (d *DB) CreateRoute(ctx context.Context, r *models.Route) error {
	_, err := d.Bun.NewInsert().Model(r).Exec(ctx)
	return err
}

func (d *DB) UpdateRoute(ctx context.Context, r *models.Route) error {
	_, err := d.Bun.NewUpdate().
		Model(r).
		Column("name", "source_id", "destination_id", "distance").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) DeleteRoute(ctx context.Context, id int64) error {
	return d.delete(ctx, (*models.Route)(nil), "route", id)
}

// ---------------- CREWS ----------------

func (d *DB) ListCrews(ctx context.Context, page utils.Page) ([]models.Crew, int, error) {
	var crews []models.Crew
	count, err := paginate(d.Bun.NewSelect().Model(&crews).Order("crew.id"), page).ScanAndCount(ctx)
	return crews, count, err
}

func (d *DB) CreateCrew(ctx context.Context, c *models.Crew) error {
	_, err := d.Bun.NewInsert().Model(c).Exec(ctx)
	return err
}
