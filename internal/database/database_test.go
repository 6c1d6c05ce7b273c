package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"train-station/internal/database"
	"train-station/internal/models"
)

func TestOpenSQLite_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "train_types", "trains", "stations", "routes", "crews", "trips", "trip_crews", "orders", "tickets"} {
		var n int
		err := db.NewRaw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &n)
		require.NoError(t, err)
		assert.Equal(t, 1, n, "table %s", table)
	}
	assert.NoError(t, database.Ping(ctx, db))
}

func TestTicketSeatUniqueness(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	user := &models.User{Email: "a@example.com", PasswordHash: "x"}
	tt := &models.TrainType{Name: "Express"}
	require.NoError(t, insert(ctx, db, user, tt))
	train := &models.Train{Name: "IC", SeatCapacity: 10, LuggageCapacity: 5, TrainTypeID: tt.ID}
	src := &models.Station{Name: "A"}
	dst := &models.Station{Name: "B"}
	require.NoError(t, insert(ctx, db, train, src, dst))
	route := &models.Route{Name: "A - B", SourceID: src.ID, DestinationID: dst.ID, Distance: 10}
	require.NoError(t, insert(ctx, db, route))
	dep := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	trip := &models.Trip{RouteID: route.ID, TrainID: train.ID, DepartureTime: dep, ArrivalTime: dep.Add(time.Hour)}
	order := &models.Order{UserID: user.ID}
	require.NoError(t, insert(ctx, db, trip, order))

	require.NoError(t, insert(ctx, db, &models.Ticket{TripID: trip.ID, Seat: 1, OrderID: order.ID}))
	err = insert(ctx, db, &models.Ticket{TripID: trip.ID, Seat: 1, OrderID: order.ID})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))

	// Deleting the order cascades to its tickets.
	_, err = db.NewDelete().Model(order).WherePK().Exec(ctx)
	require.NoError(t, err)
	n, err := db.NewSelect().Model((*models.Ticket)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	err = insert(ctx, db, &models.Train{Name: "Ghost", TrainTypeID: 999})
	require.Error(t, err)
	assert.True(t, database.IsForeignKeyViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, database.IsUniqueViolation(nil))
	assert.False(t, database.IsUniqueViolation(errors.New("boom")))
	assert.True(t, database.IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, database.IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.True(t, database.IsForeignKeyViolation(&pq.Error{Code: "23503"}))
}

func insert(ctx context.Context, db *bun.DB, rows ...any) error {
	for _, row := range rows {
		if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
