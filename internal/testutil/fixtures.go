// Package testutil builds throwaway stores and reference data for tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"train-station/internal/database"
	"train-station/internal/models"
)

// NewDB returns an in-memory SQLite store with the full schema.
func NewDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// NewRedis returns a client backed by miniredis, plus the server for
// inspecting keys and fast-forwarding TTLs.
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func Insert(t *testing.T, db *bun.DB, rows ...interface{}) {
	t.Helper()
	for _, row := range rows {
		_, err := db.NewInsert().Model(row).Exec(context.Background())
		require.NoError(t, err)
	}
}

// Network is a minimal set of reference data: one train on one route with
// one trip.
type Network struct {
	TrainType   *models.TrainType
	Train       *models.Train
	Source      *models.Station
	Destination *models.Station
	Route       *models.Route
	Trip        *models.Trip
	Crew        *models.Crew
}

// Departure is the departure time of the fixture trip.
var Departure = time.Date(2030, 6, 1, 7, 0, 0, 0, time.UTC)

// SeedNetwork inserts a train with the given capacities and a trip on it
// departing at Departure and arriving two hours later.
func SeedNetwork(t *testing.T, db *bun.DB, seats, luggage int) *Network {
	t.Helper()
	n := &Network{
		TrainType:   &models.TrainType{Name: "Intercity"},
		Source:      &models.Station{Name: "Kyiv", Latitude: 50.44, Longitude: 30.49},
		Destination: &models.Station{Name: "Lviv", Latitude: 49.84, Longitude: 23.99},
		Crew:        &models.Crew{FirstName: "Olena", LastName: "Kovalenko"},
	}
	Insert(t, db, n.TrainType, n.Source, n.Destination, n.Crew)

	n.Train = &models.Train{Name: "IC 743", SeatCapacity: seats, LuggageCapacity: luggage, TrainTypeID: n.TrainType.ID}
	n.Route = &models.Route{Name: "Kyiv - Lviv", SourceID: n.Source.ID, DestinationID: n.Destination.ID, Distance: 540}
	Insert(t, db, n.Train, n.Route)

	n.Trip = AddTrip(t, db, n.Route.ID, n.Train.ID, Departure)
	Insert(t, db, &models.TripCrew{TripID: n.Trip.ID, CrewID: n.Crew.ID})
	return n
}

// AddTrip inserts a two hour trip.
func AddTrip(t *testing.T, db *bun.DB, routeID, trainID int64, departure time.Time) *models.Trip {
	t.Helper()
	trip := &models.Trip{
		RouteID:       routeID,
		TrainID:       trainID,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(2 * time.Hour),
	}
	Insert(t, db, trip)
	return trip
}

var userSeq atomic.Int64

// AddUser inserts a user with a unique email.
func AddUser(t *testing.T, db *bun.DB, staff bool) *models.User {
	t.Helper()
	u := &models.User{Email: fmt.Sprintf("user%d@example.com", userSeq.Add(1)), PasswordHash: "x", IsStaff: staff}
	Insert(t, db, u)
	return u
}
