package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/testutil"
)

var admin = auth.Principal{UserID: 1, IsStaff: true}

func TestReports(t *testing.T) {
	db := testutil.NewDB(t)
	n := testutil.SeedNetwork(t, db, 40, 20)
	testutil.AddTrip(t, db, n.Route.ID, n.Train.ID, testutil.Departure.AddDate(0, 0, 1))
	empty := &models.Route{Name: "Lviv - Kyiv", SourceID: n.Destination.ID, DestinationID: n.Source.ID, Distance: 540}
	testutil.Insert(t, db, empty)
	u := testutil.AddUser(t, db, false)

	day1 := time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	o1 := &models.Order{UserID: u.ID, CreatedAt: day1}
	o2 := &models.Order{UserID: u.ID, CreatedAt: day1.Add(3 * time.Hour)}
	o3 := &models.Order{UserID: u.ID, CreatedAt: day2}
	testutil.Insert(t, db, o1, o2, o3)
	testutil.Insert(t, db,
		&models.Ticket{TripID: n.Trip.ID, Seat: 1, OrderID: o1.ID, LuggageWeight: 5},
		&models.Ticket{TripID: n.Trip.ID, Seat: 2, OrderID: o1.ID},
		&models.Ticket{TripID: n.Trip.ID, Seat: 3, OrderID: o2.ID, LuggageWeight: 10},
		&models.Ticket{TripID: n.Trip.ID, Seat: 4, OrderID: o3.ID},
	)

	svc := NewService(NewDB(db), logger.NewNopLogger())
	ctx := context.Background()

	_, err := svc.GetDailyTickets(ctx, auth.Principal{UserID: u.ID}, DateRange{})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	report, err := svc.GetDailyTickets(ctx, admin, DateRange{From: day1, To: day2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalOrders)
	assert.Equal(t, 4, report.TotalTickets)
	require.Len(t, report.Days, 2)
	assert.Equal(t, DailyTicketMetrics{Date: "2030-05-01", Orders: 2, TicketsSold: 3, LuggageKg: 15}, report.Days[0])
	assert.Equal(t, "2030-05-02", report.Days[1].Date)

	report, err = svc.GetDailyTickets(ctx, admin, DateRange{From: day2, To: day2})
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalTickets)

	_, err = svc.GetDailyTickets(ctx, admin, DateRange{From: day2, To: day1})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	routes, err := svc.GetRouteReport(ctx, admin)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "Kyiv - Lviv", routes[0].Route)
	assert.Equal(t, 2, routes[0].Trips)
	assert.Equal(t, 80, routes[0].SeatsOffered)
	assert.Equal(t, 4, routes[0].TicketsSold)
	assert.InDelta(t, 0.05, routes[0].LoadFactor, 1e-9)
	assert.Equal(t, 0.0, routes[1].LoadFactor)
}
