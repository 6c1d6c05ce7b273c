package order_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"train-station/internal/apperr"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/order"
	orderdb "train-station/internal/order/db"
	"train-station/internal/order/redis"
	"train-station/internal/testutil"
	"train-station/internal/tickets/qr"
	"train-station/internal/trip"
	tripdb "train-station/internal/trip/db"
	"train-station/internal/utils"
)

type MockKafka struct {
	mock.Mock
}

func (m *MockKafka) PublishOrderCreated(ctx context.Context, o *models.Order) error {
	return m.Called(o.ID).Error(0)
}

func (m *MockKafka) PublishOrderDeleted(ctx context.Context, o *models.Order) error {
	return m.Called(o.ID).Error(0)
}

type fixture struct {
	db    *bun.DB
	net   *testutil.Network
	svc   *order.OrderService
	holds *redis.SeatHolds
	kafka *MockKafka
	user  auth.Principal
}

func setup(t *testing.T) *fixture {
	db := testutil.NewDB(t)
	n := testutil.SeedNetwork(t, db, 40, 20)
	client, _ := testutil.NewRedis(t)
	log := logger.NewNopLogger()
	holds := redis.NewSeatHolds(client, 0, log)
	kafka := &MockKafka{}
	u := testutil.AddUser(t, db, false)

	svc := order.NewOrderService(&orderdb.DB{Bun: db}, holds, kafka, qr.NewQRGenerator("test-secret"), log)
	return &fixture{db: db, net: n, svc: svc, holds: holds, kafka: kafka, user: auth.Principal{UserID: u.ID}}
}

func (f *fixture) countTickets(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*models.Ticket)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) countOrders(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*models.Order)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (f *fixture) isHeld(t *testing.T, seat int) bool {
	t.Helper()
	key := fmt.Sprintf("seat_hold:%d:%d", f.net.Trip.ID, seat)
	n, err := f.holds.Client.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	return n == 1
}

func intPtr(v int) *int { return &v }

func TestBook_SeatAndLuggageRules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	trips := trip.NewTripService(&tripdb.DB{Bun: f.db}, logger.NewNopLogger())

	_, err := f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 41}}})
	assert.ErrorIs(t, err, apperr.ErrSeatOutOfRange)
	assert.Contains(t, apperr.Fields(err), "tickets[0].seat")

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 10, LuggageWeight: intPtr(25)}}})
	assert.ErrorIs(t, err, apperr.ErrLuggageOverweight)
	assert.Contains(t, apperr.Fields(err), "tickets[0].luggage_weight")

	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil).Once()
	view, err := f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 10, LuggageWeight: intPtr(15)}}})
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	assert.Equal(t, f.user.UserID, view.User)
	assert.False(t, view.CreatedAt.IsZero())
	require.Len(t, view.Tickets, 1)
	assert.NotZero(t, view.Tickets[0].ID)
	assert.Equal(t, 15, view.Tickets[0].LuggageWeight)

	detail, err := trips.GetTrip(ctx, auth.Principal{}, f.net.Trip.ID)
	require.NoError(t, err)
	assert.Equal(t, 39, detail.AvailableSeats)

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 10}}})
	assert.ErrorIs(t, err, apperr.ErrSeatAlreadyTaken)
	assert.Equal(t, 409, apperr.StatusCode(err))

	f.kafka.AssertExpectations(t)
}

func TestBook_RejectsInvalidRequests(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	one := []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 1}}

	_, err := f.svc.Book(ctx, auth.Principal{}, models.OrderRequest{Tickets: one})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	other := f.user.UserID + 100
	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{User: &other, Tickets: one})
	assert.ErrorIs(t, err, apperr.ErrPermissionDenied)

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.Fields(err), "tickets")

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Seat: 1}}})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.Contains(t, apperr.Fields(err), "tickets[0].trip")

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: 999, Seat: 1}}})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 400, apperr.StatusCode(err))

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{
		{Trip: f.net.Trip.ID, Seat: 3},
		{Trip: f.net.Trip.ID, Seat: 3},
	}})
	assert.ErrorIs(t, err, apperr.ErrSeatAlreadyTaken)
	assert.Contains(t, apperr.Fields(err), "tickets[1].seat")

	assert.Zero(t, f.countOrders(t))
	assert.Zero(t, f.countTickets(t))
}

func TestBook_AllOrNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil)

	_, err := f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 10}}})
	require.NoError(t, err)

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{
		{Trip: f.net.Trip.ID, Seat: 5},
		{Trip: f.net.Trip.ID, Seat: 10},
	}})
	assert.ErrorIs(t, err, apperr.ErrSeatAlreadyTaken)
	assert.Contains(t, apperr.Fields(err), "tickets[1].seat")

	// Seat 5 must not have been kept from the failed order.
	assert.Equal(t, 1, f.countOrders(t))
	assert.Equal(t, 1, f.countTickets(t))
	f.kafka.AssertNumberOfCalls(t, "PublishOrderCreated", 1)
}

func TestBook_SeatHeldByAnotherBooking(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seat := redis.Seat{Trip: f.net.Trip.ID, Seat: 8}

	ok, _, err := f.holds.Hold(ctx, []redis.Seat{seat}, "in-flight")
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{
		{Trip: f.net.Trip.ID, Seat: 7},
		{Trip: f.net.Trip.ID, Seat: 8},
	}})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.NotErrorIs(t, err, apperr.ErrSeatAlreadyTaken, "a held seat is not sold")
	assert.Equal(t, 409, apperr.StatusCode(err))
	assert.Contains(t, apperr.Fields(err), "tickets[1].seat")

	assert.False(t, f.isHeld(t, 7))
	assert.Zero(t, f.countTickets(t))

	// The other booking gives up; the seat was never sold and can be booked.
	require.NoError(t, f.holds.Release(ctx, []redis.Seat{seat}, "in-flight"))
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil).Once()
	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 8}}})
	assert.NoError(t, err)
}

func TestBook_ReleasesHoldsAfterCommit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(errors.New("broker down"))

	_, err := f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 2}}})
	require.NoError(t, err, "a failed publish does not fail the booking")

	assert.False(t, f.isHeld(t, 2))
}

func TestBook_CancelledContext(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 2}}})
	require.Error(t, err)
	assert.Zero(t, f.countOrders(t))
	assert.Zero(t, f.countTickets(t))
}

func TestBook_ConcurrentSameSeat(t *testing.T) {
	for _, withHolds := range []bool{true, false} {
		name := "store only"
		if withHolds {
			name = "with holds"
		}
		t.Run(name, func(t *testing.T) {
			f := setup(t)
			if !withHolds {
				f.svc.Holds = nil
			}
			f.svc.Kafka = nil

			const attempts = 10
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				success  int
				rejected int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := f.svc.Book(context.Background(), f.user, models.OrderRequest{
						Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 12}},
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						success++
					case errors.Is(err, apperr.ErrSeatAlreadyTaken), errors.Is(err, apperr.ErrConflict):
						rejected++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, success)
			assert.Equal(t, attempts-1, rejected)
			assert.Equal(t, 1, f.countTickets(t))
		})
	}
}

func TestOrders_OwnerScoped(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.kafka.On("PublishOrderCreated", mock.Anything).Return(nil)
	f.kafka.On("PublishOrderDeleted", mock.Anything).Return(nil)
	stranger := auth.Principal{UserID: testutil.AddUser(t, f.db, false).ID}

	mine, err := f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{
		{Trip: f.net.Trip.ID, Seat: 1},
		{Trip: f.net.Trip.ID, Seat: 2},
	}})
	require.NoError(t, err)
	_, err = f.svc.Book(ctx, stranger, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 3}}})
	require.NoError(t, err)

	orders, count, err := f.svc.ListOrders(ctx, f.user, utils.Page{Number: 1, Size: 10})
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Len(t, orders[0].Tickets, 2)
	listed := models.NewOrderListView(&orders[0])
	assert.Equal(t, "Kyiv - Lviv", listed.Tickets[0].Trip.Route)
	assert.Equal(t, "IC 743", listed.Tickets[0].Trip.Train)

	_, err = f.svc.GetOrder(ctx, stranger, mine.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteOrder(ctx, stranger, mine.ID), apperr.ErrNotFound)

	png, err := f.svc.TicketQR(ctx, f.user, mine.ID, mine.Tickets[0].ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
	_, err = f.svc.TicketQR(ctx, stranger, mine.ID, mine.Tickets[0].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, f.svc.DeleteOrder(ctx, f.user, mine.ID))
	assert.Equal(t, 1, f.countTickets(t), "tickets of the deleted order are removed")
	f.kafka.AssertCalled(t, "PublishOrderDeleted", mine.ID)

	_, err = f.svc.Book(ctx, f.user, models.OrderRequest{Tickets: []models.TicketRequest{{Trip: f.net.Trip.ID, Seat: 1}}})
	assert.NoError(t, err, "a freed seat can be booked again")
}
