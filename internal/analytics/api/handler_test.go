package analytics_api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-station/internal/analytics"
	analytics_api "train-station/internal/analytics/api"
	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/testutil"
)

func setupRouter(t *testing.T, p auth.Principal) http.Handler {
	db := testutil.NewDB(t)
	n := testutil.SeedNetwork(t, db, 40, 20)
	u := testutil.AddUser(t, db, false)
	order := &models.Order{UserID: u.ID, CreatedAt: time.Date(2030, 5, 1, 10, 0, 0, 0, time.UTC)}
	testutil.Insert(t, db, order)
	testutil.Insert(t, db,
		&models.Ticket{TripID: n.Trip.ID, Seat: 1, OrderID: order.ID, LuggageWeight: 5},
		&models.Ticket{TripID: n.Trip.ID, Seat: 2, OrderID: order.ID},
	)
	log := logger.NewNopLogger()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	analytics_api.NewHandler(analytics.NewService(analytics.NewDB(db), log), log).RegisterRoutes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestReportsAreAdminOnly(t *testing.T) {
	for _, path := range []string{"/reports/daily-tickets/", "/reports/routes/"} {
		assert.Equal(t, http.StatusUnauthorized, get(setupRouter(t, auth.Principal{}), path).Code, path)
		assert.Equal(t, http.StatusForbidden, get(setupRouter(t, auth.Principal{UserID: 2}), path).Code, path)
		assert.Equal(t, http.StatusOK, get(setupRouter(t, auth.Principal{UserID: 1, IsStaff: true}), path).Code, path)
	}
}

func TestGetDailyTickets(t *testing.T) {
	h := setupRouter(t, auth.Principal{UserID: 1, IsStaff: true})

	rec := get(h, "/reports/daily-tickets/?from=2030-05-01&to=2030-05-02")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report analytics.DailyTicketsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "2030-05-01", report.From)
	assert.Equal(t, "2030-05-02", report.To)
	assert.Equal(t, 1, report.TotalOrders)
	assert.Equal(t, 2, report.TotalTickets)
	require.Len(t, report.Days, 1)
	assert.Equal(t, 5, report.Days[0].LuggageKg)

	rec = get(h, "/reports/daily-tickets/?from=01.05.2030")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"from"`)

	rec = get(h, "/reports/daily-tickets/?to=tomorrow")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(h, "/reports/daily-tickets/?from=2030-05-03&to=2030-05-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRoutes(t *testing.T) {
	h := setupRouter(t, auth.Principal{UserID: 1, IsStaff: true})

	rec := get(h, "/reports/routes/")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var routes []analytics.RouteMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	require.Len(t, routes, 1)
	assert.Equal(t, "Kyiv - Lviv", routes[0].Route)
	assert.Equal(t, 1, routes[0].Trips)
	assert.Equal(t, 40, routes[0].SeatsOffered)
	assert.Equal(t, 2, routes[0].TicketsSold)
	assert.InDelta(t, 0.05, routes[0].LoadFactor, 1e-9)
}
