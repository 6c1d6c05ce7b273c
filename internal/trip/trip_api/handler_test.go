package trip_api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/testutil"
	"train-station/internal/trip"
	tripdb "train-station/internal/trip/db"
	"train-station/internal/trip/trip_api"
)

func setupRouter(t *testing.T, p auth.Principal) (http.Handler, *testutil.Network) {
	db := testutil.NewDB(t)
	n := testutil.SeedNetwork(t, db, 40, 20)
	log := logger.NewNopLogger()

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithPrincipal(req.Context(), p)))
		})
	})
	trip_api.NewHandler(trip.NewTripService(&tripdb.DB{Bun: db}, log), log).RegisterRoutes(r)
	return r, n
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListTrips(t *testing.T) {
	h, n := setupRouter(t, auth.Principal{})

	rec := do(h, http.MethodGet, "/trips/?departure=2030-06-01&route=kyiv", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Count   int     `json:"count"`
		Next    *string `json:"next"`
		Results []struct {
			ID             int64  `json:"id"`
			Route          string `json:"route"`
			TrainName      string `json:"train_name"`
			TrainSeats     int    `json:"train_seats"`
			AvailableSeats int    `json:"available_seats"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	assert.Nil(t, page.Next)
	require.Len(t, page.Results, 1)
	assert.Equal(t, n.Trip.ID, page.Results[0].ID)
	assert.Equal(t, "IC 743", page.Results[0].TrainName)
	assert.Equal(t, 40, page.Results[0].AvailableSeats)

	rec = do(h, http.MethodGet, "/trips/?departure=01.06.2030", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/trips/?page=5", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTripWrites(t *testing.T) {
	h, n := setupRouter(t, auth.Principal{})
	body := fmt.Sprintf(`{"route":%d,"train":%d,"departure_time":"2030-07-01T09:00:00Z","arrival_time":"2030-07-01T08:00:00Z"}`, n.Route.ID, n.Train.ID)

	rec := do(h, http.MethodPost, "/trips/", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	h, n = setupRouter(t, auth.Principal{UserID: 1, IsStaff: true})
	body = fmt.Sprintf(`{"route":%d,"train":%d,"departure_time":"2030-07-01T09:00:00Z","arrival_time":"2030-07-01T08:00:00Z"}`, n.Route.ID, n.Train.ID)
	rec = do(h, http.MethodPost, "/trips/", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = strings.Replace(body, "08:00:00Z", "12:00:00Z", 1)
	rec = do(h, http.MethodPost, "/trips/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID             int64 `json:"id"`
		AvailableSeats int   `json:"available_seats"`
		TakenSeats     []int `json:"taken_seats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, 40, created.AvailableSeats)
	assert.NotNil(t, created.TakenSeats)

	rec = do(h, http.MethodPatch, fmt.Sprintf("/trips/%d/", created.ID), `{"arrival_time":"2030-07-01T13:30:00Z"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(h, http.MethodDelete, fmt.Sprintf("/trips/%d/", created.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
