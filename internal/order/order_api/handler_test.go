package order_api_test

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
	"train-station/internal/order"
	orderdb "train-station/internal/order/db"
	"train-station/internal/order/order_api"
	"train-station/internal/order/redis"
	"train-station/internal/testutil"
	"train-station/internal/tickets/qr"
)

// asUser stands in for the token middleware.
func asUser(userID int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID != 0 {
				r = r.WithContext(auth.WithPrincipal(r.Context(), auth.Principal{UserID: userID}))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setupRouter(t *testing.T, anonymous bool) (http.Handler, *testutil.Network) {
	db := testutil.NewDB(t)
	n := testutil.SeedNetwork(t, db, 40, 20)
	client, _ := testutil.NewRedis(t)
	log := logger.NewNopLogger()
	svc := order.NewOrderService(&orderdb.DB{Bun: db}, redis.NewSeatHolds(client, 0, log), nil, qr.NewQRGenerator("secret"), log)

	var userID int64
	if !anonymous {
		userID = testutil.AddUser(t, db, false).ID
	}
	r := chi.NewRouter()
	r.Use(asUser(userID))
	order_api.NewHandler(svc, log).RegisterRoutes(r)
	return r, n
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOrderEndpoints(t *testing.T) {
	h, n := setupRouter(t, false)

	rec := do(h, http.MethodPost, "/orders/", fmt.Sprintf(`{"tickets":[{"trip":%d,"seat":41}]}`, n.Trip.ID))
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var failure struct {
		Success bool                `json:"success"`
		Fields  map[string][]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &failure))
	assert.False(t, failure.Success)
	assert.Contains(t, failure.Fields, "tickets[0].seat")

	body := fmt.Sprintf(`{"tickets":[{"trip":%d,"seat":10,"luggage_weight":15}]}`, n.Trip.ID)
	rec = do(h, http.MethodPost, "/orders/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID      int64 `json:"id"`
		Tickets []struct {
			ID   int64 `json:"id"`
			Seat int   `json:"seat"`
		} `json:"tickets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Tickets, 1)
	assert.Equal(t, 10, created.Tickets[0].Seat)

	rec = do(h, http.MethodPost, "/orders/", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodGet, "/orders/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Count   int `json:"count"`
		Results []struct {
			ID      int64 `json:"id"`
			Tickets []struct {
				Trip struct {
					Route string `json:"route"`
				} `json:"trip"`
			} `json:"tickets"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Kyiv - Lviv", page.Results[0].Tickets[0].Trip.Route)

	rec = do(h, http.MethodGet, fmt.Sprintf("/orders/%d/tickets/%d/qr/", created.ID, created.Tickets[0].ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = do(h, http.MethodGet, "/orders/abc/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodDelete, fmt.Sprintf("/orders/%d/", created.ID), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(h, http.MethodGet, fmt.Sprintf("/orders/%d/", created.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderEndpoints_Anonymous(t *testing.T) {
	h, n := setupRouter(t, true)

	rec := do(h, http.MethodGet, "/orders/", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(h, http.MethodPost, "/orders/", fmt.Sprintf(`{"tickets":[{"trip":%d,"seat":1}]}`, n.Trip.ID))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
