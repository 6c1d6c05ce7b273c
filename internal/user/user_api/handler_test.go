package user_api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"train-station/internal/auth"
	"train-station/internal/database"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/user"
	userdb "train-station/internal/user/db"
	"train-station/internal/user/user_api"
)

func setupRouter(t *testing.T) http.Handler {
	db, err := database.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
		db.Close()
	})

	log := logger.NewNopLogger()
	users := &userdb.DB{Bun: db}
	tokens := auth.NewTokenManager("secret", time.Minute, time.Hour, auth.NewRedisTokenCache(client), users)
	h := user_api.NewHandler(user.NewUserService(users, tokens, log), tokens, log)

	r := chi.NewRouter()
	r.Use(auth.Middleware(tokens, log))
	h.RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUserFlow(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, http.MethodPost, "/user/register/", `{"email":"ann@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "password")

	rec = do(t, h, http.MethodPost, "/user/token/", `{"email":"ann@example.com","password":"secret1"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pair models.TokenPair
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&pair))

	rec = do(t, h, http.MethodGet, "/user/profile/", "", pair.Access)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile models.UserView
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&profile))
	assert.Equal(t, "ann@example.com", profile.Email)

	rec = do(t, h, http.MethodPatch, "/user/profile/", `{"last_name":"Lee"}`, pair.Access)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_name":"Lee"`)

	rec = do(t, h, http.MethodPost, "/user/token/refresh/", `{"refresh":"`+pair.Refresh+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"access"`)

	rec = do(t, h, http.MethodPost, "/user/token/verify/", `{"token":"`+pair.Access+`"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/user/token/blacklist/", `{"refresh":"`+pair.Refresh+`"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/user/token/refresh/", `{"refresh":"`+pair.Refresh+`"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProfileRequiresAuthentication(t *testing.T) {
	h := setupRouter(t)

	rec := do(t, h, http.MethodGet, "/user/profile/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/user/token/", `{"email":"x@example.com","password":"nope1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
