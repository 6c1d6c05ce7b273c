package user_api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"train-station/internal/auth"
	"train-station/internal/logger"
	"train-station/internal/models"
	"train-station/internal/user"
	"train-station/internal/utils"
)

type TokenRefresher interface {
	Refresh(ctx context.Context, refresh string) (string, error)
	Verify(ctx context.Context, token string) error
	Blacklist(ctx context.Context, refresh string) error
}

type Handler struct {
	UserService *user.UserService
	Tokens      TokenRefresher
	Logger      *logger.Logger
}

func NewHandler(userService *user.UserService, tokens TokenRefresher, log *logger.Logger) *Handler {
	return &Handler{UserService: userService, Tokens: tokens, Logger: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/user", func(r chi.Router) {
		r.Post("/register/", h.Register)
		r.Post("/token/", h.ObtainToken)
		r.Post("/token/refresh/", h.RefreshToken)
		r.Post("/token/verify/", h.VerifyToken)
		r.Post("/token/blacklist/", h.BlacklistToken)
		r.Get("/profile/", h.GetProfile)
		r.Put("/profile/", h.UpdateProfile)
		r.Patch("/profile/", h.UpdateProfile)
	})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := utils.WriteError(w, err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		return
	}
	h.Logger.Debug("API", fmt.Sprintf("%s: rejected with %d: %v", op, status, err))
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "Register", err)
		return
	}

	u, err := h.UserService.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "Register", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusCreated, models.NewUserView(u))
}

func (h *Handler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "ObtainToken", err)
		return
	}

	pair, err := h.UserService.Login(r.Context(), req)
	if err != nil {
		h.fail(w, "ObtainToken", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "RefreshToken", err)
		return
	}

	access, err := h.Tokens.Refresh(r.Context(), req.Refresh)
	if err != nil {
		h.fail(w, "RefreshToken", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.AccessResponse{Access: access})
}

func (h *Handler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "VerifyToken", err)
		return
	}

	if err := h.Tokens.Verify(r.Context(), req.Token); err != nil {
		h.fail(w, "VerifyToken", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) BlacklistToken(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.fail(w, "BlacklistToken", err)
		return
	}

	if err := h.Tokens.Blacklist(r.Context(), req.Refresh); err != nil {
		h.fail(w, "BlacklistToken", err)
		return
	}
	h.Logger.LogSecurity("TOKEN_BLACKLISTED", "refresh token revoked")
	_ = utils.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.Profile(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		h.fail(w, "GetProfile", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.NewUserView(u))
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if err := utils.DecodeJSON(r, &patch); err != nil {
		h.fail(w, "UpdateProfile", err)
		return
	}

	partial := r.Method == http.MethodPatch
	u, err := h.UserService.UpdateProfile(r.Context(), auth.FromContext(r.Context()), patch, partial)
	if err != nil {
		h.fail(w, "UpdateProfile", err)
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, models.NewUserView(u))
}
