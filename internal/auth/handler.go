// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /auth. The protected group runs authenticator and
// then the activation gate.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	activeAccount func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(activeAccount)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
		})
	})
}

// RegisterAdminRoutes mounts the forced logout under an already protected
// admin router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/users/{id}/logout", h.ForceLogout)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	resp, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	if err := h.service.Logout(r.Context(), userID); err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ForceLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeAuthError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		core.Unauthorized(w, "")
		return
	}

	me, err := h.service.Me(r.Context(), userID)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	core.OK(w, me)
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		core.BadRequest(w, "required fields are missing")
	case errors.Is(err, ErrRefreshRejected):
		core.JSONError(
			w,
			core.InvalidCredentialsError("refresh token invalid or expired"),
		)
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(
			w,
			core.InvalidCredentialsError("invalid email or password"),
		)
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenInvalid):
		core.JSONError(w, core.TokenInvalidError())
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}
