// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/auth"
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

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, activeAccount func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Register)
		r.Get("/exists/email/{email}", h.EmailExists)
		r.Get("/exists/username/{username}", h.UsernameExists)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(activeAccount)

			r.Get("/me", h.GetMe)
			r.Put("/me", h.UpdateMe)
			r.Put("/me/password", h.UpdatePassword)
			r.Get("/username/{username}", h.GetByUsername)
			r.Get("/email/{email}", h.GetByEmail)
			r.Get("/{id}", h.GetByID)
		})
	})
}

// RegisterAdminRoutes mounts user management under an already protected
// admin router.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/users", h.ListUsers)
	r.Put("/users/{id}", h.AdminUpdate)
	r.Patch("/users/{id}/deactivate", h.Deactivate)
	r.Patch("/users/{id}/activate", h.Activate)
	r.Delete("/users/{id}", h.DeleteUser)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.Created(w, ToUserResponse(user))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.UpdateMe(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req,
	)
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.UpdatePassword(
		r.Context(),
		middleware.GetUserID(r.Context()),
		req,
	); err != nil {
		writeUserError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) EmailExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.service.EmailExists(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ExistsResponse{Exists: exists})
}

func (h *Handler) UsernameExists(w http.ResponseWriter, r *http.Request) {
	exists, err := h.service.UsernameExists(
		r.Context(),
		chi.URLParam(r, "username"),
	)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, ExistsResponse{Exists: exists})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := ListUsersParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", 20),
		Search:   r.URL.Query().Get("search"),
		Role:     r.URL.Query().Get("role"),
	}

	if raw := r.URL.Query().Get("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			params.Active = &active
		}
	}

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	params.Normalize()
	core.Paginated(
		w,
		ToUserResponseList(users),
		params.Page,
		params.PageSize,
		total,
	)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	var req AdminUpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.AdminUpdate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeUserError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	if err := h.service.SetActive(r.Context(), chi.URLParam(r, "id"), active); err != nil {
		writeUserError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	targetID := chi.URLParam(r, "id")
	if targetID == middleware.GetUserID(r.Context()) {
		core.Forbidden(w, "cannot delete your own account")
		return
	}

	if err := h.service.DeleteUser(r.Context(), targetID); err != nil {
		writeUserError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		core.BadRequest(w, "invalid user data")
	case errors.Is(err, ErrEmailTaken):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrUsernameTaken):
		core.JSONError(w, core.DuplicateError("username"))
	case errors.Is(err, core.ErrDuplicateKey):
		core.JSONError(w, core.DuplicateError("value"))
	case errors.Is(err, auth.ErrInvalidCredentials):
		core.JSONError(w, core.InvalidCredentialsError("current password is incorrect"))
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
