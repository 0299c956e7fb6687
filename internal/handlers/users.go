package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tmercer/authpulse/internal/models"
	"github.com/tmercer/authpulse/internal/services"
	pkghttp "github.com/tmercer/authpulse/pkg/http"
)

// UserServiceInterface defines the interface for user business logic
type UserServiceInterface interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User, password string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, user *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	service    UserServiceInterface
	requesters RequesterSource
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(service UserServiceInterface, requesters RequesterSource) *UserHandler {
	return &UserHandler{
		service:    service,
		requesters: requesters,
	}
}

// Request/Response DTOs

// CreateUserRequest represents the request body for creating a user
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IsStaff  bool   `json:"is_staff"`
}

// normalize runs before the validation tags, so a padded or mixed-case
// email still passes the email check.
func (r *CreateUserRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Username string `json:"username" validate:"omitempty,min=1,max=150"`
	Email    string `json:"email" validate:"omitempty,email"`
}

func (r *UpdateUserRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

// ListUsersResponse represents a list of users
type ListUsersResponse struct {
	Users []*services.UserResponse `json:"users"`
	Total int                      `json:"total"`
}

func userToResponse(user *models.User) *services.UserResponse {
	resp := &services.UserResponse{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		IsActive:      user.IsActive,
		IsStaff:       user.IsStaff,
		EmailVerified: user.EmailVerified,
		DateJoined:    user.DateJoined.Format("2006-01-02T15:04:05Z07:00"),
	}
	if user.LastLoginTimestamp != nil {
		resp.LastLogin = user.LastLoginTimestamp.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// userIDParam parses the {id} path segment
func userIDParam(r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// checkUserAccess allows the target user themselves and staff
func (h *UserHandler) checkUserAccess(r *http.Request, targetID int64) error {
	requester, err := currentUser(r, h.requesters)
	if err != nil {
		return err
	}
	if requester.ID == targetID || requester.IsAdmin() {
		return nil
	}
	return models.ErrForbidden
}

// Me returns the authenticated user's own profile
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	requester, err := currentUser(r, h.requesters)
	if err != nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(requester))
}

// GetUser retrieves a user by ID
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := h.checkUserAccess(r, id); err != nil {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(user))
}

// ListUsers retrieves a list of users with pagination. Staff only.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > 100 {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = v
	}

	if o := r.URL.Query().Get("offset"); o != "" {
		v, err := strconv.Atoi(o)
		if err != nil || v < 0 {
			pkghttp.WriteBadRequest(w, "Invalid offset parameter")
			return
		}
		offset = v
	}

	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
		return
	}

	response := &ListUsersResponse{
		Users: make([]*services.UserResponse, len(users)),
		Total: len(users),
	}
	for i, user := range users {
		response.Users[i] = userToResponse(user)
	}

	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// CreateUser creates a new user. Staff only.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		IsActive: true,
		IsStaff:  req.IsStaff,
	}

	created, err := h.service.CreateUser(r.Context(), user, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "User already exists")
		case errors.Is(err, models.ErrInternalServer):
			pkghttp.WriteInternalError(w, "An unexpected error occurred")
		default:
			pkghttp.WriteBadRequest(w, err.Error())
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, userToResponse(created))
}

// UpdateUser updates an existing user
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := h.checkUserAccess(r, id); err != nil {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	var req UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
	}

	updated, err := h.service.UpdateUser(r.Context(), id, user)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, userToResponse(updated))
}

// DeleteUser deletes a user account along with its login events
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(r)
	if !ok {
		pkghttp.WriteBadRequest(w, "Invalid user ID")
		return
	}

	if err := h.checkUserAccess(r, id); err != nil {
		pkghttp.WriteForbidden(w, "You cannot access this resource")
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
