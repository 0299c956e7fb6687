package handlers_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tmercer/authpulse/internal/handlers"
	"github.com/tmercer/authpulse/internal/models"
	"github.com/tmercer/authpulse/internal/services"
)

func staffUser() *models.User {
	return &models.User{ID: 1, Username: "root", Email: "root@example.com", IsActive: true, IsStaff: true}
}

func plainUser(id int64) *models.User {
	return &models.User{ID: id, Username: "member", Email: "member@example.com", IsActive: true, DateJoined: time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)}
}

func TestGetUser_Self(t *testing.T) {
	mockService := &handlers.MockUserService{
		GetUserByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			assert.Equal(t, int64(42), id)
			return plainUser(42), nil
		},
	}

	handler := handlers.NewUserHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/users/42", nil)
	req = handlers.WithAuthContext(req, 42, "member")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "42"})

	w := httptest.NewRecorder()
	handler.GetUser(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, int64(42), resp.ID)
	assert.Equal(t, "member", resp.Username)
	assert.Equal(t, "2026-01-05T12:00:00Z", resp.DateJoined)
}

func TestGetUser_ForbiddenForOtherUser(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/users/99", nil)
	req = handlers.WithAuthContext(req, 42, "member")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "99"})

	w := httptest.NewRecorder()
	handler.GetUser(w, req)

	handlers.AssertErrorResponse(t, w, 403, "forbidden")
}

func TestGetUser_StaffReadsAnyone(t *testing.T) {
	mockService := &handlers.MockUserService{
		GetUserByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			return plainUser(42), nil
		},
	}

	handler := handlers.NewUserHandler(mockService, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/users/42", nil)
	req = handlers.WithAuthContext(req, 1, "root")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "42"})

	w := httptest.NewRecorder()
	handler.GetUser(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, int64(42), resp.ID)
}

func TestGetUser_NotFound(t *testing.T) {
	mockService := &handlers.MockUserService{
		GetUserByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			return nil, models.ErrNotFound
		},
	}

	handler := handlers.NewUserHandler(mockService, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/users/42", nil)
	req = handlers.WithAuthContext(req, 1, "root")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "42"})

	w := httptest.NewRecorder()
	handler.GetUser(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestGetUser_InvalidID(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/users/abc", nil)
	req = handlers.WithAuthContext(req, 1, "root")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "abc"})

	w := httptest.NewRecorder()
	handler.GetUser(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestMe_ReturnsOwnProfile(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "GET", "/users/me", nil)
	req = handlers.WithAuthContext(req, 42, "member")

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, int64(42), resp.ID)
}

func TestMe_Unauthenticated(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, handlers.RequesterFixture())
	req := handlers.NewTestRequest(t, "GET", "/users/me", nil)

	w := httptest.NewRecorder()
	handler.Me(w, req)

	handlers.AssertErrorResponse(t, w, 401, "unauthorized")
}

func TestListUsers_InvalidLimit(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/users?limit=0", nil)
	req = handlers.WithAuthContext(req, 1, "root")

	w := httptest.NewRecorder()
	handler.ListUsers(w, req)

	handlers.AssertErrorResponse(t, w, 400, "bad_request")
}

func TestListUsers_PassesPagination(t *testing.T) {
	mockService := &handlers.MockUserService{
		ListUsersFunc: func(ctx context.Context, limit, offset int) ([]*models.User, error) {
			assert.Equal(t, 25, limit)
			assert.Equal(t, 50, offset)
			return []*models.User{plainUser(42)}, nil
		},
	}

	handler := handlers.NewUserHandler(mockService, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "GET", "/users?limit=25&offset=50", nil)
	req = handlers.WithAuthContext(req, 1, "root")

	w := httptest.NewRecorder()
	handler.ListUsers(w, req)

	var resp handlers.ListUsersResponse
	handlers.AssertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 1, resp.Total)
}

func TestCreateUser_NormalizesEmail(t *testing.T) {
	mockService := &handlers.MockUserService{
		CreateUserFunc: func(ctx context.Context, user *models.User, password string) (*models.User, error) {
			assert.Equal(t, "new@example.com", user.Email)
			assert.True(t, user.IsActive)
			user.ID = 55
			return user, nil
		},
	}

	handler := handlers.NewUserHandler(mockService, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "POST", "/users", handlers.CreateUserRequest{
		Username: "newbie",
		Email:    " New@Example.COM ",
		Password: "Str0ngPass!word",
	})
	req = handlers.WithAuthContext(req, 1, "root")

	w := httptest.NewRecorder()
	handler.CreateUser(w, req)

	var resp services.UserResponse
	handlers.AssertJSONResponse(t, w, 201, &resp)
	assert.Equal(t, int64(55), resp.ID)
}

func TestUpdateUser_NotFound(t *testing.T) {
	handler := handlers.NewUserHandler(&handlers.MockUserService{}, handlers.RequesterFixture(staffUser()))
	req := handlers.NewTestRequest(t, "PUT", "/users/42", handlers.UpdateUserRequest{Username: "renamed"})
	req = handlers.WithAuthContext(req, 1, "root")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "42"})

	w := httptest.NewRecorder()
	handler.UpdateUser(w, req)

	handlers.AssertErrorResponse(t, w, 404, "not_found")
}

func TestDeleteUser_Success(t *testing.T) {
	deleted := false
	mockService := &handlers.MockUserService{
		DeleteUserFunc: func(ctx context.Context, id int64) error {
			assert.Equal(t, int64(42), id)
			deleted = true
			return nil
		},
	}

	handler := handlers.NewUserHandler(mockService, handlers.RequesterFixture(plainUser(42)))
	req := handlers.NewTestRequest(t, "DELETE", "/users/42", nil)
	req = handlers.WithAuthContext(req, 42, "member")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "42"})

	w := httptest.NewRecorder()
	handler.DeleteUser(w, req)

	assert.Equal(t, 204, w.Code)
	assert.True(t, deleted)
}
