package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/authpulse/internal/models"
	pkgauth "github.com/tmercer/authpulse/pkg/auth"
)

func TestGetUserByID(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			if id == 7 {
				return &models.User{ID: 7, Username: "alice"}, nil
			}
			return nil, models.ErrNotFound
		},
	}
	service := NewUserService(repo, testLogger())

	user, err := service.GetUserByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = service.GetUserByID(context.Background(), 99)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetUserByID_RepositoryFailure(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			return nil, errors.New("connection refused")
		},
	}
	service := NewUserService(repo, testLogger())

	_, err := service.GetUserByID(context.Background(), 1)
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestCreateUser_HashesPassword(t *testing.T) {
	var created *models.User
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			created = user
			user.ID = 42
			return user, nil
		},
	}
	service := NewUserService(repo, testLogger())

	password := "Correct-Horse-42!"
	user, err := service.CreateUser(context.Background(), &models.User{
		Username: "bob",
		Email:    "bob@example.com",
	}, password)
	require.NoError(t, err)
	assert.Equal(t, int64(42), user.ID)

	require.NotNil(t, created)
	assert.NotEmpty(t, created.PasswordHash)
	assert.NotEqual(t, password, created.PasswordHash)
	assert.NoError(t, pkgauth.ComparePassword(created.PasswordHash, password))
}

func TestCreateUser_RejectsWeakPassword(t *testing.T) {
	repo := &MockUserRepository{
		CreateFunc: func(ctx context.Context, user *models.User) (*models.User, error) {
			t.Fatal("create should not be reached with an invalid password")
			return nil, nil
		},
	}
	service := NewUserService(repo, testLogger())

	_, err := service.CreateUser(context.Background(), &models.User{
		Username: "bob",
		Email:    "bob@example.com",
	}, "short")
	require.Error(t, err)

	var validationErr *pkgauth.PasswordValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestCreateUser_ExistingEmailConflicts(t *testing.T) {
	repo := &MockUserRepository{
		GetByEmailFunc: func(ctx context.Context, email string) (*models.User, error) {
			return &models.User{ID: 1, Email: email}, nil
		},
	}
	service := NewUserService(repo, testLogger())

	_, err := service.CreateUser(context.Background(), &models.User{
		Username: "dupe",
		Email:    "taken@example.com",
	}, "Correct-Horse-42!")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUpdateUser_MergesNonZeroFields(t *testing.T) {
	var updated *models.User
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			return &models.User{ID: id, Username: "old-name", Email: "old@example.com", IsStaff: true}, nil
		},
		UpdateFunc: func(ctx context.Context, id int64, user *models.User) (*models.User, error) {
			updated = user
			return user, nil
		},
	}
	service := NewUserService(repo, testLogger())

	_, err := service.UpdateUser(context.Background(), 3, &models.User{Username: "new-name"})
	require.NoError(t, err)

	require.NotNil(t, updated)
	assert.Equal(t, "new-name", updated.Username)
	assert.Equal(t, "old@example.com", updated.Email)
	assert.True(t, updated.IsStaff)
}

func TestUpdateUser_NotFound(t *testing.T) {
	service := NewUserService(&MockUserRepository{}, testLogger())

	_, err := service.UpdateUser(context.Background(), 404, &models.User{Username: "ghost"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	deleted := false
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int64) (*models.User, error) {
			return &models.User{ID: id}, nil
		},
		DeleteFunc: func(ctx context.Context, id int64) error {
			deleted = true
			return nil
		},
	}
	service := NewUserService(repo, testLogger())

	require.NoError(t, service.DeleteUser(context.Background(), 5))
	assert.True(t, deleted)
}

func TestDeleteUser_NotFound(t *testing.T) {
	service := NewUserService(&MockUserRepository{}, testLogger())

	err := service.DeleteUser(context.Background(), 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
