package v1_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/taskflow-io/taskflow/internal/api/v1"
	"github.com/taskflow-io/taskflow/internal/domain"
)

// ---------------------------------------------------------------------------
// TestGetCurrentUser
// ---------------------------------------------------------------------------

func TestGetCurrentUser(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	now := time.Now()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
					assert.Equal(t, userID, id)
					return &domain.User{
						ID: userID, Email: "grace@example.com", FullName: "Grace",
						PasswordHash: "secret", CreatedAt: now, UpdatedAt: now,
					}, nil
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(userID, "Grace"), "/users/me")

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, userID, body.ID)
		assert.Equal(t, "grace@example.com", body.Email)
		assert.NotContains(t, resp.Body.String(), "secret")
	})

	t.Run("missing_user", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{})

		resp := api.GetCtx(context.Background(), "/users/me")

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByIDFunc: func(_ context.Context, _ uuid.UUID) (*domain.User, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(userID, "Grace"), "/users/me")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestGetUser
// ---------------------------------------------------------------------------

func TestGetUser(t *testing.T) {
	t.Parallel()

	callerID := uuid.New()
	targetID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.User, error) {
					assert.Equal(t, targetID, id)
					return &domain.User{ID: targetID, Email: "ada@example.com", FullName: "Ada"}, nil
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(callerID, "Grace"), "/users/"+targetID.String())

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, targetID, body.ID)
		assert.Equal(t, "Ada", body.FullName)
	})

	t.Run("not_found", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByIDFunc: func(_ context.Context, _ uuid.UUID) (*domain.User, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(callerID, "Grace"), "/users/"+targetID.String())

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestSearchUser
// ---------------------------------------------------------------------------

func TestSearchUser(t *testing.T) {
	t.Parallel()

	callerID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		targetID := uuid.New()
		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByEmailFunc: func(_ context.Context, email string) (*domain.User, error) {
					assert.Equal(t, "ada@example.com", email)
					return &domain.User{ID: targetID, Email: "ada@example.com", FullName: "Ada"}, nil
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(callerID, "Grace"), "/users/search?email=ada%40example.com")

		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, targetID, body.ID)
	})

	t.Run("unknown_email", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByEmailFunc: func(_ context.Context, _ string) (*domain.User, error) {
					return nil, domain.ErrNotFound
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(callerID, "Grace"), "/users/search?email=nobody%40example.com")

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})

	t.Run("blank_email_rejected", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{})

		resp := api.GetCtx(userCtx(callerID, "Grace"), "/users/search?email=")

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestListMyTasks
// ---------------------------------------------------------------------------

func TestListMyTasks(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tasks: &mockTaskRepo{
				listByAssignee: func(_ context.Context, assigneeID uuid.UUID) ([]*domain.Task, error) {
					assert.Equal(t, userID, assigneeID)
					return []*domain.Task{
						{ID: uuid.New(), ProjectID: uuid.New(), Title: "Ship it", AssigneeID: &userID},
						{ID: uuid.New(), ProjectID: uuid.New(), Title: "Review docs", AssigneeID: &userID},
					}, nil
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(userID, "Grace"), "/users/me/tasks")

		require.Equal(t, http.StatusOK, resp.Code)

		var body []*domain.Task
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body, 2)
		assert.Equal(t, "Ship it", body[0].Title)
	})

	t.Run("missing_user", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{})

		resp := api.GetCtx(context.Background(), "/users/me/tasks")

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("store_error", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		store := &mockDataStore{
			tasks: &mockTaskRepo{
				listByAssignee: func(_ context.Context, _ uuid.UUID) ([]*domain.Task, error) {
					return nil, errors.New("db down")
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.GetCtx(userCtx(userID, "Grace"), "/users/me/tasks")

		assert.Equal(t, http.StatusInternalServerError, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// TestUpdateProfile
// ---------------------------------------------------------------------------

func TestUpdateProfile(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		var updated *domain.User
		_, api := humatest.New(t)
		store := &mockDataStore{
			users: &mockUserRepo{
				getByIDFunc: func(_ context.Context, _ uuid.UUID) (*domain.User, error) {
					return &domain.User{ID: userID, Email: "grace@example.com", FullName: "Grace"}, nil
				},
				updateFunc: func(_ context.Context, u *domain.User) error {
					updated = u
					return nil
				},
			},
		}
		v1.RegisterUserRoutes(api, store)

		resp := api.PutCtx(userCtx(userID, "Grace"), "/users/me", map[string]any{
			"full_name": "Grace Hopper",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		require.NotNil(t, updated)
		assert.Equal(t, "Grace Hopper", updated.FullName)
		assert.Equal(t, "grace@example.com", updated.Email, "email is not editable here")

		var body domain.User
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Grace Hopper", body.FullName)
	})

	t.Run("name_too_short", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{})

		resp := api.PutCtx(userCtx(userID, "Grace"), "/users/me", map[string]any{
			"full_name": "G",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("missing_user", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterUserRoutes(api, &mockDataStore{})

		resp := api.PutCtx(context.Background(), "/users/me", map[string]any{
			"full_name": "Grace Hopper",
		})

		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
