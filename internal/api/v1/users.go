package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/taskflow-io/taskflow/internal/domain"
	"github.com/taskflow-io/taskflow/internal/server/middleware"
)

type GetUserInput struct {
	ID uuid.UUID `path:"id" doc:"User ID"`
}

type GetUserOutput struct {
	Body *domain.User
}

type SearchUserInput struct {
	Email string `query:"email" minLength:"3" maxLength:"255" doc:"Exact email to look up"`
}

type SearchUserOutput struct {
	Body *domain.User
}

type ListMyTasksOutput struct {
	Body []*domain.Task
}

type UpdateProfileInput struct {
	Body struct {
		FullName string `json:"full_name" minLength:"2" maxLength:"255" doc:"Display name"`
	}
}

type UpdateProfileOutput struct {
	Body *domain.User
}

// RegisterUserRoutes exposes user lookup and the current user's profile.
// Lookup by ID and by email is how clients resolve a person before inviting
// them to a project.
func RegisterUserRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "get-current-user",
		Method:      http.MethodGet,
		Path:        "/users/me",
		Summary:     "Get the current user's profile",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*GetUserOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		return lookupUser(ctx, store, userID)
	})

	huma.Register(api, huma.Operation{
		OperationID: "search-user",
		Method:      http.MethodGet,
		Path:        "/users/search",
		Summary:     "Look up a user by exact email",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *SearchUserInput) (*SearchUserOutput, error) {
		if _, ok := middleware.UserIDFromContext(ctx); !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		u, err := store.Users().GetByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("no user with that email")
			}
			return nil, huma.Error500InternalServerError("failed to search users", err)
		}

		u.PasswordHash = ""

		return &SearchUserOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-tasks",
		Method:      http.MethodGet,
		Path:        "/users/me/tasks",
		Summary:     "List tasks assigned to the current user across all projects",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *struct{}) (*ListMyTasksOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		tasks, err := store.Tasks().ListByAssignee(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tasks", err)
		}

		return &ListMyTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-profile",
		Method:      http.MethodPut,
		Path:        "/users/me",
		Summary:     "Update the current user's display name",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *UpdateProfileInput) (*UpdateProfileOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		u, err := store.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to get user", err)
		}

		u.FullName = input.Body.FullName
		u.UpdatedAt = time.Now()

		if err := store.Users().Update(ctx, u); err != nil {
			return nil, huma.Error500InternalServerError("failed to update profile", err)
		}

		u.PasswordHash = ""

		return &UpdateProfileOutput{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get a user by ID",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *GetUserInput) (*GetUserOutput, error) {
		if _, ok := middleware.UserIDFromContext(ctx); !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		return lookupUser(ctx, store, input.ID)
	})
}

func lookupUser(ctx context.Context, store DataStore, id uuid.UUID) (*GetUserOutput, error) {
	u, err := store.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("user not found")
		}
		return nil, huma.Error500InternalServerError("failed to get user", err)
	}

	u.PasswordHash = ""

	return &GetUserOutput{Body: u}, nil
}
