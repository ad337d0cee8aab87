package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/taskflow-io/taskflow/internal/domain"
	"github.com/taskflow-io/taskflow/internal/realtime"
)

type CreateProjectInput struct {
	Body struct {
		Name        string `json:"name" minLength:"1" maxLength:"255" doc:"Project name"`
		Description string `json:"description,omitempty" maxLength:"2000" doc:"Project description"`
	}
}

type CreateProjectOutput struct {
	Body *domain.Project
}

type ListProjectsOutput struct {
	Body []*domain.Project
}

type GetProjectInput struct {
	ID uuid.UUID `path:"id" doc:"Project ID"`
}

type GetProjectOutput struct {
	Body *domain.Project
}

type UpdateProjectInput struct {
	ID   uuid.UUID `path:"id" doc:"Project ID"`
	Body struct {
		Name        string `json:"name,omitempty" maxLength:"255" doc:"Project name"`
		Description string `json:"description,omitempty" maxLength:"2000" doc:"Project description"`
	}
}

type UpdateProjectOutput struct {
	Body *domain.Project
}

type DeleteProjectInput struct {
	ID uuid.UUID `path:"id" doc:"Project ID"`
}

func RegisterProjectRoutes(api huma.API, store DataStore, pub Publisher, rec Recorder) {
	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Create a new project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *CreateProjectInput) (*CreateProjectOutput, error) {
		actor, ok := actorFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		p, err := domain.NewProject(actor.UserID, input.Body.Name, input.Body.Description)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}

		if err := store.Projects().Create(ctx, p); err != nil {
			return nil, huma.Error500InternalServerError("failed to create project", err)
		}

		// The creator is the project's first member.
		member := &domain.ProjectMember{
			ProjectID: p.ID,
			UserID:    actor.UserID,
			FullName:  actor.FullName,
			Role:      domain.RoleOwner,
			JoinedAt:  time.Now(),
		}
		if err := store.Members().Add(ctx, member); err != nil {
			return nil, huma.Error500InternalServerError("failed to add project owner", err)
		}

		// Audit only. Nobody is in the project channel yet, so there is no
		// broadcast to make.
		if event, err := realtime.NewEvent(realtime.EventProjectCreated, p.ID, realtime.EntityProject, p.ID, p, actor); err == nil {
			rec.Record(ctx, event, map[string]any{"name": p.Name})
		}

		return &CreateProjectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects the current user belongs to",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, _ *struct{}) (*ListProjectsOutput, error) {
		actor, ok := actorFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		projects, err := store.Projects().ListByUser(ctx, actor.UserID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list projects", err)
		}

		return &ListProjectsOutput{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project by ID",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *GetProjectInput) (*GetProjectOutput, error) {
		if _, err := requireMember(ctx, store, input.ID); err != nil {
			return nil, err
		}

		p, err := store.Projects().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to get project", err)
		}

		return &GetProjectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{id}",
		Summary:     "Update a project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *UpdateProjectInput) (*UpdateProjectOutput, error) {
		member, err := requireMember(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if !member.Role.CanManageMembers() {
			return nil, huma.Error403Forbidden("only owners and admins can update the project")
		}

		existing, err := store.Projects().GetByID(ctx, input.ID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to get project", err)
		}

		if input.Body.Name != "" {
			existing.Name = input.Body.Name
		}
		if input.Body.Description != "" {
			existing.Description = input.Body.Description
		}
		existing.UpdatedAt = time.Now()

		if err := store.Projects().Update(ctx, existing); err != nil {
			return nil, huma.Error500InternalServerError("failed to update project", err)
		}

		broadcast(ctx, rec, pub, realtime.EventProjectUpdated, existing.ID, realtime.EntityProject, existing.ID, existing, nil)

		return &UpdateProjectOutput{Body: existing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-project",
		Method:      http.MethodDelete,
		Path:        "/projects/{id}",
		Summary:     "Delete a project",
		Tags:        []string{"Projects"},
	}, func(ctx context.Context, input *DeleteProjectInput) (*struct{}, error) {
		member, err := requireMember(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if member.Role != domain.RoleOwner {
			return nil, huma.Error403Forbidden("only the owner can delete the project")
		}

		if err := store.Projects().Delete(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("project not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete project", err)
		}

		broadcast(ctx, rec, pub, realtime.EventProjectDeleted, input.ID, realtime.EntityProject, input.ID, nil, nil)

		return nil, nil
	})
}
