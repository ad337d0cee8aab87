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
	"github.com/taskflow-io/taskflow/internal/store/redis"
)

type CreateTaskInput struct {
	Body struct {
		ProjectID   uuid.UUID  `json:"project_id" doc:"Project ID"`
		Title       string     `json:"title" minLength:"1" maxLength:"500" doc:"Task title"`
		Description string     `json:"description,omitempty" maxLength:"5000" doc:"Task description"`
		Priority    string     `json:"priority,omitempty" doc:"Task priority (defaults to medium)"`
		AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" doc:"Assigned user ID"`
		DueDate     *time.Time `json:"due_date,omitempty" doc:"Due date"`
	}
}

type CreateTaskOutput struct {
	Body *domain.Task
}

type ListTasksInput struct {
	ProjectID uuid.UUID `query:"project_id" required:"true" doc:"Project ID"`
	Status    string    `query:"status" doc:"Filter by status"`
}

type ListTasksOutput struct {
	Body []*domain.Task
}

type GetTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

type GetTaskOutput struct {
	Body *domain.Task
}

type UpdateTaskInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Title       string     `json:"title,omitempty" maxLength:"500" doc:"Task title"`
		Description string     `json:"description,omitempty" maxLength:"5000" doc:"Task description"`
		Priority    string     `json:"priority,omitempty" doc:"Task priority"`
		AssigneeID  *uuid.UUID `json:"assignee_id,omitempty" doc:"Assigned user ID"`
		DueDate     *time.Time `json:"due_date,omitempty" doc:"Due date"`
	}
}

type UpdateTaskOutput struct {
	Body *domain.Task
}

type TransitionTaskStatusInput struct {
	ID   uuid.UUID `path:"id" doc:"Task ID"`
	Body struct {
		Status string `json:"status" minLength:"1" doc:"Target status"`
	}
}

type TransitionTaskStatusOutput struct {
	Body *domain.Task
}

type DeleteTaskInput struct {
	ID uuid.UUID `path:"id" doc:"Task ID"`
}

// requireTask loads the task and authorizes the caller against its project.
func requireTask(ctx context.Context, store DataStore, taskID uuid.UUID) (*domain.Task, *domain.ProjectMember, error) {
	t, err := store.Tasks().GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, huma.Error404NotFound("task not found")
		}
		return nil, nil, huma.Error500InternalServerError("failed to get task", err)
	}

	member, err := requireMember(ctx, store, t.ProjectID)
	if err != nil {
		return nil, nil, err
	}

	return t, member, nil
}

func RegisterTaskRoutes(api huma.API, store DataStore, pub Publisher, rec Recorder, cache Cache) {
	huma.Register(api, huma.Operation{
		OperationID: "create-task",
		Method:      http.MethodPost,
		Path:        "/tasks",
		Summary:     "Create a new task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *CreateTaskInput) (*CreateTaskOutput, error) {
		member, err := requireMember(ctx, store, input.Body.ProjectID)
		if err != nil {
			return nil, err
		}
		if member.Role == domain.RoleViewer {
			return nil, huma.Error403Forbidden("viewers cannot create tasks")
		}

		priority := domain.PriorityMedium
		if input.Body.Priority != "" {
			priority = domain.TaskPriority(input.Body.Priority)
			if !priority.Valid() {
				return nil, huma.Error400BadRequest("unknown task priority: " + input.Body.Priority)
			}
		}

		now := time.Now()
		t := &domain.Task{
			ID:          uuid.New(),
			ProjectID:   input.Body.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Status:      domain.TaskStatusTodo,
			Priority:    priority,
			AssigneeID:  input.Body.AssigneeID,
			DueDate:     input.Body.DueDate,
			CreatedBy:   member.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := store.Tasks().Create(ctx, t); err != nil {
			return nil, huma.Error500InternalServerError("failed to create task", err)
		}

		cache.Invalidate(ctx, redis.ProjectTasksKey(t.ProjectID))
		broadcast(ctx, rec, pub, realtime.EventTaskCreated, t.ProjectID, realtime.EntityTask, t.ID, t, map[string]any{"title": t.Title})

		return &CreateTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks for a project",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *ListTasksInput) (*ListTasksOutput, error) {
		if _, err := requireMember(ctx, store, input.ProjectID); err != nil {
			return nil, err
		}

		if input.Status != "" {
			status := domain.TaskStatus(input.Status)
			if !status.Valid() {
				return nil, huma.Error400BadRequest("unknown task status: " + input.Status)
			}
			tasks, err := store.Tasks().ListByStatus(ctx, input.ProjectID, status)
			if err != nil {
				return nil, huma.Error500InternalServerError("failed to list tasks", err)
			}
			return &ListTasksOutput{Body: tasks}, nil
		}

		// Only the unfiltered list is cached; filtered reads go straight to
		// the store.
		key := redis.ProjectTasksKey(input.ProjectID)
		var cached []*domain.Task
		if cache.Get(ctx, key, &cached) {
			return &ListTasksOutput{Body: cached}, nil
		}

		tasks, err := store.Tasks().ListByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list tasks", err)
		}

		cache.Set(ctx, key, tasks)

		return &ListTasksOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task by ID",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *GetTaskInput) (*GetTaskOutput, error) {
		t, _, err := requireTask(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}

		return &GetTaskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *UpdateTaskInput) (*UpdateTaskOutput, error) {
		existing, member, err := requireTask(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if member.Role == domain.RoleViewer {
			return nil, huma.Error403Forbidden("viewers cannot edit tasks")
		}

		if input.Body.Title != "" {
			existing.Title = input.Body.Title
		}
		if input.Body.Description != "" {
			existing.Description = input.Body.Description
		}
		if input.Body.Priority != "" {
			priority := domain.TaskPriority(input.Body.Priority)
			if !priority.Valid() {
				return nil, huma.Error400BadRequest("unknown task priority: " + input.Body.Priority)
			}
			existing.Priority = priority
		}
		if input.Body.AssigneeID != nil {
			existing.AssigneeID = input.Body.AssigneeID
		}
		if input.Body.DueDate != nil {
			existing.DueDate = input.Body.DueDate
		}
		existing.UpdatedAt = time.Now()

		if err := store.Tasks().Update(ctx, existing); err != nil {
			return nil, huma.Error500InternalServerError("failed to update task", err)
		}

		cache.Invalidate(ctx, redis.ProjectTasksKey(existing.ProjectID))
		broadcast(ctx, rec, pub, realtime.EventTaskUpdated, existing.ProjectID, realtime.EntityTask, existing.ID, existing, map[string]any{"title": existing.Title})

		return &UpdateTaskOutput{Body: existing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/status",
		Summary:     "Transition task status",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *TransitionTaskStatusInput) (*TransitionTaskStatusOutput, error) {
		existing, member, err := requireTask(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if member.Role == domain.RoleViewer {
			return nil, huma.Error403Forbidden("viewers cannot edit tasks")
		}

		target := domain.TaskStatus(input.Body.Status)
		if !target.Valid() {
			return nil, huma.Error400BadRequest("unknown task status: " + input.Body.Status)
		}

		if err := store.Tasks().UpdateStatus(ctx, input.ID, target); err != nil {
			return nil, huma.Error500InternalServerError("failed to update task status", err)
		}

		from := existing.Status
		existing.Status = target
		existing.UpdatedAt = time.Now()

		cache.Invalidate(ctx, redis.ProjectTasksKey(existing.ProjectID))
		broadcast(ctx, rec, pub, realtime.EventTaskStatusChanged, existing.ProjectID, realtime.EntityTask, existing.ID, existing,
			map[string]any{"from": string(from), "to": string(target)})

		return &TransitionTaskStatusOutput{Body: existing}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete a task",
		Tags:        []string{"Tasks"},
	}, func(ctx context.Context, input *DeleteTaskInput) (*struct{}, error) {
		existing, member, err := requireTask(ctx, store, input.ID)
		if err != nil {
			return nil, err
		}
		if member.Role == domain.RoleViewer {
			return nil, huma.Error403Forbidden("viewers cannot edit tasks")
		}

		if err := store.Tasks().Delete(ctx, input.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("task not found")
			}
			return nil, huma.Error500InternalServerError("failed to delete task", err)
		}

		cache.Invalidate(ctx, redis.ProjectTasksKey(existing.ProjectID), redis.TaskCommentsKey(existing.ID))
		broadcast(ctx, rec, pub, realtime.EventTaskDeleted, existing.ProjectID, realtime.EntityTask, existing.ID, nil, map[string]any{"title": existing.Title})

		return nil, nil
	})
}
