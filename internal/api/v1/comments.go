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

type AddCommentInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
	Body   struct {
		Content string `json:"content" minLength:"1" maxLength:"10000" doc:"Comment text"`
	}
}

type AddCommentOutput struct {
	Body *domain.Comment
}

type ListCommentsInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
}

type ListCommentsOutput struct {
	Body []*domain.Comment
}

type UpdateCommentInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
	ID     uuid.UUID `path:"id" doc:"Comment ID"`
	Body   struct {
		Content string `json:"content" minLength:"1" maxLength:"10000" doc:"Comment text"`
	}
}

type UpdateCommentOutput struct {
	Body *domain.Comment
}

type DeleteCommentInput struct {
	TaskID uuid.UUID `path:"taskID" doc:"Task ID"`
	ID     uuid.UUID `path:"id" doc:"Comment ID"`
}

// requireComment loads a comment under its task and authorizes the caller
// against the task's project.
func requireComment(ctx context.Context, store DataStore, taskID, commentID uuid.UUID) (*domain.Comment, *domain.Task, *domain.ProjectMember, error) {
	task, member, err := requireTask(ctx, store, taskID)
	if err != nil {
		return nil, nil, nil, err
	}

	c, err := store.Comments().GetByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, nil, huma.Error404NotFound("comment not found")
		}
		return nil, nil, nil, huma.Error500InternalServerError("failed to get comment", err)
	}
	if c.TaskID != taskID {
		return nil, nil, nil, huma.Error404NotFound("comment not found")
	}

	return c, task, member, nil
}

func RegisterCommentRoutes(api huma.API, store DataStore, pub Publisher, rec Recorder, cache Cache) {
	huma.Register(api, huma.Operation{
		OperationID: "add-comment",
		Method:      http.MethodPost,
		Path:        "/tasks/{taskID}/comments",
		Summary:     "Add a comment to a task",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *AddCommentInput) (*AddCommentOutput, error) {
		task, member, err := requireTask(ctx, store, input.TaskID)
		if err != nil {
			return nil, err
		}
		if member.Role == domain.RoleViewer {
			return nil, huma.Error403Forbidden("viewers cannot comment")
		}

		now := time.Now()
		c := &domain.Comment{
			ID:         uuid.New(),
			TaskID:     input.TaskID,
			AuthorID:   member.UserID,
			AuthorName: member.FullName,
			Content:    input.Body.Content,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := store.Comments().Create(ctx, c); err != nil {
			return nil, huma.Error500InternalServerError("failed to add comment", err)
		}

		cache.Invalidate(ctx, redis.TaskCommentsKey(input.TaskID))
		broadcast(ctx, rec, pub, realtime.EventCommentAdded, task.ProjectID, realtime.EntityComment, c.ID, c, map[string]any{"task_id": task.ID.String()})

		return &AddCommentOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-comments",
		Method:      http.MethodGet,
		Path:        "/tasks/{taskID}/comments",
		Summary:     "List comments on a task",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *ListCommentsInput) (*ListCommentsOutput, error) {
		if _, _, err := requireTask(ctx, store, input.TaskID); err != nil {
			return nil, err
		}

		key := redis.TaskCommentsKey(input.TaskID)
		var cached []*domain.Comment
		if cache.Get(ctx, key, &cached) {
			return &ListCommentsOutput{Body: cached}, nil
		}

		comments, err := store.Comments().ListByTask(ctx, input.TaskID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list comments", err)
		}

		cache.Set(ctx, key, comments)

		return &ListCommentsOutput{Body: comments}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-comment",
		Method:      http.MethodPut,
		Path:        "/tasks/{taskID}/comments/{id}",
		Summary:     "Edit a comment",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *UpdateCommentInput) (*UpdateCommentOutput, error) {
		c, task, member, err := requireComment(ctx, store, input.TaskID, input.ID)
		if err != nil {
			return nil, err
		}
		// Only the author or a manager may edit.
		if c.AuthorID != member.UserID && !member.Role.CanManageMembers() {
			return nil, huma.Error403Forbidden("you cannot edit this comment")
		}

		c.Content = input.Body.Content
		c.UpdatedAt = time.Now()

		if err := store.Comments().Update(ctx, c); err != nil {
			return nil, huma.Error500InternalServerError("failed to update comment", err)
		}

		cache.Invalidate(ctx, redis.TaskCommentsKey(input.TaskID))
		broadcast(ctx, rec, pub, realtime.EventCommentUpdated, task.ProjectID, realtime.EntityComment, c.ID, c, map[string]any{"task_id": task.ID.String()})

		return &UpdateCommentOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-comment",
		Method:      http.MethodDelete,
		Path:        "/tasks/{taskID}/comments/{id}",
		Summary:     "Delete a comment",
		Tags:        []string{"Comments"},
	}, func(ctx context.Context, input *DeleteCommentInput) (*struct{}, error) {
		c, task, member, err := requireComment(ctx, store, input.TaskID, input.ID)
		if err != nil {
			return nil, err
		}
		if c.AuthorID != member.UserID && !member.Role.CanManageMembers() {
			return nil, huma.Error403Forbidden("you cannot delete this comment")
		}

		if err := store.Comments().Delete(ctx, input.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to delete comment", err)
		}

		cache.Invalidate(ctx, redis.TaskCommentsKey(input.TaskID))
		broadcast(ctx, rec, pub, realtime.EventCommentDeleted, task.ProjectID, realtime.EntityComment, c.ID, nil, map[string]any{"task_id": task.ID.String()})

		return nil, nil
	})
}
