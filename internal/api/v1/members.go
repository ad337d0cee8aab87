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

type ListMembersInput struct {
	ProjectID uuid.UUID `path:"projectID" doc:"Project ID"`
}

type ListMembersOutput struct {
	Body []*domain.ProjectMember
}

type AddMemberInput struct {
	ProjectID uuid.UUID `path:"projectID" doc:"Project ID"`
	Body      struct {
		UserID uuid.UUID `json:"user_id" doc:"User to add"`
		Role   string    `json:"role" minLength:"1" doc:"Project role"`
	}
}

type AddMemberOutput struct {
	Body *domain.ProjectMember
}

type UpdateMemberRoleInput struct {
	ProjectID uuid.UUID `path:"projectID" doc:"Project ID"`
	UserID    uuid.UUID `path:"userID" doc:"Member user ID"`
	Body      struct {
		Role string `json:"role" minLength:"1" doc:"New project role"`
	}
}

type UpdateMemberRoleOutput struct {
	Body *domain.ProjectMember
}

type RemoveMemberInput struct {
	ProjectID uuid.UUID `path:"projectID" doc:"Project ID"`
	UserID    uuid.UUID `path:"userID" doc:"Member user ID"`
}

func RegisterMemberRoutes(api huma.API, store DataStore, pub Publisher, rec Recorder, cache Cache) {
	huma.Register(api, huma.Operation{
		OperationID: "list-members",
		Method:      http.MethodGet,
		Path:        "/projects/{projectID}/members",
		Summary:     "List project members",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *ListMembersInput) (*ListMembersOutput, error) {
		if _, err := requireMember(ctx, store, input.ProjectID); err != nil {
			return nil, err
		}

		key := redis.ProjectMembersKey(input.ProjectID)
		var cached []*domain.ProjectMember
		if cache.Get(ctx, key, &cached) {
			return &ListMembersOutput{Body: cached}, nil
		}

		members, err := store.Members().ListByProject(ctx, input.ProjectID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list members", err)
		}

		cache.Set(ctx, key, members)

		return &ListMembersOutput{Body: members}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-member",
		Method:      http.MethodPost,
		Path:        "/projects/{projectID}/members",
		Summary:     "Add a member to a project",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *AddMemberInput) (*AddMemberOutput, error) {
		actor, err := requireMember(ctx, store, input.ProjectID)
		if err != nil {
			return nil, err
		}
		if !actor.Role.CanManageMembers() {
			return nil, huma.Error403Forbidden("only owners and admins can manage members")
		}

		role := domain.ProjectRole(input.Body.Role)
		if !role.Valid() || role == domain.RoleOwner {
			return nil, huma.Error400BadRequest("invalid role: " + input.Body.Role)
		}

		user, err := store.Users().GetByID(ctx, input.Body.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up user", err)
		}

		member := &domain.ProjectMember{
			ProjectID: input.ProjectID,
			UserID:    user.ID,
			FullName:  user.FullName,
			Role:      role,
			JoinedAt:  time.Now(),
		}
		if err := store.Members().Add(ctx, member); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("user is already a member")
			}
			return nil, huma.Error500InternalServerError("failed to add member", err)
		}

		cache.Invalidate(ctx, redis.ProjectMembersKey(input.ProjectID))
		broadcast(ctx, rec, pub, realtime.EventMemberAdded, input.ProjectID, realtime.EntityMember, member.UserID, member, nil)

		return &AddMemberOutput{Body: member}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-member-role",
		Method:      http.MethodPatch,
		Path:        "/projects/{projectID}/members/{userID}",
		Summary:     "Change a member's role",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *UpdateMemberRoleInput) (*UpdateMemberRoleOutput, error) {
		actor, err := requireMember(ctx, store, input.ProjectID)
		if err != nil {
			return nil, err
		}
		if !actor.Role.CanManageMembers() {
			return nil, huma.Error403Forbidden("only owners and admins can manage members")
		}

		role := domain.ProjectRole(input.Body.Role)
		if !role.Valid() || role == domain.RoleOwner {
			return nil, huma.Error400BadRequest("invalid role: " + input.Body.Role)
		}

		target, err := store.Members().Get(ctx, input.ProjectID, input.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("member not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up member", err)
		}
		if target.Role == domain.RoleOwner {
			return nil, huma.Error403Forbidden("the owner's role cannot be changed")
		}

		if err := store.Members().UpdateRole(ctx, input.ProjectID, input.UserID, role); err != nil {
			return nil, huma.Error500InternalServerError("failed to update role", err)
		}
		target.Role = role

		cache.Invalidate(ctx, redis.ProjectMembersKey(input.ProjectID))
		broadcast(ctx, rec, pub, realtime.EventMemberRoleUpdated, input.ProjectID, realtime.EntityMember, target.UserID, target, map[string]any{"role": string(role)})

		return &UpdateMemberRoleOutput{Body: target}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-member",
		Method:      http.MethodDelete,
		Path:        "/projects/{projectID}/members/{userID}",
		Summary:     "Remove a member from a project",
		Tags:        []string{"Members"},
	}, func(ctx context.Context, input *RemoveMemberInput) (*struct{}, error) {
		actor, err := requireMember(ctx, store, input.ProjectID)
		if err != nil {
			return nil, err
		}
		// Members may remove themselves; anything else needs a manager role.
		if actor.UserID != input.UserID && !actor.Role.CanManageMembers() {
			return nil, huma.Error403Forbidden("only owners and admins can manage members")
		}

		target, err := store.Members().Get(ctx, input.ProjectID, input.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, huma.Error404NotFound("member not found")
			}
			return nil, huma.Error500InternalServerError("failed to look up member", err)
		}
		if target.Role == domain.RoleOwner {
			return nil, huma.Error403Forbidden("the owner cannot be removed")
		}

		if err := store.Members().Remove(ctx, input.ProjectID, input.UserID); err != nil {
			return nil, huma.Error500InternalServerError("failed to remove member", err)
		}

		cache.Invalidate(ctx, redis.ProjectMembersKey(input.ProjectID))
		broadcast(ctx, rec, pub, realtime.EventMemberRemoved, input.ProjectID, realtime.EntityMember, input.UserID, nil, nil)

		return nil, nil
	})
}
