package v1

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danielgtaylor/huma/v2"

	"github.com/taskflow-io/taskflow/internal/domain"
	"github.com/taskflow-io/taskflow/internal/realtime"
	"github.com/taskflow-io/taskflow/internal/server/middleware"
)

// actorFromContext extracts the authenticated identity injected by the auth
// middleware.
func actorFromContext(ctx context.Context) (realtime.Identity, bool) {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return realtime.Identity{}, false
	}
	name, _ := middleware.UserNameFromContext(ctx)
	return realtime.Identity{UserID: userID, FullName: name}, true
}

// requireMember authorizes a project-scoped request: the caller must be
// authenticated and a member of the project. Non-members get the same 403 as
// an unknown project would, so membership probing leaks nothing.
func requireMember(ctx context.Context, store DataStore, projectID uuid.UUID) (*domain.ProjectMember, error) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		return nil, huma.Error401Unauthorized("missing user context")
	}

	member, err := store.Members().Get(ctx, projectID, actor.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error403Forbidden("you are not a member of this project")
		}
		return nil, huma.Error500InternalServerError("failed to check membership", err)
	}

	return member, nil
}

// broadcast records the audit entry and fans the event out. The write is
// already durable at this point; failures here are logged, never surfaced to
// the HTTP response.
func broadcast(ctx context.Context, rec Recorder, pub Publisher, t realtime.EventType, projectID uuid.UUID, entity realtime.EntityType, entityID uuid.UUID, payload any, metadata map[string]any) {
	actor, ok := actorFromContext(ctx)
	if !ok {
		log.Error().Str("event", string(t)).Msg("broadcast without actor context")
		return
	}

	event, err := realtime.NewEvent(t, projectID, entity, entityID, payload, actor)
	if err != nil {
		log.Error().Err(err).Str("event", string(t)).Msg("event payload marshal failed")
		return
	}

	rec.Record(ctx, event, metadata)
	pub.Publish(event)
}
