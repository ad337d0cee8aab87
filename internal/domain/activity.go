package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActivityEntry is one row of a project's audit trail. Entries are appended
// best-effort by the write path; a failed append never fails the request.
type ActivityEntry struct {
	ID         uuid.UUID      `json:"id"`
	ProjectID  uuid.UUID      `json:"project_id"`
	ActorID    uuid.UUID      `json:"actor_id"`
	ActorName  string         `json:"actor_name"`
	Action     string         `json:"action"` // "created_task", "changed_task_status", etc.
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

type ActivityRepository interface {
	Append(ctx context.Context, entry *ActivityEntry) error
	ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*ActivityEntry, error)
}
