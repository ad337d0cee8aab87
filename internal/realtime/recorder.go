package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskflow-io/taskflow/internal/domain"
)

// Recorder appends audit entries for broadcast-worthy entity events. The
// write path calls it exactly once per mutation, immediately before
// publishing; the hub itself never writes audit entries.
type Recorder struct {
	activity domain.ActivityRepository
}

func NewRecorder(activity domain.ActivityRepository) *Recorder {
	return &Recorder{activity: activity}
}

// Record appends an audit entry for the event. Best-effort: failures are
// logged and swallowed so they can never block or fail the broadcast.
func (r *Recorder) Record(ctx context.Context, event Event, metadata map[string]any) {
	action, ok := event.Type.AuditAction()
	if !ok {
		return
	}

	entry := &domain.ActivityEntry{
		ID:         uuid.New(),
		ProjectID:  event.ProjectID,
		ActorID:    event.Actor.UserID,
		ActorName:  event.Actor.FullName,
		Action:     action,
		EntityType: string(event.Entity),
		EntityID:   event.EntityID,
		Metadata:   metadata,
		Timestamp:  time.Now(),
	}

	if err := r.activity.Append(ctx, entry); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("project_id", event.ProjectID.String()).
			Msg("activity append failed")
	}
}
