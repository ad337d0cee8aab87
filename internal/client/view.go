package client

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskflow-io/taskflow/internal/domain"
	"github.com/taskflow-io/taskflow/internal/realtime"
)

// TasksFetcher loads the full task list for the view's project, used when an
// event's payload cannot be trusted to be complete.
type TasksFetcher func(ctx context.Context) ([]domain.Task, error)

// View reconciles one project's local collections against inbound broadcast
// events. Creation events are deduplicated by id, update/delete events apply
// last-write-wins, and status changes trigger a full re-fetch instead of a
// partial merge.
type View struct {
	projectID  uuid.UUID
	fetchTasks TasksFetcher

	Tasks    *Collection[domain.Task]
	Comments *Collection[domain.Comment]
	Members  *Collection[domain.ProjectMember]

	subs []*Subscription
}

// NewView creates a view bound to a project and subscribes it to the bus.
// Close releases the subscriptions.
func NewView(bus *Bus, projectID uuid.UUID, fetchTasks TasksFetcher) *View {
	v := &View{
		projectID:  projectID,
		fetchTasks: fetchTasks,
		Tasks:      NewCollection(func(t domain.Task) uuid.UUID { return t.ID }),
		Comments:   NewCollection(func(c domain.Comment) uuid.UUID { return c.ID }),
		Members:    NewCollection(func(m domain.ProjectMember) uuid.UUID { return m.UserID }),
	}

	sub := func(t realtime.EventType, fn func(realtime.Event)) {
		v.subs = append(v.subs, bus.Subscribe(t, fn))
	}

	sub(realtime.EventTaskCreated, v.onTaskCreated)
	sub(realtime.EventTaskUpdated, v.onTaskUpdated)
	sub(realtime.EventTaskDeleted, v.onTaskDeleted)
	sub(realtime.EventTaskStatusChanged, v.onTaskStatusChanged)
	sub(realtime.EventCommentAdded, v.onCommentAdded)
	sub(realtime.EventCommentUpdated, v.onCommentUpdated)
	sub(realtime.EventCommentDeleted, v.onCommentDeleted)
	sub(realtime.EventMemberAdded, v.onMemberAdded)
	sub(realtime.EventMemberRoleUpdated, v.onMemberUpdated)
	sub(realtime.EventMemberRemoved, v.onMemberRemoved)

	return v
}

// Close unsubscribes the view from the bus.
func (v *View) Close() {
	for _, s := range v.subs {
		s.Unsubscribe()
	}
	v.subs = nil
}

func (v *View) mine(event realtime.Event) bool {
	return event.ProjectID == v.projectID
}

func (v *View) onTaskCreated(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	var task domain.Task
	if err := json.Unmarshal(event.Payload, &task); err != nil {
		log.Debug().Err(err).Msg("task created payload")
		return
	}
	v.Tasks.ApplyCreated(task)
}

func (v *View) onTaskUpdated(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	var task domain.Task
	if err := json.Unmarshal(event.Payload, &task); err != nil {
		log.Debug().Err(err).Msg("task updated payload")
		return
	}
	v.Tasks.ApplyUpdated(task)
}

func (v *View) onTaskDeleted(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	v.Tasks.ApplyDeleted(event.EntityID)
}

// onTaskStatusChanged re-fetches the whole collection rather than merging:
// the payload may be partial, and a full fetch gives a simpler consistency
// argument at a larger network cost.
func (v *View) onTaskStatusChanged(event realtime.Event) {
	if !v.mine(event) || v.fetchTasks == nil {
		return
	}
	go func() {
		tasks, err := v.fetchTasks(context.Background())
		if err != nil {
			log.Warn().Err(err).Str("project_id", v.projectID.String()).Msg("task refetch failed")
			return
		}
		v.Tasks.Replace(tasks)
	}()
}

func (v *View) onCommentAdded(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	var comment domain.Comment
	if err := json.Unmarshal(event.Payload, &comment); err != nil {
		log.Debug().Err(err).Msg("comment added payload")
		return
	}
	v.Comments.ApplyCreated(comment)
}

func (v *View) onCommentUpdated(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	var comment domain.Comment
	if err := json.Unmarshal(event.Payload, &comment); err != nil {
		log.Debug().Err(err).Msg("comment updated payload")
		return
	}
	v.Comments.ApplyUpdated(comment)
}

func (v *View) onCommentDeleted(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	v.Comments.ApplyDeleted(event.EntityID)
}

func (v *View) onMemberAdded(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	var member domain.ProjectMember
	if err := json.Unmarshal(event.Payload, &member); err != nil {
		log.Debug().Err(err).Msg("member added payload")
		return
	}
	v.Members.ApplyCreated(member)
}

func (v *View) onMemberUpdated(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	var member domain.ProjectMember
	if err := json.Unmarshal(event.Payload, &member); err != nil {
		log.Debug().Err(err).Msg("member updated payload")
		return
	}
	v.Members.ApplyUpdated(member)
}

func (v *View) onMemberRemoved(event realtime.Event) {
	if !v.mine(event) {
		return
	}
	v.Members.ApplyDeleted(event.EntityID)
}
