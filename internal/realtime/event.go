package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates every event the hub can push to a client. The names
// are the wire-level values; clients switch on them directly, so they form a
// closed vocabulary rather than free-form method names.
type EventType string

const (
	EventTaskCreated       EventType = "TaskCreated"
	EventTaskUpdated       EventType = "TaskUpdated"
	EventTaskDeleted       EventType = "TaskDeleted"
	EventTaskStatusChanged EventType = "TaskStatusChanged"
	EventCommentAdded      EventType = "CommentAdded"
	EventCommentUpdated    EventType = "CommentUpdated"
	EventCommentDeleted    EventType = "CommentDeleted"
	EventMemberAdded       EventType = "MemberAdded"
	EventMemberRoleUpdated EventType = "MemberRoleUpdated"
	EventMemberRemoved     EventType = "MemberRemoved"
	EventProjectUpdated    EventType = "ProjectUpdated"
	EventProjectDeleted    EventType = "ProjectDeleted"

	// EventProjectCreated is audit-only: a brand-new project has no channel
	// members to push to, but its creation still lands in the activity log.
	EventProjectCreated EventType = "ProjectCreated"

	EventUserJoined        EventType = "UserJoined"
	EventUserLeft          EventType = "UserLeft"
	EventUserTyping        EventType = "UserTyping"
	EventUserStoppedTyping EventType = "UserStoppedTyping"

	// EventError is pushed only to the connection whose operation failed,
	// e.g. a join attempt for a project the user is not a member of.
	EventError EventType = "Error"
)

// EntityType discriminates what kind of record an entity event refers to.
type EntityType string

const (
	EntityTask    EntityType = "task"
	EntityComment EntityType = "comment"
	EntityProject EntityType = "project"
	EntityMember  EntityType = "member"
)

// Identity is the verified identity that owns a connection or originated an
// event.
type Identity struct {
	UserID   uuid.UUID `json:"user_id"`
	FullName string    `json:"full_name"`
}

// Event is one typed notification published to a project channel. Events are
// immutable once constructed and are not persisted by the hub.
type Event struct {
	Type      EventType       `json:"type"`
	ProjectID uuid.UUID       `json:"project_id"`
	Entity    EntityType      `json:"entity,omitempty"`
	EntityID  uuid.UUID       `json:"entity_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Actor     Identity        `json:"actor"`
	Timestamp time.Time       `json:"timestamp"`

	// origin is the connection that triggered the event. Presence events are
	// not delivered back to it. Zero for events published by the write path.
	origin uuid.UUID
}

// NewEvent constructs an event, marshaling payload to its wire form.
func NewEvent(t EventType, projectID uuid.UUID, entity EntityType, entityID uuid.UUID, payload any, actor Identity) (Event, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("realtime.NewEvent: marshal payload: %w", err)
		}
		raw = b
	}
	return Event{
		Type:      t,
		ProjectID: projectID,
		Entity:    entity,
		EntityID:  entityID,
		Payload:   raw,
		Actor:     actor,
		Timestamp: time.Now(),
	}, nil
}

// Channel returns the broadcast scope the event belongs to.
func (e Event) Channel() string {
	return ChannelName(e.ProjectID)
}

// ChannelName returns the channel for a project, one channel per project.
func ChannelName(projectID uuid.UUID) string {
	return "project:" + projectID.String()
}

// Presence reports whether the event uses others-in-channel semantics:
// presence events skip the originating connection, entity events reach every
// member including the originator (whose client still needs the confirmed
// copy to replace its optimistic one).
func (t EventType) Presence() bool {
	switch t {
	case EventUserJoined, EventUserLeft, EventUserTyping, EventUserStoppedTyping:
		return true
	default:
		return false
	}
}

// AuditAction maps an event type to the action recorded in the activity log.
// Presence events and errors are not audited.
func (t EventType) AuditAction() (string, bool) {
	switch t {
	case EventTaskCreated:
		return "created_task", true
	case EventTaskUpdated:
		return "updated_task", true
	case EventTaskDeleted:
		return "deleted_task", true
	case EventTaskStatusChanged:
		return "changed_task_status", true
	case EventCommentAdded:
		return "added_comment", true
	case EventCommentUpdated:
		return "updated_comment", true
	case EventCommentDeleted:
		return "deleted_comment", true
	case EventMemberAdded:
		return "added_member", true
	case EventMemberRoleUpdated:
		return "updated_member_role", true
	case EventMemberRemoved:
		return "removed_member", true
	case EventProjectCreated:
		return "created_project", true
	case EventProjectUpdated:
		return "updated_project", true
	case EventProjectDeleted:
		return "deleted_project", true
	default:
		return "", false
	}
}

// Client-invokable operations, sent as JSON frames over the socket.
const (
	OpJoinProject   = "join_project"
	OpLeaveProject  = "leave_project"
	OpTyping        = "typing"
	OpStoppedTyping = "stopped_typing"
)

// ClientOp is an inbound frame from a connected client.
type ClientOp struct {
	Op        string    `json:"op"`
	ProjectID uuid.UUID `json:"project_id"`
	TaskID    uuid.UUID `json:"task_id,omitzero"`
}
