package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MembershipChecker is the storage-backed project membership gate consulted
// on every join attempt.
type MembershipChecker interface {
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

// Size of each connection's outbound queue. A connection that cannot drain
// this many events is dropped rather than allowed to stall the channel.
const sendBuffer = 64

// Hub accepts WebSocket connections and fans typed events out to project
// channels. It assumes a single process instance; there is no cross-instance
// backplane.
type Hub struct {
	jwtSecret string
	members   MembershipChecker
	registry  *Registry

	mu    sync.RWMutex
	conns map[uuid.UUID]*conn

	// Serializes fan-out so every member of a channel observes events in
	// publication order.
	publishMu sync.Mutex
}

type conn struct {
	id       uuid.UUID
	identity Identity
	sock     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	once     sync.Once
}

func (c *conn) close() {
	c.once.Do(func() { close(c.done) })
}

// NewHub creates a hub. The registry is injected so tests and a future
// clustered backend can supply their own.
func NewHub(jwtSecret string, members MembershipChecker, registry *Registry) *Hub {
	return &Hub{
		jwtSecret: jwtSecret,
		members:   members,
		registry:  registry,
		conns:     make(map[uuid.UUID]*conn),
	}
}

// ServeTasks handles WebSocket connections for live task updates. The access
// token is resolved before the upgrade; a bad credential fails the
// connection, not just later operations.
func (h *Hub) ServeTasks(w http.ResponseWriter, r *http.Request) {
	identity, err := ResolveIdentity(r, h.jwtSecret)
	if err != nil {
		http.Error(w, "invalid or missing credentials", http.StatusUnauthorized)
		return
	}

	sock, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer sock.CloseNow()

	c := &conn{
		id:       uuid.New(),
		identity: identity,
		sock:     sock,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
	h.registry.AddConnection(c.id)

	log.Info().
		Str("conn_id", c.id.String()).
		Str("user_id", identity.UserID.String()).
		Str("user", identity.FullName).
		Msg("user connected")

	ctx := r.Context()
	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)

	h.drop(c)

	log.Info().
		Str("conn_id", c.id.String()).
		Str("user_id", identity.UserID.String()).
		Msg("user disconnected")
}

// Publish delivers the event to every connection in its channel. Presence
// events skip the originating connection; entity events reach everyone,
// including the originator. Fire-and-forget: the caller does not wait for
// deliveries to land.
func (h *Hub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("event marshal")
		return
	}

	h.publishMu.Lock()
	defer h.publishMu.Unlock()

	for _, id := range h.registry.Members(event.Channel()) {
		if event.Type.Presence() && id == event.origin {
			continue
		}
		c := h.conn(id)
		if c == nil {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Warn().
				Str("conn_id", id.String()).
				Str("channel", event.Channel()).
				Msg("send queue full, dropping connection")
			c.close()
		}
	}
}

func (h *Hub) conn(id uuid.UUID) *conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[id]
}

func (h *Hub) writeLoop(ctx context.Context, c *conn) {
	for {
		select {
		case <-ctx.Done():
			_ = c.sock.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case <-c.done:
			_ = c.sock.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg := <-c.send:
			if err := c.sock.Write(ctx, websocket.MessageText, msg); err != nil {
				log.Debug().Err(err).Msg("websocket write")
				c.close()
				return
			}
		}
	}
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	for {
		select {
		case <-c.done:
			return
		default:
		}

		_, data, err := c.sock.Read(ctx)
		if err != nil {
			return
		}

		var op ClientOp
		if err := json.Unmarshal(data, &op); err != nil {
			h.sendError(c, "malformed operation")
			continue
		}

		switch op.Op {
		case OpJoinProject:
			h.handleJoin(ctx, c, op.ProjectID)
		case OpLeaveProject:
			h.handleLeave(c, op.ProjectID)
		case OpTyping:
			h.publishPresence(EventUserTyping, c, op.ProjectID, op.TaskID)
		case OpStoppedTyping:
			h.publishPresence(EventUserStoppedTyping, c, op.ProjectID, op.TaskID)
		default:
			h.sendError(c, "unknown operation: "+op.Op)
		}
	}
}

func (h *Hub) handleJoin(ctx context.Context, c *conn, projectID uuid.UUID) {
	if projectID == uuid.Nil {
		h.sendError(c, "invalid project id")
		return
	}

	ok, err := h.members.IsMember(ctx, projectID, c.identity.UserID)
	if err != nil {
		log.Error().Err(err).
			Str("project_id", projectID.String()).
			Str("user_id", c.identity.UserID.String()).
			Msg("membership check failed")
		h.sendError(c, "membership check failed")
		return
	}
	if !ok {
		log.Warn().
			Str("project_id", projectID.String()).
			Str("user_id", c.identity.UserID.String()).
			Msg("join rejected: not a member")
		h.sendError(c, "you are not a member of this project")
		return
	}

	// Join can return false if the connection dropped while the membership
	// check was in flight; the dead connection never gains membership.
	if !h.registry.Join(c.id, ChannelName(projectID)) {
		return
	}

	log.Info().
		Str("project_id", projectID.String()).
		Str("user_id", c.identity.UserID.String()).
		Msg("joined project channel")

	h.publishPresence(EventUserJoined, c, projectID, uuid.Nil)
}

func (h *Hub) handleLeave(c *conn, projectID uuid.UUID) {
	// Idempotent: leaving a channel that was never joined is a no-op.
	if !h.registry.Leave(c.id, ChannelName(projectID)) {
		return
	}

	log.Info().
		Str("project_id", projectID.String()).
		Str("user_id", c.identity.UserID.String()).
		Msg("left project channel")

	h.publishPresence(EventUserLeft, c, projectID, uuid.Nil)
}

// publishPresence emits a presence event to the other members of the
// project's channel. Typing indicators from connections that never joined
// the channel are ignored.
func (h *Hub) publishPresence(t EventType, c *conn, projectID, taskID uuid.UUID) {
	if t == EventUserTyping || t == EventUserStoppedTyping {
		if !h.registry.InChannel(c.id, ChannelName(projectID)) {
			return
		}
	}

	event, err := NewEvent(t, projectID, EntityMember, taskID, nil, c.identity)
	if err != nil {
		log.Error().Err(err).Msg("presence event")
		return
	}
	if taskID != uuid.Nil {
		event.Entity = EntityTask
	}
	event.origin = c.id

	h.Publish(event)
}

func (h *Hub) sendError(c *conn, detail string) {
	event, err := NewEvent(EventError, uuid.Nil, "", uuid.Nil, map[string]string{"detail": detail}, c.identity)
	if err != nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// drop removes the connection from the hub and its channels, notifying the
// remaining members of each channel it was in.
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()

	channels := h.registry.RemoveConnection(c.id)
	c.close()

	for _, ch := range channels {
		projectID, ok := projectFromChannel(ch)
		if !ok {
			continue
		}
		event, err := NewEvent(EventUserLeft, projectID, EntityMember, uuid.Nil, nil, c.identity)
		if err != nil {
			continue
		}
		event.origin = c.id
		h.Publish(event)
	}
}

func projectFromChannel(channel string) (uuid.UUID, bool) {
	const prefix = "project:"
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(channel[len(prefix):])
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
