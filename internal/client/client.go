package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taskflow-io/taskflow/internal/realtime"
)

// State is the connection lifecycle state. Channel membership tracked here is
// only trusted while Connected; every transition back to Connected re-issues
// joins for the held set.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 3 * time.Second
)

// ErrNotConnected is returned for operations that need a live connection.
var ErrNotConnected = errors.New("client: not connected")

// Config configures a realtime client.
type Config struct {
	// URL of the upgrade endpoint, e.g. "ws://localhost:8080/ws/tasks".
	URL string
	// Token supplies the current access token, delivered as the access_token
	// query parameter since this transport carries no cookies.
	Token func() string
	// MaxRetries bounds reconnection attempts before giving up.
	MaxRetries int
	// RetryDelay is the fixed delay between reconnection attempts.
	RetryDelay time.Duration
	// OnStateChange, when set, observes every lifecycle transition.
	OnStateChange func(State)
}

// Client is one persistent connection to the broadcast service. It owns the
// lifecycle state machine: reconnects with bounded retries on transport
// loss, rejoins held channels after every reconnect, and degrades to "no
// live updates" (StateFailed) when the retry budget is exhausted.
type Client struct {
	cfg Config
	bus *Bus

	mu     sync.Mutex
	state  State
	sock   *websocket.Conn
	joined map[uuid.UUID]struct{}
	closed bool
}

func New(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Client{
		cfg:    cfg,
		bus:    NewBus(),
		state:  StateDisconnected,
		joined: make(map[uuid.UUID]struct{}),
	}
}

// Bus returns the event bus inbound events are dispatched on.
func (c *Client) Bus() *Bus { return c.bus }

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the connection and starts dispatching events.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)

	sock, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return fmt.Errorf("client.Connect: %w", err)
	}

	c.mu.Lock()
	c.sock = sock
	c.closed = false
	c.mu.Unlock()
	c.setState(StateConnected)

	go c.readLoop(ctx, sock)
	return nil
}

// Close tears the connection down and discards tracked channel membership.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.joined = make(map[uuid.UUID]struct{})
	sock := c.sock
	c.sock = nil
	c.mu.Unlock()

	c.setState(StateDisconnected)
	if sock != nil {
		// The transport may already be dead (server kill, lost network).
		// Closing it again is a no-op, not an error worth surfacing.
		if err := sock.Close(websocket.StatusNormalClosure, "client closed"); err != nil {
			log.Debug().Err(err).Msg("close on dead socket")
		}
	}
	return nil
}

// JoinProject subscribes to a project's channel. The channel is tracked
// client-side so it is rejoined after a reconnect.
func (c *Client) JoinProject(ctx context.Context, projectID uuid.UUID) error {
	if err := c.sendOp(ctx, realtime.ClientOp{Op: realtime.OpJoinProject, ProjectID: projectID}); err != nil {
		return err
	}
	c.mu.Lock()
	c.joined[projectID] = struct{}{}
	c.mu.Unlock()
	return nil
}

// LeaveProject unsubscribes from a project's channel.
func (c *Client) LeaveProject(ctx context.Context, projectID uuid.UUID) error {
	c.mu.Lock()
	delete(c.joined, projectID)
	c.mu.Unlock()
	return c.sendOp(ctx, realtime.ClientOp{Op: realtime.OpLeaveProject, ProjectID: projectID})
}

// Typing emits a typing indicator to the other members of the project.
func (c *Client) Typing(ctx context.Context, projectID, taskID uuid.UUID) error {
	return c.sendOp(ctx, realtime.ClientOp{Op: realtime.OpTyping, ProjectID: projectID, TaskID: taskID})
}

// StoppedTyping clears a typing indicator.
func (c *Client) StoppedTyping(ctx context.Context, projectID, taskID uuid.UUID) error {
	return c.sendOp(ctx, realtime.ClientOp{Op: realtime.OpStoppedTyping, ProjectID: projectID, TaskID: taskID})
}

// Joined returns the project channels currently tracked as held.
func (c *Client) Joined() []uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]uuid.UUID, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	return out
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	target := c.cfg.URL
	if c.cfg.Token != nil {
		if tok := c.cfg.Token(); tok != "" {
			sep := "?"
			if u, err := url.Parse(target); err == nil && u.RawQuery != "" {
				sep = "&"
			}
			target += sep + "access_token=" + url.QueryEscape(tok)
		}
	}

	sock, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return nil, err
	}
	return sock, nil
}

func (c *Client) sendOp(ctx context.Context, op realtime.ClientOp) error {
	c.mu.Lock()
	sock := c.sock
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || sock == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("client.sendOp: %w", err)
	}
	if err := sock.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("client.sendOp: %w", err)
	}
	return nil
}

func (c *Client) readLoop(ctx context.Context, sock *websocket.Conn) {
	for {
		_, data, err := sock.Read(ctx)
		if err != nil {
			break
		}

		var event realtime.Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Debug().Err(err).Msg("malformed event")
			continue
		}
		c.bus.publish(event)
	}

	c.mu.Lock()
	stale := c.closed || c.sock != sock
	c.mu.Unlock()
	if stale {
		return
	}

	c.reconnect(ctx)
}

// reconnect retries with a fixed delay up to the configured budget. Events
// that occurred while disconnected are missed, not replayed; callers
// re-fetch their data views after reconnecting.
func (c *Client) reconnect(ctx context.Context) {
	c.setState(StateReconnecting)

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if c.isClosed() {
			c.setState(StateDisconnected)
			return
		}

		select {
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return
		case <-time.After(c.cfg.RetryDelay):
		}

		sock, err := c.dial(ctx)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			continue
		}

		c.mu.Lock()
		// Close may have raced the dial; a closed client never adopts a new
		// socket.
		if c.closed {
			c.mu.Unlock()
			_ = sock.Close(websocket.StatusNormalClosure, "client closed")
			c.setState(StateDisconnected)
			return
		}
		c.sock = sock
		held := make([]uuid.UUID, 0, len(c.joined))
		for id := range c.joined {
			held = append(held, id)
		}
		c.mu.Unlock()
		c.setState(StateConnected)

		// Server-side membership died with the old connection; re-establish
		// exactly the channels held at disconnect time.
		for _, projectID := range held {
			if err := c.sendOp(ctx, realtime.ClientOp{Op: realtime.OpJoinProject, ProjectID: projectID}); err != nil {
				log.Warn().Err(err).Str("project_id", projectID.String()).Msg("rejoin failed")
			}
		}

		go c.readLoop(ctx, sock)
		return
	}

	log.Error().Int("attempts", c.cfg.MaxRetries).Msg("reconnect budget exhausted, live updates unavailable")
	c.setState(StateFailed)
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	cb := c.cfg.OnStateChange
	c.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}
