package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflow-io/taskflow/internal/realtime"
)

// wsCapture is a bare websocket endpoint that records every client op and
// exposes the server side of each connection so tests can kill it.
type wsCapture struct {
	server *httptest.Server
	ops    chan realtime.ClientOp
	conns  chan *websocket.Conn
}

func newWSCapture(t *testing.T) *wsCapture {
	t.Helper()

	srv := &wsCapture{
		ops:   make(chan realtime.ClientOp, 32),
		conns: make(chan *websocket.Conn, 8),
	}

	srv.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sock, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		srv.conns <- sock

		for {
			_, data, err := sock.Read(r.Context())
			if err != nil {
				return
			}
			var op realtime.ClientOp
			if json.Unmarshal(data, &op) == nil {
				srv.ops <- op
			}
		}
	}))
	t.Cleanup(srv.server.Close)
	return srv
}

func (c *wsCapture) nextConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case sock := <-c.conns:
		return sock
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func (c *wsCapture) nextOp(t *testing.T) realtime.ClientOp {
	t.Helper()
	select {
	case op := <-c.ops:
		return op
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for client op")
		return realtime.ClientOp{}
	}
}

func awaitState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", want)
		}
	}
}

func newTestClient(server *httptest.Server, states chan State) *Client {
	return New(Config{
		URL:        server.URL,
		MaxRetries: 3,
		RetryDelay: 10 * time.Millisecond,
		OnStateChange: func(s State) {
			select {
			case states <- s:
			default:
			}
		},
	})
}

func TestClientSendsOpsBeforeAndAfterJoin(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	c := New(Config{URL: srv.server.URL})
	ctx := context.Background()

	projectID := uuid.New()
	require.ErrorIs(t, c.JoinProject(ctx, projectID), ErrNotConnected)

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	srv.nextConn(t)

	require.NoError(t, c.JoinProject(ctx, projectID))
	op := srv.nextOp(t)
	assert.Equal(t, realtime.OpJoinProject, op.Op)
	assert.Equal(t, projectID, op.ProjectID)
	assert.Equal(t, []uuid.UUID{projectID}, c.Joined())

	taskID := uuid.New()
	require.NoError(t, c.Typing(ctx, projectID, taskID))
	op = srv.nextOp(t)
	assert.Equal(t, realtime.OpTyping, op.Op)
	assert.Equal(t, taskID, op.TaskID)

	require.NoError(t, c.LeaveProject(ctx, projectID))
	op = srv.nextOp(t)
	assert.Equal(t, realtime.OpLeaveProject, op.Op)
	assert.Empty(t, c.Joined())
}

func TestClientDispatchesInboundEvents(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	c := New(Config{URL: srv.server.URL})
	ctx := context.Background()

	got := make(chan realtime.Event, 1)
	c.Bus().Subscribe(realtime.EventTaskCreated, func(e realtime.Event) { got <- e })

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	server := srv.nextConn(t)

	event := realtime.Event{Type: realtime.EventTaskCreated, ProjectID: uuid.New(), EntityID: uuid.New()}
	data, err := json.Marshal(event)
	require.NoError(t, err)
	require.NoError(t, server.Write(ctx, websocket.MessageText, data))

	select {
	case e := <-got:
		assert.Equal(t, event.ProjectID, e.ProjectID)
		assert.Equal(t, event.EntityID, e.EntityID)
	case <-time.After(3 * time.Second):
		t.Fatal("event not dispatched")
	}
}

func TestClientReconnectRejoinsHeldChannels(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	states := make(chan State, 16)
	c := newTestClient(srv.server, states)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	defer c.Close()
	first := srv.nextConn(t)
	awaitState(t, states, StateConnected)

	held := uuid.New()
	left := uuid.New()
	require.NoError(t, c.JoinProject(ctx, held))
	require.NoError(t, c.JoinProject(ctx, left))
	require.NoError(t, c.LeaveProject(ctx, left))
	for range 3 {
		srv.nextOp(t)
	}

	// Kill the transport out from under the client.
	_ = first.Close(websocket.StatusInternalError, "test kill")

	awaitState(t, states, StateReconnecting)
	srv.nextConn(t)
	awaitState(t, states, StateConnected)

	// Exactly the channels held at disconnect time are re-established, not
	// the ones left beforehand.
	op := srv.nextOp(t)
	assert.Equal(t, realtime.OpJoinProject, op.Op)
	assert.Equal(t, held, op.ProjectID)

	select {
	case extra := <-srv.ops:
		t.Fatalf("unexpected extra op after rejoin: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientFailsAfterRetryBudget(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	states := make(chan State, 16)
	c := newTestClient(srv.server, states)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	first := srv.nextConn(t)
	awaitState(t, states, StateConnected)

	// No server left to reconnect to.
	srv.server.Close()
	_ = first.Close(websocket.StatusInternalError, "test kill")

	awaitState(t, states, StateFailed)
	assert.Equal(t, StateFailed, c.State())
	require.ErrorIs(t, c.JoinProject(ctx, uuid.New()), ErrNotConnected)
}

func TestClientCloseSuppressesReconnect(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	states := make(chan State, 16)
	c := newTestClient(srv.server, states)
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	srv.nextConn(t)
	awaitState(t, states, StateConnected)

	require.NoError(t, c.JoinProject(ctx, uuid.New()))
	require.NoError(t, c.Close())
	awaitState(t, states, StateDisconnected)

	assert.Empty(t, c.Joined(), "deliberate close discards channel state")

	// The read loop observed the close; no new dial should arrive.
	select {
	case <-srv.conns:
		t.Fatal("client reconnected after deliberate close")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientCloseDuringReconnectStopsRetries(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	states := make(chan State, 16)
	c := New(Config{
		URL:        srv.server.URL,
		MaxRetries: 5,
		RetryDelay: 150 * time.Millisecond,
		OnStateChange: func(s State) {
			select {
			case states <- s:
			default:
			}
		},
	})
	ctx := context.Background()

	require.NoError(t, c.Connect(ctx))
	first := srv.nextConn(t)
	awaitState(t, states, StateConnected)

	// Kill the transport, then close deliberately while the client is still
	// waiting out the retry delay.
	_ = first.Close(websocket.StatusInternalError, "test kill")
	awaitState(t, states, StateReconnecting)
	require.NoError(t, c.Close())
	awaitState(t, states, StateDisconnected)

	// The retry loop must observe the close and stop dialing; give it several
	// retry windows to misbehave in.
	select {
	case <-srv.conns:
		t.Fatal("client reconnected after deliberate close")
	case <-time.After(500 * time.Millisecond):
	}

	assert.Equal(t, StateDisconnected, c.State())
	require.ErrorIs(t, c.JoinProject(ctx, uuid.New()), ErrNotConnected)
}

func TestClientCloseIdempotentOnDeadSocket(t *testing.T) {
	t.Parallel()

	srv := newWSCapture(t)
	states := make(chan State, 16)
	c := New(Config{
		URL:        srv.server.URL,
		MaxRetries: 5,
		RetryDelay: 150 * time.Millisecond,
		OnStateChange: func(s State) {
			select {
			case states <- s:
			default:
			}
		},
	})

	require.NoError(t, c.Connect(context.Background()))
	first := srv.nextConn(t)
	awaitState(t, states, StateConnected)

	// The held socket is already dead when Close runs.
	_ = first.Close(websocket.StatusInternalError, "test kill")
	awaitState(t, states, StateReconnecting)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "repeated close stays clean")
}
