package client

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// authedBackend is a test server that accepts only the current access token
// and rotates the pair on refresh.
type authedBackend struct {
	mu       sync.Mutex
	access   string
	refresh  string
	refreshN atomic.Int64
	// refreshDelay holds the refresh handler open so concurrent 401s pile up
	// behind the in-flight call.
	refreshDelay time.Duration
	refreshFail  bool

	server *httptest.Server
}

func newAuthedBackend(t *testing.T, access, refresh string) *authedBackend {
	t.Helper()

	b := &authedBackend{access: access, refresh: refresh}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshN.Add(1)
		time.Sleep(b.refreshDelay)

		if b.refreshFail {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		b.mu.Lock()
		if req.RefreshToken != b.refresh {
			b.mu.Unlock()
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		b.access += "+"
		b.refresh += "+"
		pair := map[string]string{"access_token": b.access, "refresh_token": b.refresh}
		b.mu.Unlock()

		_ = json.NewEncoder(w).Encode(pair)
	})

	mux.HandleFunc("POST /v1/echo", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		want := "Bearer " + b.access
		b.mu.Unlock()

		if r.Header.Get("Authorization") != want {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.Copy(w, r.Body)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *authedBackend) client(onExpired func()) *http.Client {
	return &http.Client{Transport: &AuthTransport{
		Store:            NewTokenStore("stale", b.refresh),
		RefreshURL:       b.server.URL + "/v1/auth/refresh",
		OnSessionExpired: onExpired,
	}}
}

func TestAuthTransportRefreshAndRetry(t *testing.T) {
	t.Parallel()

	backend := newAuthedBackend(t, "acc-1", "ref-1")
	httpc := backend.client(nil)

	// First request carries a stale token, gets 401, refreshes, replays with
	// its original body, and succeeds.
	resp, err := httpc.Post(backend.server.URL+"/v1/echo", "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, int64(1), backend.refreshN.Load())
}

func TestAuthTransportSingleFlight(t *testing.T) {
	t.Parallel()

	const concurrency = 8

	backend := newAuthedBackend(t, "acc-1", "ref-1")
	backend.refreshDelay = 100 * time.Millisecond
	httpc := backend.client(nil)

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make(chan error, concurrency)

	for range concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			resp, err := httpc.Post(backend.server.URL+"/v1/echo", "text/plain", strings.NewReader("x"))
			if err != nil {
				errs <- err
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- assert.AnError
			}
		}()
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("request failed: %v", err)
	}
	assert.Equal(t, int64(1), backend.refreshN.Load(),
		"concurrent expiries must collapse into one refresh call")
}

func TestAuthTransportTerminalFailure(t *testing.T) {
	t.Parallel()

	backend := newAuthedBackend(t, "acc-1", "ref-1")
	backend.refreshFail = true

	var expired atomic.Int64
	httpc := backend.client(func() { expired.Add(1) })

	_, err := httpc.Post(backend.server.URL+"/v1/echo", "text/plain", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrSessionExpired)

	// Everything after the terminal failure short-circuits without touching
	// the network.
	_, err = httpc.Post(backend.server.URL+"/v1/echo", "text/plain", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrSessionExpired)

	assert.Equal(t, int64(1), expired.Load(), "expiry callback fires exactly once")
	assert.Equal(t, int64(1), backend.refreshN.Load())
}

func TestTokenStore(t *testing.T) {
	t.Parallel()

	store := NewTokenStore("a1", "r1")
	assert.Equal(t, "a1", store.Access())

	store.Set("a2", "r2")
	assert.Equal(t, "a2", store.Access())
	assert.Equal(t, "r2", store.refreshToken())

	store.Clear()
	assert.Empty(t, store.Access())
	assert.Empty(t, store.refreshToken())
}
