package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned once credential refresh has terminally
// failed. Every queued and subsequent request gets this error rather than
// hanging.
var ErrSessionExpired = errors.New("client: session expired")

// TokenStore holds the current access/refresh credential pair.
type TokenStore struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func NewTokenStore(access, refresh string) *TokenStore {
	return &TokenStore{access: access, refresh: refresh}
}

// Access returns the current access token.
func (s *TokenStore) Access() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access
}

// Set replaces both credentials. Rotation: the previous refresh token is
// already invalid server-side once the new pair is issued.
func (s *TokenStore) Set(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = access
	s.refresh = refresh
}

// Clear discards both credentials.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = ""
	s.refresh = ""
}

func (s *TokenStore) refreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh
}

// AuthTransport injects the access token into outgoing requests and, on an
// authentication failure, refreshes the credential pair and retries the
// request exactly once. Refresh is single-flight: concurrent 401s queue
// behind one refresh call and are all replayed (or all rejected) when it
// settles. A failed refresh is terminal for the session.
type AuthTransport struct {
	// Base is the underlying transport; http.DefaultTransport when nil.
	Base http.RoundTripper
	// Store holds the credential pair.
	Store *TokenStore
	// RefreshURL is the token exchange endpoint.
	RefreshURL string
	// OnSessionExpired is invoked once when refresh terminally fails, so the
	// surrounding application can force a logout and discard channel state.
	OnSessionExpired func()

	group   singleflight.Group
	expired atomic.Bool
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.expired.Load() {
		return nil, ErrSessionExpired
	}

	resp, err := t.send(req, t.Store.Access())
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Replaying a request needs a fresh body; without GetBody the original
	// 401 is all we can return.
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if _, err, _ := t.group.Do("refresh", t.refresh); err != nil {
		if t.expired.CompareAndSwap(false, true) {
			t.Store.Clear()
			log.Warn().Err(err).Msg("credential refresh failed, session expired")
			if t.OnSessionExpired != nil {
				t.OnSessionExpired()
			}
		}
		return nil, ErrSessionExpired
	}

	// Retry exactly once with the rotated access token.
	return t.send(req, t.Store.Access())
}

// send issues the request with the given bearer token, rebuilding the body
// for replays.
func (t *AuthTransport) send(req *http.Request, token string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("client.AuthTransport: %w", err)
		}
		clone.Body = body
	}
	if token != "" {
		clone.Header.Set("Authorization", "Bearer "+token)
	}
	return t.base().RoundTrip(clone)
}

// refresh exchanges the rotating refresh credential for a new pair.
func (t *AuthTransport) refresh() (any, error) {
	refreshToken := t.Store.refreshToken()
	if refreshToken == "" {
		return nil, errors.New("no refresh token")
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, t.RefreshURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("refresh rejected: status %d", resp.StatusCode)
	}

	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, errors.New("refresh response missing tokens")
	}

	t.Store.Set(pair.AccessToken, pair.RefreshToken)
	return nil, nil
}
