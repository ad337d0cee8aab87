package realtime

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/taskflow-io/taskflow/internal/auth"
)

// TokenCookie is the same-origin cookie carrying the access token for
// browser connections. Transports that cannot send cookies pass the token as
// the access_token query parameter on the upgrade URL instead.
const TokenCookie = "taskflow_token"

// ErrNoCredentials is returned when a connection attempt carries no token at
// all.
var ErrNoCredentials = errors.New("realtime: missing credentials")

// ResolveIdentity extracts a verified identity from an upgrade request.
// Fails closed: a malformed or expired token rejects the connection outright
// rather than admitting it with restricted rights.
func ResolveIdentity(r *http.Request, jwtSecret string) (Identity, error) {
	token := ""
	if c, err := r.Cookie(TokenCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		return Identity{}, ErrNoCredentials
	}

	claims, err := auth.ValidateAccessToken(jwtSecret, token)
	if err != nil {
		return Identity{}, fmt.Errorf("realtime.ResolveIdentity: %w", err)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("realtime.ResolveIdentity: invalid user id: %w", auth.ErrInvalidToken)
	}

	return Identity{UserID: userID, FullName: claims.FullName}, nil
}
