package v1

import (
	"context"

	"github.com/google/uuid"

	"github.com/taskflow-io/taskflow/internal/auth"
	"github.com/taskflow-io/taskflow/internal/domain"
	"github.com/taskflow-io/taskflow/internal/realtime"
)

// DataStore abstracts the repository accessor pattern for handler testing.
// *postgres.Store satisfies this interface.
type DataStore interface {
	Users() domain.UserRepository
	Projects() domain.ProjectRepository
	Members() domain.MemberRepository
	Tasks() domain.TaskRepository
	Comments() domain.CommentRepository
	Activity() domain.ActivityRepository
}

// AuthService abstracts authentication operations for handler testing.
// *auth.Service satisfies this interface.
type AuthService interface {
	Register(ctx context.Context, email, password, fullName string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

// Publisher fans a broadcast event out to subscribed connections.
// *realtime.Hub satisfies this interface.
type Publisher interface {
	Publish(event realtime.Event)
}

// Recorder appends audit entries for audited events.
// *realtime.Recorder satisfies this interface.
type Recorder interface {
	Record(ctx context.Context, event realtime.Event, metadata map[string]any)
}

// Cache is the best-effort read cache. *redis.Cache satisfies this
// interface; a nil-returning noop stands in when Redis is not configured.
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any)
	Invalidate(ctx context.Context, keys ...string)
}

// NoopCache is used when no Redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string, any) bool { return false }
func (NoopCache) Set(context.Context, string, any)      {}
func (NoopCache) Invalidate(context.Context, ...string) {}
