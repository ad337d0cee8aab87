package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProjectRole string

const (
	RoleOwner  ProjectRole = "owner"
	RoleAdmin  ProjectRole = "admin"
	RoleMember ProjectRole = "member"
	RoleViewer ProjectRole = "viewer"
)

// Valid reports whether the role is one of the known project roles.
func (r ProjectRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

// CanManageMembers reports whether the role may add or remove project members.
func (r ProjectRole) CanManageMembers() bool {
	return r == RoleOwner || r == RoleAdmin
}

type ProjectMember struct {
	ProjectID uuid.UUID   `json:"project_id"`
	UserID    uuid.UUID   `json:"user_id"`
	FullName  string      `json:"full_name"`
	Role      ProjectRole `json:"role"`
	JoinedAt  time.Time   `json:"joined_at"`
}

type MemberRepository interface {
	Add(ctx context.Context, m *ProjectMember) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*ProjectMember, error)
	Get(ctx context.Context, projectID, userID uuid.UUID) (*ProjectMember, error)
	UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role ProjectRole) error
	Remove(ctx context.Context, projectID, userID uuid.UUID) error
	IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}
