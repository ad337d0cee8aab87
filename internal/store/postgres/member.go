package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow-io/taskflow/internal/domain"
)

type MemberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

func (r *MemberRepo) Add(ctx context.Context, m *domain.ProjectMember) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO project_members (project_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4)`,
		m.ProjectID, m.UserID, m.Role, m.JoinedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("memberRepo.Add: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("memberRepo.Add: %w", err)
	}

	return nil
}

func (r *MemberRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.project_id, m.user_id, u.full_name, m.role, m.joined_at
		 FROM project_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = $1
		 ORDER BY m.joined_at, m.user_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	var members []*domain.ProjectMember
	for rows.Next() {
		var m domain.ProjectMember
		err = rows.Scan(&m.ProjectID, &m.UserID, &m.FullName, &m.Role, &m.JoinedAt)
		if err != nil {
			return nil, fmt.Errorf("memberRepo.ListByProject: scan: %w", err)
		}
		members = append(members, &m)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("memberRepo.ListByProject: rows: %w", err)
	}

	return members, nil
}

func (r *MemberRepo) Get(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error) {
	var m domain.ProjectMember

	err := r.pool.QueryRow(ctx,
		`SELECT m.project_id, m.user_id, u.full_name, m.role, m.joined_at
		 FROM project_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.project_id = $1 AND m.user_id = $2`,
		projectID, userID,
	).Scan(&m.ProjectID, &m.UserID, &m.FullName, &m.Role, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("memberRepo.Get: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("memberRepo.Get: %w", err)
	}

	return &m, nil
}

func (r *MemberRepo) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role domain.ProjectRole) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE project_members SET role = $1
		 WHERE project_id = $2 AND user_id = $3`,
		role, projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.UpdateRole: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memberRepo.UpdateRole: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *MemberRepo) Remove(ctx context.Context, projectID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("memberRepo.Remove: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("memberRepo.Remove: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *MemberRepo) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	var exists bool

	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2
		 )`,
		projectID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("memberRepo.IsMember: %w", err)
	}

	return exists, nil
}
