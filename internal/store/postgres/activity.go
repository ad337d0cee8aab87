package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskflow-io/taskflow/internal/domain"
)

type ActivityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

func (r *ActivityRepo) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("activityRepo.Append: marshal metadata: %w", err)
		}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_log (id, project_id, actor_id, action, entity_type, entity_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ProjectID, entry.ActorID, entry.Action,
		entry.EntityType, entry.EntityID, metadata, entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.Append: %w", err)
	}

	return nil
}

func (r *ActivityRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*domain.ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx,
		`SELECT a.id, a.project_id, a.actor_id, u.full_name, a.action, a.entity_type, a.entity_id, a.metadata, a.created_at
		 FROM activity_log a
		 JOIN users u ON u.id = a.actor_id
		 WHERE a.project_id = $1
		 ORDER BY a.created_at DESC, a.id DESC
		 LIMIT $2 OFFSET $3`,
		projectID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListByProject: %w", err)
	}
	defer rows.Close()

	var entries []*domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		var metadata []byte

		err = rows.Scan(&e.ID, &e.ProjectID, &e.ActorID, &e.ActorName, &e.Action,
			&e.EntityType, &e.EntityID, &metadata, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("activityRepo.ListByProject: scan: %w", err)
		}

		if len(metadata) > 0 {
			err = json.Unmarshal(metadata, &e.Metadata)
			if err != nil {
				return nil, fmt.Errorf("activityRepo.ListByProject: unmarshal metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("activityRepo.ListByProject: rows: %w", err)
	}

	return entries, nil
}
