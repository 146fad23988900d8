package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/google/uuid"
)

func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, user_id, name, status, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.UserID, &project.Name, &project.Status,
		&project.CreatedAt, &project.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// CompleteProjectIfAllReelsDone propagates reel completion to the outer
// project aggregate: the project flips to completed only once every reel it
// owns is completed. The subquery guard makes concurrent calls harmless.
func (db *DB) CompleteProjectIfAllReelsDone(ctx context.Context, projectID uuid.UUID) (bool, error) {
	query := `
		UPDATE projects
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		  AND status <> $1
		  AND NOT EXISTS (
			SELECT 1 FROM reels
			WHERE project_id = $2 AND status <> $3
		  )
	`

	result, err := db.ExecContext(ctx, query, models.ProjectStatusCompleted, projectID, models.ReelStatusCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to complete project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows > 0, nil
}
