package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/google/uuid"
)

func (db *DB) CreateRenderStep(ctx context.Context, step *models.RenderStep) error {
	query := `
		INSERT INTO render_steps (
			id, reel_id, strategy, status, attempts
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return db.QueryRowContext(
		ctx, query,
		step.ID, step.ReelID, step.Strategy, step.Status, step.Attempts,
	).Scan(&step.CreatedAt)
}

func (db *DB) GetRenderStep(ctx context.Context, id uuid.UUID) (*models.RenderStep, error) {
	query := `
		SELECT
			id, reel_id, strategy, status, attempts,
			result_asset_id, error_message, started_at, finished_at, created_at
		FROM render_steps
		WHERE id = $1
	`

	step := &models.RenderStep{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&step.ID, &step.ReelID, &step.Strategy, &step.Status, &step.Attempts,
		&step.ResultAssetID, &step.ErrorMessage, &step.StartedAt,
		&step.FinishedAt, &step.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("render step %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get render step: %w", err)
	}

	return step, nil
}

func (db *DB) GetReelSteps(ctx context.Context, reelID uuid.UUID) ([]models.RenderStep, error) {
	query := `
		SELECT
			id, reel_id, strategy, status, attempts,
			result_asset_id, error_message, started_at, finished_at, created_at
		FROM render_steps
		WHERE reel_id = $1
		ORDER BY created_at
	`

	rows, err := db.QueryContext(ctx, query, reelID)
	if err != nil {
		return nil, fmt.Errorf("failed to query render steps: %w", err)
	}
	defer rows.Close()

	var steps []models.RenderStep
	for rows.Next() {
		var step models.RenderStep
		err := rows.Scan(
			&step.ID, &step.ReelID, &step.Strategy, &step.Status, &step.Attempts,
			&step.ResultAssetID, &step.ErrorMessage, &step.StartedAt,
			&step.FinishedAt, &step.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, nil
}

// MarkStepStarted bumps the attempt counter and stamps started_at when an
// attempt begins processing the step. Unconditional; every attempt records
// itself; the conditional gate lives in UpdateStepStatusIfProcessing.
func (db *DB) MarkStepStarted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE render_steps
		SET attempts = attempts + 1, started_at = $1
		WHERE id = $2
	`
	_, err := db.ExecContext(ctx, query, time.Now(), id)
	return err
}

// UpdateStepStatusIfProcessing is the single idempotency gate of the
// finalization protocol: it transitions the step out of "processing" only if
// no other attempt has already done so, and reports whether this call won.
// A retried attempt that finds the step already success/failed gets false
// and must skip every subsequent side effect.
func (db *DB) UpdateStepStatusIfProcessing(ctx context.Context, id uuid.UUID, status models.StepStatus, resultAssetID *uuid.UUID, errorMessage *string) (bool, error) {
	query := `
		UPDATE render_steps
		SET status = $1, result_asset_id = $2, error_message = $3, finished_at = $4
		WHERE id = $5 AND status = $6
	`

	result, err := db.ExecContext(ctx, query, status, resultAssetID, errorMessage, time.Now(), id, models.StepStatusProcessing)
	if err != nil {
		return false, fmt.Errorf("failed to update step status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows > 0, nil
}
