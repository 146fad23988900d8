package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func (db *DB) CreateReel(ctx context.Context, reel *models.Reel) error {
	optionsJSON, err := json.Marshal(reel.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal reel options: %w", err)
	}

	query := `
		INSERT INTO reels (
			id, project_id, user_id, title, status, bucket,
			audio_ref, caption_ref, music_ref, visual_refs, options
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		reel.ID, reel.ProjectID, reel.UserID, reel.Title, reel.Status,
		reel.Bucket, reel.AudioRef, reel.CaptionRef, reel.MusicRef,
		pq.Array(reel.VisualRefs), optionsJSON,
	).Scan(&reel.CreatedAt, &reel.UpdatedAt)
}

func (db *DB) GetReel(ctx context.Context, id uuid.UUID) (*models.Reel, error) {
	query := `
		SELECT
			id, project_id, user_id, title, status, bucket,
			audio_ref, caption_ref, music_ref, visual_refs, options,
			final_video_asset_id, error_message, created_at, updated_at
		FROM reels
		WHERE id = $1
	`

	reel := &models.Reel{}
	var optionsJSON []byte
	err := db.QueryRowContext(ctx, query, id).Scan(
		&reel.ID, &reel.ProjectID, &reel.UserID, &reel.Title, &reel.Status,
		&reel.Bucket, &reel.AudioRef, &reel.CaptionRef, &reel.MusicRef,
		pq.Array(&reel.VisualRefs), &optionsJSON,
		&reel.FinalVideoAssetID, &reel.ErrorMessage,
		&reel.CreatedAt, &reel.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("reel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reel: %w", err)
	}

	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &reel.Options); err != nil {
			return nil, fmt.Errorf("failed to parse reel options: %w", err)
		}
	}

	return reel, nil
}

func (db *DB) UpdateReelStatus(ctx context.Context, id uuid.UUID, status models.ReelStatus) error {
	query := `UPDATE reels SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := db.ExecContext(ctx, query, status, id)
	return err
}

// CompleteReelIfNotCompleted conditionally finalizes the parent reel. It
// applies only when the reel is not already completed, guarding against two
// concurrent successful attempts double-finalizing. Reports whether this
// call won the transition.
func (db *DB) CompleteReelIfNotCompleted(ctx context.Context, id uuid.UUID, finalVideoAssetID uuid.UUID) (bool, error) {
	query := `
		UPDATE reels
		SET status = $1, final_video_asset_id = $2, error_message = NULL, updated_at = NOW()
		WHERE id = $3 AND status <> $1
	`

	result, err := db.ExecContext(ctx, query, models.ReelStatusCompleted, finalVideoAssetID, id)
	if err != nil {
		return false, fmt.Errorf("failed to complete reel: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return rows > 0, nil
}

// FailReelIfNotCompleted records a failure message on the reel unless a
// racing attempt already completed it; a completed reel never regresses.
func (db *DB) FailReelIfNotCompleted(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE reels
		SET status = $1, error_message = $2, updated_at = NOW()
		WHERE id = $3 AND status <> $4
	`
	_, err := db.ExecContext(ctx, query, models.ReelStatusFailed, errorMessage, id, models.ReelStatusCompleted)
	return err
}
