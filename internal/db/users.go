package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Vatsal2401/Auto-Reels-Render/internal/models"
	"github.com/google/uuid"
)

// GetUser retrieves a user by their ID.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `
		SELECT id, email, display_name, credits, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.DisplayName, &user.Credits,
		&user.CreatedAt, &user.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// DeductCredits subtracts a render's cost from the user's balance. The
// balance never goes negative: a user without enough credits is clamped at
// zero rather than failing the render, since billing runs post-commit and
// the video is already delivered.
func (db *DB) DeductCredits(ctx context.Context, id uuid.UUID, amount int) error {
	if amount <= 0 {
		return nil
	}

	query := `
		UPDATE users
		SET credits = GREATEST(credits - $1, 0), updated_at = NOW()
		WHERE id = $2
	`
	result, err := db.ExecContext(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("failed to deduct credits: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	return nil
}
