package postgres

import (
	"context"
	"fmt"

	"github.com/jakechorley/promoter-slots/pkg/db"
)

// InsertNotificationOutcome records a notification attempt
func (d *DB) InsertNotificationOutcome(ctx context.Context, o *db.NotificationOutcome) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO notification_outcome (id, kind, user_id, slot_id, recipient, status, error, attempted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.Kind, o.UserID, nullable(o.SlotID), o.Recipient, o.Status, o.Error, o.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification outcome: %w", err)
	}
	return nil
}

// ListNotificationOutcomes retrieves the notification attempts for a user, newest first.
// An empty user ID lists every attempt.
func (d *DB) ListNotificationOutcomes(ctx context.Context, userID string) ([]db.NotificationOutcome, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, kind, user_id, slot_id, recipient, status, error, attempted_at
		FROM notification_outcome
		WHERE $1 = '' OR user_id = $1
		ORDER BY attempted_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []db.NotificationOutcome
	for rows.Next() {
		var o db.NotificationOutcome
		var slotID *string
		if err := rows.Scan(&o.ID, &o.Kind, &o.UserID, &slotID, &o.Recipient, &o.Status, &o.Error, &o.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification outcome: %w", err)
		}
		o.SlotID = deref(slotID)
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification outcomes: %w", err)
	}

	return outcomes, nil
}

var _ db.Database = (*DB)(nil)
