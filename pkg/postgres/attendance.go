package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

var attendanceColumns = []string{"id", "user_id", "slot_id", "attended", "marked_at", "marked_by", "notes"}

// GetAttendance retrieves the attendance record of a user for a slot
func (d *DB) GetAttendance(ctx context.Context, userID, slotID string) (*db.Attendance, error) {
	query, args, err := d.sb.Select(attendanceColumns...).
		From("attendance").
		Where(sq.Eq{"user_id": userID, "slot_id": slotID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build attendance query: %w", err)
	}

	var a db.Attendance
	err = d.pool.QueryRow(ctx, query, args...).Scan(&a.ID, &a.UserID, &a.SlotID, &a.Attended, &a.MarkedAt, &a.MarkedBy, &a.Notes)
	if isNoRows(err) {
		return nil, apperrors.ErrAttendanceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	return &a, nil
}

// ListAttendance retrieves attendance records matching the filter
func (d *DB) ListAttendance(ctx context.Context, filter db.AttendanceFilter) ([]db.Attendance, error) {
	where := sq.And{}
	if filter.UserID != "" {
		where = append(where, sq.Eq{"user_id": filter.UserID})
	}
	if len(filter.SlotIDs) > 0 {
		where = append(where, sq.Eq{"slot_id": filter.SlotIDs})
	}
	if filter.Attended != nil {
		where = append(where, sq.Eq{"attended": *filter.Attended})
	}

	query, args, err := d.sb.Select(attendanceColumns...).From("attendance").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build attendance query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	var records []db.Attendance
	for rows.Next() {
		var a db.Attendance
		if err := rows.Scan(&a.ID, &a.UserID, &a.SlotID, &a.Attended, &a.MarkedAt, &a.MarkedBy, &a.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attendance: %w", err)
	}

	return records, nil
}

// UpsertAttendance inserts or updates the attendance record for (user, slot)
func (d *DB) UpsertAttendance(ctx context.Context, a *db.Attendance) error {
	err := d.pool.QueryRow(ctx, `
		INSERT INTO attendance (id, user_id, slot_id, attended, marked_at, marked_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, slot_id) DO UPDATE
		SET attended = EXCLUDED.attended,
			marked_at = EXCLUDED.marked_at,
			marked_by = EXCLUDED.marked_by,
			notes = EXCLUDED.notes
		RETURNING id
	`, a.ID, a.UserID, a.SlotID, a.Attended, a.MarkedAt, a.MarkedBy, a.Notes).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance: %w", err)
	}
	return nil
}

// DeleteAttendanceForUser deletes every attendance record of a user
func (d *DB) DeleteAttendanceForUser(ctx context.Context, userID string) error {
	if _, err := d.pool.Exec(ctx, `DELETE FROM attendance WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete attendance: %w", err)
	}
	return nil
}
