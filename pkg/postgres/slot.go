package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

var slotColumns = []string{
	"id", "slot_date", "start_time", "end_time", "max_capacity", "meeting_link", "meeting_id",
	"status", "config_id", "description", "created_at", "updated_at",
}

func scanSlot(row pgx.Row) (*db.Slot, error) {
	var s db.Slot
	var meetingLink, meetingID, configID *string
	err := row.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.MaxCapacity, &meetingLink, &meetingID,
		&s.Status, &configID, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.MeetingLink = deref(meetingLink)
	s.MeetingID = deref(meetingID)
	s.ConfigID = deref(configID)
	return &s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetSlot retrieves a slot with its registrations
func (d *DB) GetSlot(ctx context.Context, id string) (*db.Slot, error) {
	query, args, err := d.sb.Select(slotColumns...).From("slot").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slot query: %w", err)
	}

	slot, err := scanSlot(d.pool.QueryRow(ctx, query, args...))
	if isNoRows(err) {
		return nil, apperrors.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slot: %w", err)
	}

	regs, err := loadRegistrations(ctx, d.pool, []string{slot.ID})
	if err != nil {
		return nil, err
	}
	slot.Registrations = regs[slot.ID]

	return slot, nil
}

// ListSlots retrieves slots matching the filter ordered by date and start time
func (d *DB) ListSlots(ctx context.Context, filter db.SlotFilter) ([]db.Slot, error) {
	where := sq.And{}
	if filter.From != nil {
		where = append(where, sq.GtOrEq{"slot_date": *filter.From})
	}
	if filter.To != nil {
		where = append(where, sq.LtOrEq{"slot_date": *filter.To})
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, sq.Eq{"status": statuses})
	}
	if filter.ConfigID != "" {
		where = append(where, sq.Eq{"config_id": filter.ConfigID})
	}
	if filter.UserID != "" {
		where = append(where, sq.Expr("id IN (SELECT slot_id FROM slot_registration WHERE user_id = ?)", filter.UserID))
	}

	query, args, err := d.sb.Select(slotColumns...).
		From("slot").
		Where(where).
		OrderBy("slot_date", "start_time").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build slots query: %w", err)
	}

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []db.Slot
	var ids []string
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slots: %w", err)
	}

	if len(ids) == 0 {
		return slots, nil
	}

	regs, err := loadRegistrations(ctx, d.pool, ids)
	if err != nil {
		return nil, err
	}
	for i := range slots {
		slots[i].Registrations = regs[slots[i].ID]
	}

	return slots, nil
}

// ExistingSlotKeys returns the (date, start time) keys of slots in the date range
func (d *DB) ExistingSlotKeys(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT slot_date, start_time FROM slot WHERE slot_date BETWEEN $1 AND $2
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query slot keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var date time.Time
		var start string
		if err := rows.Scan(&date, &start); err != nil {
			return nil, fmt.Errorf("failed to scan slot key: %w", err)
		}
		keys[db.SlotKey(date, start)] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slot keys: %w", err)
	}

	return keys, nil
}

// InsertSlotIfAbsent inserts a slot unless its (date, start time) is taken
func (d *DB) InsertSlotIfAbsent(ctx context.Context, slot *db.Slot) (bool, error) {
	tag, err := d.pool.Exec(ctx, `
		INSERT INTO slot (id, slot_date, start_time, end_time, max_capacity, meeting_link, meeting_id,
			status, config_id, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (slot_date, start_time) DO NOTHING
	`, slot.ID, slot.Date, slot.StartTime, slot.EndTime, slot.MaxCapacity, nullable(slot.MeetingLink),
		nullable(slot.MeetingID), slot.Status, nullable(slot.ConfigID), slot.Description, slot.CreatedAt, slot.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateSlotAtomically locks the slot row, applies fn and writes the slot back.
// The capacity check inside fn and the write happen under the same row lock.
func (d *DB) UpdateSlotAtomically(ctx context.Context, id string, fn func(*db.Slot) error) (*db.Slot, error) {
	var updated *db.Slot
	err := d.withTx(ctx, func(tx pgx.Tx) error {
		query, args, err := d.sb.Select(slotColumns...).From("slot").Where(sq.Eq{"id": id}).Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return fmt.Errorf("failed to build slot query: %w", err)
		}

		slot, err := scanSlot(tx.QueryRow(ctx, query, args...))
		if isNoRows(err) {
			return apperrors.ErrSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock slot: %w", err)
		}

		regs, err := loadRegistrations(ctx, tx, []string{slot.ID})
		if err != nil {
			return err
		}
		slot.Registrations = regs[slot.ID]

		if err := fn(slot); err != nil {
			return err
		}
		slot.UpdatedAt = time.Now().UTC()

		_, err = tx.Exec(ctx, `
			UPDATE slot
			SET max_capacity = $2, meeting_link = $3, meeting_id = $4, status = $5, description = $6, updated_at = $7
			WHERE id = $1
		`, slot.ID, slot.MaxCapacity, nullable(slot.MeetingLink), nullable(slot.MeetingID), slot.Status,
			slot.Description, slot.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update slot: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM slot_registration WHERE slot_id = $1`, slot.ID); err != nil {
			return fmt.Errorf("failed to clear registrations: %w", err)
		}
		for i, r := range slot.Registrations {
			_, err := tx.Exec(ctx, `
				INSERT INTO slot_registration (slot_id, user_id, position, registered_at, approval_state,
					approved_at, approved_by, rejection_reason)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, slot.ID, r.UserID, i, r.RegisteredAt, r.ApprovalState, r.ApprovedAt, r.ApprovedBy, r.RejectionReason)
			if isDuplicateConstraintError(err, "slot_registration_pkey") {
				return apperrors.ErrAlreadyRegistered
			}
			if err != nil {
				return fmt.Errorf("failed to insert registration: %w", err)
			}
		}

		updated = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteSlot deletes a slot that has no registrations
func (d *DB) DeleteSlot(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT TRUE FROM slot WHERE id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			if isNoRows(err) {
				return apperrors.ErrSlotNotFound
			}
			return fmt.Errorf("failed to lock slot: %w", err)
		}

		var registered int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM slot_registration WHERE slot_id = $1`, id).Scan(&registered); err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		if registered > 0 {
			return apperrors.ErrSlotHasRegistrations
		}

		if _, err := tx.Exec(ctx, `DELETE FROM slot WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete slot: %w", err)
		}
		return nil
	})
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// loadRegistrations returns the registrations of the given slots keyed by slot ID
func loadRegistrations(ctx context.Context, q querier, slotIDs []string) (map[string][]db.Registration, error) {
	rows, err := q.Query(ctx, `
		SELECT slot_id, user_id, registered_at, approval_state, approved_at, approved_by, rejection_reason
		FROM slot_registration
		WHERE slot_id = ANY($1)
		ORDER BY slot_id, position
	`, slotIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]db.Registration)
	for rows.Next() {
		var slotID string
		var r db.Registration
		if err := rows.Scan(&slotID, &r.UserID, &r.RegisteredAt, &r.ApprovalState, &r.ApprovedAt, &r.ApprovedBy, &r.RejectionReason); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		result[slotID] = append(result[slotID], r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating registrations: %w", err)
	}

	return result, nil
}
