package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

const scheduleConfigColumns = `id, name, start_date, end_date, allowed_week_days, time_slots, time_zone,
	is_active, auto_create_slots, weeks_in_advance, created_at, updated_at`

func scanScheduleConfig(row pgx.Row) (*db.ScheduleConfig, error) {
	var c db.ScheduleConfig
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.AllowedWeekDays, &c.TimeSlots, &c.TimeZone,
		&c.IsActive, &c.AutoCreateSlots, &c.WeeksInAdvance, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetScheduleConfig retrieves a schedule config by ID
func (d *DB) GetScheduleConfig(ctx context.Context, id string) (*db.ScheduleConfig, error) {
	c, err := scanScheduleConfig(d.pool.QueryRow(ctx,
		`SELECT `+scheduleConfigColumns+` FROM schedule_config WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, apperrors.ErrConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule config: %w", err)
	}
	return c, nil
}

// GetActiveScheduleConfig retrieves the single active schedule config
func (d *DB) GetActiveScheduleConfig(ctx context.Context) (*db.ScheduleConfig, error) {
	c, err := scanScheduleConfig(d.pool.QueryRow(ctx,
		`SELECT `+scheduleConfigColumns+` FROM schedule_config WHERE is_active`))
	if isNoRows(err) {
		return nil, apperrors.ErrNoActiveConfig
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active schedule config: %w", err)
	}
	return c, nil
}

// ListScheduleConfigs retrieves all schedule configs, newest first
func (d *DB) ListScheduleConfigs(ctx context.Context) ([]db.ScheduleConfig, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT `+scheduleConfigColumns+` FROM schedule_config ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule configs: %w", err)
	}
	defer rows.Close()

	var configs []db.ScheduleConfig
	for rows.Next() {
		c, err := scanScheduleConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule config: %w", err)
		}
		configs = append(configs, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedule configs: %w", err)
	}

	return configs, nil
}

// InsertScheduleConfig inserts a schedule config, deactivating the others when it is active
func (d *DB) InsertScheduleConfig(ctx context.Context, config *db.ScheduleConfig) error {
	return d.withTx(ctx, func(tx pgx.Tx) error {
		if config.IsActive {
			if _, err := tx.Exec(ctx, `UPDATE schedule_config SET is_active = FALSE, updated_at = NOW() WHERE is_active`); err != nil {
				return fmt.Errorf("failed to deactivate schedule configs: %w", err)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO schedule_config (`+scheduleConfigColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, config.ID, config.Name, config.StartDate, config.EndDate, config.AllowedWeekDays, config.TimeSlots,
			config.TimeZone, config.IsActive, config.AutoCreateSlots, config.WeeksInAdvance,
			config.CreatedAt, config.UpdatedAt)
		if isDuplicateConstraintError(err, "schedule_config_name_key") {
			return apperrors.ErrDuplicateConfigName
		}
		if err != nil {
			return fmt.Errorf("failed to insert schedule config: %w", err)
		}
		return nil
	})
}

// ActivateScheduleConfig makes the given config the only active one
func (d *DB) ActivateScheduleConfig(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE schedule_config SET is_active = FALSE, updated_at = NOW() WHERE is_active AND id <> $1`, id); err != nil {
			return fmt.Errorf("failed to deactivate schedule configs: %w", err)
		}

		tag, err := tx.Exec(ctx, `UPDATE schedule_config SET is_active = TRUE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to activate schedule config: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrConfigNotFound
		}
		return nil
	})
}

// DeleteScheduleConfig deletes a schedule config and its slots
func (d *DB) DeleteScheduleConfig(ctx context.Context, id string) error {
	return d.withTx(ctx, func(tx pgx.Tx) error {
		var registered int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*)
			FROM slot_registration r
			JOIN slot s ON s.id = r.slot_id
			WHERE s.config_id = $1
		`, id).Scan(&registered)
		if err != nil {
			return fmt.Errorf("failed to count registrations: %w", err)
		}
		if registered > 0 {
			return apperrors.ErrSlotHasRegistrations
		}

		tag, err := tx.Exec(ctx, `DELETE FROM schedule_config WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete schedule config: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.ErrConfigNotFound
		}
		return nil
	})
}
