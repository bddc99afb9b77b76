package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
	"github.com/jakechorley/promoter-slots/pkg/utils/validation"
)

const (
	defaultConfigName     = "Configuración Principal"
	defaultConfigMonths   = 3
	defaultWeeksInAdvance = 4
	defaultSlotCapacity   = 15
	defaultSlotDuration   = 60
)

var (
	defaultWeekDays  = []int{1, 2, 3, 4, 5}
	defaultSlotHours = []string{"09:00", "10:00", "16:00", "17:00", "18:00"}
)

// ScheduleConfigInput holds the admin-provided fields of a new schedule config
type ScheduleConfigInput struct {
	Name            string
	StartDate       time.Time
	EndDate         time.Time
	AllowedWeekDays []int
	TimeSlots       []db.TimeSlotTemplate
	TimeZone        string
	IsActive        bool
	AutoCreateSlots bool
	WeeksInAdvance  int
}

// CreateScheduleConfig validates and stores a new schedule config.
// An active config replaces the previously active one.
func CreateScheduleConfig(
	ctx context.Context,
	store db.ScheduleConfigStore,
	cfg *config.Config,
	logger *zap.Logger,
	input ScheduleConfigInput,
) (*db.ScheduleConfig, error) {
	logger.Debug("Creating schedule config", zap.String("name", input.Name))

	timeZone := input.TimeZone
	if timeZone == "" {
		timeZone = cfg.TimeZone
	}
	weeksInAdvance := input.WeeksInAdvance
	if weeksInAdvance == 0 {
		weeksInAdvance = defaultWeeksInAdvance
	}

	ts := now()
	scheduleConfig := &db.ScheduleConfig{
		ID:              newID(),
		Name:            input.Name,
		StartDate:       dateOnly(input.StartDate),
		EndDate:         dateOnly(input.EndDate),
		AllowedWeekDays: normalizeWeekDays(input.AllowedWeekDays),
		TimeSlots:       input.TimeSlots,
		TimeZone:        timeZone,
		IsActive:        input.IsActive,
		AutoCreateSlots: input.AutoCreateSlots,
		WeeksInAdvance:  weeksInAdvance,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}

	if err := validateScheduleConfig(scheduleConfig); err != nil {
		return nil, err
	}

	if err := store.InsertScheduleConfig(ctx, scheduleConfig); err != nil {
		return nil, fmt.Errorf("failed to insert schedule config: %w", err)
	}

	logger.Info("Schedule config created",
		zap.String("config_id", scheduleConfig.ID),
		zap.String("name", scheduleConfig.Name),
		zap.Bool("active", scheduleConfig.IsActive))

	return scheduleConfig, nil
}

// validateScheduleConfig checks the struct tags and the cross-field rules
func validateScheduleConfig(c *db.ScheduleConfig) error {
	if err := validation.Validator().Struct(c); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, "invalid schedule config", err)
	}
	if c.EndDate.Before(c.StartDate) {
		return apperrors.Validation("end date must not be before start date")
	}
	for _, t := range c.TimeSlots {
		if validation.MinutesOfDay(t.StartTime) >= validation.MinutesOfDay(t.EndTime) {
			return apperrors.Validation(fmt.Sprintf("time slot %s-%s must start before it ends", t.StartTime, t.EndTime))
		}
	}
	return nil
}

// normalizeWeekDays sorts and deduplicates weekday numbers
func normalizeWeekDays(days []int) []int {
	seen := make(map[int]bool, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Ints(out)
	return out
}

// ActivateScheduleConfig makes the given config the only active one
func ActivateScheduleConfig(ctx context.Context, store db.ScheduleConfigStore, logger *zap.Logger, configID string) (*db.ScheduleConfig, error) {
	logger.Debug("Activating schedule config", zap.String("config_id", configID))

	if err := store.ActivateScheduleConfig(ctx, configID); err != nil {
		return nil, fmt.Errorf("failed to activate schedule config: %w", err)
	}

	scheduleConfig, err := store.GetScheduleConfig(ctx, configID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule config: %w", err)
	}

	logger.Info("Schedule config activated", zap.String("config_id", configID), zap.String("name", scheduleConfig.Name))
	return scheduleConfig, nil
}

// DeleteScheduleConfig deletes a config and its slots. The active config cannot
// be deleted, and neither can a config whose slots have registrations.
func DeleteScheduleConfig(ctx context.Context, store db.ScheduleConfigStore, logger *zap.Logger, configID string) error {
	logger.Debug("Deleting schedule config", zap.String("config_id", configID))

	scheduleConfig, err := store.GetScheduleConfig(ctx, configID)
	if err != nil {
		return fmt.Errorf("failed to fetch schedule config: %w", err)
	}
	if scheduleConfig.IsActive {
		return apperrors.ErrSoleActiveConfig
	}

	if err := store.DeleteScheduleConfig(ctx, configID); err != nil {
		return fmt.Errorf("failed to delete schedule config: %w", err)
	}

	logger.Info("Schedule config deleted", zap.String("config_id", configID), zap.String("name", scheduleConfig.Name))
	return nil
}

// ListScheduleConfigs returns every schedule config
func ListScheduleConfigs(ctx context.Context, store db.ScheduleConfigStore, logger *zap.Logger) ([]db.ScheduleConfig, error) {
	logger.Debug("Fetching schedule configs")
	configs, err := store.ListScheduleConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch schedule configs: %w", err)
	}
	logger.Debug("Found schedule configs", zap.Int("count", len(configs)))
	return configs, nil
}

// EnsureDefaultConfig returns the active config, creating the default one when
// no config is active.
func EnsureDefaultConfig(ctx context.Context, store db.ScheduleConfigStore, cfg *config.Config, logger *zap.Logger) (*db.ScheduleConfig, bool, error) {
	logger.Debug("Checking for an active schedule config")

	active, err := store.GetActiveScheduleConfig(ctx)
	if err == nil {
		logger.Debug("Active schedule config found", zap.String("config_id", active.ID))
		return active, false, nil
	}
	if !errors.Is(err, apperrors.ErrNoActiveConfig) {
		return nil, false, fmt.Errorf("failed to fetch active schedule config: %w", err)
	}

	input := defaultScheduleInput(cfg, now())
	logger.Info("No active schedule config, creating default",
		zap.String("name", input.Name),
		zap.Time("start", input.StartDate),
		zap.Time("end", input.EndDate))

	created, err := CreateScheduleConfig(ctx, store, cfg, logger, input)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create default schedule config: %w", err)
	}
	return created, true, nil
}

// defaultScheduleInput builds the bootstrap config, applying overrides from the app config
func defaultScheduleInput(cfg *config.Config, today time.Time) ScheduleConfigInput {
	overrides := cfg.DefaultSchedule

	name := defaultConfigName
	if overrides.Name != "" {
		name = overrides.Name
	}
	months := defaultConfigMonths
	if overrides.Months > 0 {
		months = overrides.Months
	}
	weekDays := defaultWeekDays
	if len(overrides.WeekDays) > 0 {
		weekDays = overrides.WeekDays
	}
	weeksInAdvance := defaultWeeksInAdvance
	if overrides.WeeksInAdvance > 0 {
		weeksInAdvance = overrides.WeeksInAdvance
	}

	templates := overrides.TimeSlots
	if len(templates) == 0 {
		templates = make([]db.TimeSlotTemplate, 0, len(defaultSlotHours))
		for _, start := range defaultSlotHours {
			minutes := validation.MinutesOfDay(start) + defaultSlotDuration
			templates = append(templates, db.TimeSlotTemplate{
				StartTime:       start,
				EndTime:         fmt.Sprintf("%02d:%02d", minutes/60, minutes%60),
				DurationMinutes: defaultSlotDuration,
				Capacity:        defaultSlotCapacity,
			})
		}
	}

	start := dateOnly(today)
	return ScheduleConfigInput{
		Name:            name,
		StartDate:       start,
		EndDate:         start.AddDate(0, months, 0),
		AllowedWeekDays: weekDays,
		TimeSlots:       templates,
		TimeZone:        cfg.TimeZone,
		IsActive:        true,
		AutoCreateSlots: true,
		WeeksInAdvance:  weeksInAdvance,
	}
}
