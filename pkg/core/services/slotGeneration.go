package services

import (
	"context"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// FailedSlot is a slot that could not be created during generation
type FailedSlot struct {
	Date      time.Time
	StartTime string
	Error     string
}

// GenerateSlotsResult represents the result of a slot generation run
type GenerateSlotsResult struct {
	ConfigID string
	Created  []db.Slot
	Skipped  int
	Failed   []FailedSlot
}

// SlotGenerationStore defines the database operations needed to generate slots
type SlotGenerationStore interface {
	ExistingSlotKeys(ctx context.Context, from, to time.Time) (map[string]bool, error)
	InsertSlotIfAbsent(ctx context.Context, slot *db.Slot) (bool, error)
}

var rruleWeekdays = map[int]rrule.Weekday{
	1: rrule.MO,
	2: rrule.TU,
	3: rrule.WE,
	4: rrule.TH,
	5: rrule.FR,
	6: rrule.SA,
	7: rrule.SU,
}

// GenerateSlots creates every missing slot of the config between its start and end dates.
// Existing (date, start time) pairs are skipped, so running it twice creates nothing new.
// Failures on individual slots are collected and do not stop the run.
func GenerateSlots(
	ctx context.Context,
	store SlotGenerationStore,
	logger *zap.Logger,
	scheduleConfig *db.ScheduleConfig,
) (*GenerateSlotsResult, error) {
	return generateSlotsInRange(ctx, store, logger, scheduleConfig, scheduleConfig.StartDate, scheduleConfig.EndDate)
}

// GenerateSlotsForWeek creates the missing slots of the active config for the
// Monday-based week containing date. Nothing is generated when the week starts
// outside the config's date range.
func GenerateSlotsForWeek(
	ctx context.Context,
	store db.Database,
	cfg *config.Config,
	logger *zap.Logger,
	date time.Time,
) (*GenerateSlotsResult, error) {
	scheduleConfig, _, err := EnsureDefaultConfig(ctx, store, cfg, logger)
	if err != nil {
		return nil, err
	}

	weekStart := startOfWeek(date)
	weekEnd := weekStart.AddDate(0, 0, 6)
	logger.Debug("Generating slots for week",
		zap.String("week_start", weekStart.Format("2006-01-02")),
		zap.String("week_end", weekEnd.Format("2006-01-02")))

	if weekStart.Before(scheduleConfig.StartDate) || weekStart.After(scheduleConfig.EndDate) {
		logger.Info("Week is outside the schedule config range",
			zap.String("config_id", scheduleConfig.ID),
			zap.String("week_start", weekStart.Format("2006-01-02")))
		return &GenerateSlotsResult{ConfigID: scheduleConfig.ID}, nil
	}
	if weekEnd.After(scheduleConfig.EndDate) {
		weekEnd = scheduleConfig.EndDate
	}

	return generateSlotsInRange(ctx, store, logger, scheduleConfig, weekStart, weekEnd)
}

// WeekSlots lists the slots of the week containing date, generating them first
// when the week has none yet
func WeekSlots(
	ctx context.Context,
	store db.Database,
	cfg *config.Config,
	logger *zap.Logger,
	date time.Time,
) ([]db.Slot, error) {
	weekStart := startOfWeek(date)
	weekEnd := weekStart.AddDate(0, 0, 6)
	filter := db.SlotFilter{From: &weekStart, To: &weekEnd}

	slots, err := store.ListSlots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}
	if len(slots) > 0 {
		return slots, nil
	}

	logger.Info("No slots for week, generating", zap.String("week_start", weekStart.Format("2006-01-02")))
	if _, err := GenerateSlotsForWeek(ctx, store, cfg, logger, weekStart); err != nil {
		return nil, fmt.Errorf("failed to generate slots for week: %w", err)
	}

	slots, err = store.ListSlots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}
	return slots, nil
}

func generateSlotsInRange(
	ctx context.Context,
	store SlotGenerationStore,
	logger *zap.Logger,
	scheduleConfig *db.ScheduleConfig,
	from, to time.Time,
) (*GenerateSlotsResult, error) {
	from, to = dateOnly(from), dateOnly(to)
	logger.Info("Starting slot generation",
		zap.String("config_id", scheduleConfig.ID),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))

	result := &GenerateSlotsResult{
		ConfigID: scheduleConfig.ID,
		Created:  []db.Slot{},
		Failed:   []FailedSlot{},
	}
	if to.Before(from) {
		return result, nil
	}

	// Step 1: Expand the allowed calendar dates
	dates, err := allowedDates(scheduleConfig.AllowedWeekDays, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to expand schedule dates: %w", err)
	}
	logger.Debug("Expanded allowed dates", zap.Int("count", len(dates)))

	// Step 2: Load the existing slot keys for the range
	logger.Debug("Fetching existing slots")
	existing, err := store.ExistingSlotKeys(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch existing slots: %w", err)
	}
	logger.Debug("Found existing slots", zap.Int("count", len(existing)))

	// Step 3: Create the missing slots
	var errs error
	for _, date := range dates {
		for _, template := range scheduleConfig.TimeSlots {
			key := db.SlotKey(date, template.StartTime)
			if existing[key] {
				result.Skipped++
				continue
			}

			ts := now()
			slot := db.Slot{
				ID:            newID(),
				Date:          date,
				StartTime:     template.StartTime,
				EndTime:       template.EndTime,
				MaxCapacity:   template.Capacity,
				Registrations: []db.Registration{},
				Status:        db.SlotStatusAvailable,
				ConfigID:      scheduleConfig.ID,
				CreatedAt:     ts,
				UpdatedAt:     ts,
			}

			inserted, err := store.InsertSlotIfAbsent(ctx, &slot)
			if err != nil {
				logger.Warn("Failed to create slot",
					zap.String("slot_key", key),
					zap.Error(err))
				errs = multierr.Append(errs, fmt.Errorf("slot %s: %w", key, err))
				result.Failed = append(result.Failed, FailedSlot{
					Date:      date,
					StartTime: template.StartTime,
					Error:     err.Error(),
				})
				continue
			}
			existing[key] = true
			if !inserted {
				logger.Debug("Slot created concurrently, skipping", zap.String("slot_key", key))
				result.Skipped++
				continue
			}

			logger.Debug("Slot created", zap.String("slot_id", slot.ID), zap.String("slot_key", key))
			result.Created = append(result.Created, slot)
		}
	}

	if errs != nil {
		logger.Warn("Slot generation finished with failures",
			zap.Int("failed", len(result.Failed)),
			zap.Error(errs))
	}

	logger.Info("Slot generation completed",
		zap.String("config_id", scheduleConfig.ID),
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// allowedDates returns every date in [from, to] whose ISO weekday is allowed
func allowedDates(weekDays []int, from, to time.Time) ([]time.Time, error) {
	byDay := make([]rrule.Weekday, 0, len(weekDays))
	for _, d := range weekDays {
		wd, ok := rruleWeekdays[d]
		if !ok {
			return nil, fmt.Errorf("invalid weekday %d", d)
		}
		byDay = append(byDay, wd)
	}
	if len(byDay) == 0 {
		return []time.Time{}, nil
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.DAILY,
		Dtstart:   from,
		Until:     to,
		Byweekday: byDay,
	})
	if err != nil {
		return nil, err
	}

	occurrences := rule.All()
	dates := make([]time.Time, len(occurrences))
	for i, o := range occurrences {
		dates[i] = dateOnly(o)
	}
	return dates, nil
}
