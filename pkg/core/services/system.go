package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// SlotCounts is the number of slots per status
type SlotCounts struct {
	Total     int
	Available int
	Full      int
	Completed int
	Cancelled int
}

// InitializeResult represents the result of bootstrapping the system
type InitializeResult struct {
	Config        *db.ScheduleConfig
	ConfigCreated bool
	Generation    *GenerateSlotsResult
	Counts        SlotCounts
}

// SystemStatusResult describes whether the system is ready to take registrations
type SystemStatusResult struct {
	Initialized   bool
	ActiveConfig  *db.ScheduleConfig
	Counts        SlotCounts
	UpcomingSlots []db.Slot
}

// InitializeSystem ensures an active schedule config exists and generates its slots
func InitializeSystem(ctx context.Context, store db.Database, cfg *config.Config, logger *zap.Logger) (*InitializeResult, error) {
	logger.Info("Initializing system")

	scheduleConfig, created, err := EnsureDefaultConfig(ctx, store, cfg, logger)
	if err != nil {
		return nil, err
	}

	generation, err := GenerateSlots(ctx, store, logger, scheduleConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to generate slots: %w", err)
	}

	slots, err := store.ListSlots(ctx, db.SlotFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}

	result := &InitializeResult{
		Config:        scheduleConfig,
		ConfigCreated: created,
		Generation:    generation,
		Counts:        countSlots(slots),
	}

	logger.Info("System initialized",
		zap.String("config_id", scheduleConfig.ID),
		zap.Bool("config_created", created),
		zap.Int("slots_created", len(generation.Created)),
		zap.Int("total_slots", result.Counts.Total))

	return result, nil
}

// SystemStatus reports the active config, slot counts and the slots of the next 7 days
func SystemStatus(ctx context.Context, store db.Database, logger *zap.Logger) (*SystemStatusResult, error) {
	logger.Debug("Fetching system status")

	result := &SystemStatusResult{UpcomingSlots: []db.Slot{}}

	active, err := store.GetActiveScheduleConfig(ctx)
	switch {
	case err == nil:
		result.Initialized = true
		result.ActiveConfig = active
	case errors.Is(err, apperrors.ErrNoActiveConfig):
		logger.Debug("No active schedule config")
	default:
		return nil, fmt.Errorf("failed to fetch active schedule config: %w", err)
	}

	slots, err := store.ListSlots(ctx, db.SlotFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}
	result.Counts = countSlots(slots)

	from := dateOnly(now())
	to := from.AddDate(0, 0, 7)
	upcoming, err := store.ListSlots(ctx, db.SlotFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch upcoming slots: %w", err)
	}
	result.UpcomingSlots = upcoming

	logger.Debug("System status",
		zap.Bool("initialized", result.Initialized),
		zap.Int("total_slots", result.Counts.Total),
		zap.Int("upcoming", len(upcoming)))

	return result, nil
}

func countSlots(slots []db.Slot) SlotCounts {
	counts := SlotCounts{Total: len(slots)}
	for _, s := range slots {
		switch s.Status {
		case db.SlotStatusAvailable:
			counts.Available++
		case db.SlotStatusFull:
			counts.Full++
		case db.SlotStatusCompleted:
			counts.Completed++
		case db.SlotStatusCancelled:
			counts.Cancelled++
		}
	}
	return counts
}
