package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/clients/calendarclient"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// MeetingStore defines the database operations needed to generate a meeting link
type MeetingStore interface {
	GetSlot(ctx context.Context, id string) (*db.Slot, error)
	GetScheduleConfig(ctx context.Context, id string) (*db.ScheduleConfig, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]db.User, error)
	UpdateSlotAtomically(ctx context.Context, id string, fn func(*db.Slot) error) (*db.Slot, error)
}

// GenerateMeetingLink creates the Google Meet meeting of a slot and stores its link.
// A slot that already has a link is returned unchanged.
func GenerateMeetingLink(
	ctx context.Context,
	store MeetingStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	slotID string,
) (*db.Slot, error) {
	logger.Debug("Generating meeting link", zap.String("slot_id", slotID))

	slot, err := store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}
	if slot.MeetingLink != "" {
		logger.Debug("Slot already has a meeting link", zap.String("slot_id", slotID))
		return slot, nil
	}

	// Step 1: Work out duration and time zone from the owning config
	duration := defaultSlotDuration
	timeZone := cfg.TimeZone
	if slot.ConfigID != "" {
		scheduleConfig, err := store.GetScheduleConfig(ctx, slot.ConfigID)
		switch {
		case err == nil:
			if template, ok := scheduleConfig.FindTemplate(slot.StartTime, slot.EndTime); ok {
				duration = template.DurationMinutes
			}
			if scheduleConfig.TimeZone != "" {
				timeZone = scheduleConfig.TimeZone
			}
		case errors.Is(err, apperrors.ErrConfigNotFound):
			logger.Warn("Slot config not found, using default duration", zap.String("config_id", slot.ConfigID))
		default:
			return nil, fmt.Errorf("failed to fetch schedule config: %w", err)
		}
	}

	start, err := slotStart(slot.Date, slot.StartTime, timeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to compute meeting start: %w", err)
	}

	// Step 2: Collect attendee emails
	users, err := store.ListUsersByIDs(ctx, slot.UserIDs())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registered users: %w", err)
	}
	attendees := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			attendees = append(attendees, u.Email)
		}
	}

	// Step 3: Create the meeting
	provider, err := providers.Meetings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting provider: %w", err)
	}

	req := calendarclient.MeetingRequest{
		RequestID:   fmt.Sprintf("meet-%s-%d", slot.ID, now().UnixMilli()),
		Summary:     fmt.Sprintf("Reunión Promotoras - %s", slot.StartTime),
		Description: fmt.Sprintf("Reunión del programa de promotoras. Duración: %d minutos. Capacidad: %d personas.", duration, slot.MaxCapacity),
		Start:       start,
		End:         start.Add(time.Duration(duration) * time.Minute),
		TimeZone:    timeZone,
		Attendees:   attendees,
	}

	providerCtx, cancel := providerContext(ctx, cfg)
	defer cancel()

	logger.Debug("Creating calendar meeting",
		zap.String("slot_id", slot.ID),
		zap.Time("start", req.Start),
		zap.Int("attendees", len(attendees)))
	meeting, err := provider.CreateMeeting(providerCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	// Step 4: Store the link unless another run stored one first
	updated, err := store.UpdateSlotAtomically(ctx, slot.ID, func(s *db.Slot) error {
		if s.MeetingLink != "" {
			return nil
		}
		s.MeetingLink = meeting.VideoURI
		s.MeetingID = meeting.EventID
		s.UpdatedAt = now()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store meeting link: %w", err)
	}

	logger.Info("Meeting link generated",
		zap.String("slot_id", updated.ID),
		zap.String("meeting_id", updated.MeetingID),
		zap.String("meeting_link", updated.MeetingLink))

	return updated, nil
}
