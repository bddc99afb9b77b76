package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/db"
)

// SlotQuery narrows a slot listing
type SlotQuery struct {
	From   *time.Time
	To     *time.Time
	Status db.SlotStatus
	// Only slots still open for booking changes (available or full)
	OpenOnly bool
	// Only slots with at least one registration
	FilledOnly bool
}

// SlotDetail is a slot together with its registered users
type SlotDetail struct {
	Slot  db.Slot
	Users []db.User
}

// DayAppointments groups the slots of one calendar day
type DayAppointments struct {
	Date              string
	TotalAppointments int
	Slots             []SlotDetail
}

// SlotReadStore defines the database operations needed to read slots with their users
type SlotReadStore interface {
	GetSlot(ctx context.Context, id string) (*db.Slot, error)
	ListSlots(ctx context.Context, filter db.SlotFilter) ([]db.Slot, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]db.User, error)
}

// ListSlots returns the slots matching the query ordered by date and start time
func ListSlots(ctx context.Context, store SlotReadStore, logger *zap.Logger, query SlotQuery) ([]db.Slot, error) {
	filter := db.SlotFilter{From: query.From, To: query.To}
	switch {
	case query.Status != "":
		filter.Statuses = []db.SlotStatus{query.Status}
	case query.OpenOnly:
		filter.Statuses = []db.SlotStatus{db.SlotStatusAvailable, db.SlotStatusFull}
	}

	logger.Debug("Fetching slots",
		zap.Any("statuses", filter.Statuses),
		zap.Bool("filled_only", query.FilledOnly))
	slots, err := store.ListSlots(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}

	if query.FilledOnly {
		filled := make([]db.Slot, 0, len(slots))
		for _, s := range slots {
			if s.RegisteredCount() > 0 {
				filled = append(filled, s)
			}
		}
		slots = filled
	}

	logger.Debug("Found slots", zap.Int("count", len(slots)))
	return slots, nil
}

// GetSlotDetail returns a slot and its registered users in registration order
func GetSlotDetail(ctx context.Context, store SlotReadStore, logger *zap.Logger, slotID string) (*SlotDetail, error) {
	slot, err := store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}

	details, err := withUsers(ctx, store, []db.Slot{*slot})
	if err != nil {
		return nil, err
	}

	logger.Debug("Fetched slot detail", zap.String("slot_id", slotID), zap.Int("users", len(details[0].Users)))
	return &details[0], nil
}

// AppointmentsByDay returns the slots in range grouped by day with their registered users
func AppointmentsByDay(ctx context.Context, store SlotReadStore, logger *zap.Logger, from, to *time.Time) ([]DayAppointments, error) {
	slots, err := store.ListSlots(ctx, db.SlotFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}

	details, err := withUsers(ctx, store, slots)
	if err != nil {
		return nil, err
	}

	days := []DayAppointments{}
	for _, d := range details {
		key := d.Slot.Date.Format("2006-01-02")
		if len(days) == 0 || days[len(days)-1].Date != key {
			days = append(days, DayAppointments{Date: key, Slots: []SlotDetail{}})
		}
		day := &days[len(days)-1]
		day.TotalAppointments += d.Slot.RegisteredCount()
		day.Slots = append(day.Slots, d)
	}

	logger.Debug("Grouped appointments", zap.Int("days", len(days)), zap.Int("slots", len(slots)))
	return days, nil
}

// withUsers resolves the registered users of each slot with a single lookup
func withUsers(ctx context.Context, store SlotReadStore, slots []db.Slot) ([]SlotDetail, error) {
	var ids []string
	for _, s := range slots {
		ids = append(ids, s.UserIDs()...)
	}

	users, err := store.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registered users: %w", err)
	}
	byID := make(map[string]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	details := make([]SlotDetail, len(slots))
	for i, s := range slots {
		details[i] = SlotDetail{Slot: s, Users: []db.User{}}
		for _, id := range s.UserIDs() {
			if u, ok := byID[id]; ok {
				details[i].Users = append(details[i].Users, u)
			}
		}
	}
	return details, nil
}
