package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// AttendanceServiceStore defines the database operations needed to record and read attendance
type AttendanceServiceStore interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	UpdateUser(ctx context.Context, user *db.User) error
	ListUsersByIDs(ctx context.Context, ids []string) ([]db.User, error)
	GetSlot(ctx context.Context, id string) (*db.Slot, error)
	ListSlots(ctx context.Context, filter db.SlotFilter) ([]db.Slot, error)
	GetAttendance(ctx context.Context, userID, slotID string) (*db.Attendance, error)
	ListAttendance(ctx context.Context, filter db.AttendanceFilter) ([]db.Attendance, error)
	UpsertAttendance(ctx context.Context, attendance *db.Attendance) error
}

// MarkAttendanceInput holds the fields of an attendance mark
type MarkAttendanceInput struct {
	UserID   string
	SlotID   string // defaults to the user's booked slot
	Attended *bool
	Notes    string
	MarkedBy string
}

// MarkAttendance records whether a user attended a slot's meeting and mirrors the
// result onto the user. Attending moves the user to meeting_held.
func MarkAttendance(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger, input MarkAttendanceInput) (*db.Attendance, error) {
	logger.Debug("Marking attendance", zap.String("user_id", input.UserID), zap.String("slot_id", input.SlotID))

	user, err := store.GetUser(ctx, input.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	slotID := input.SlotID
	if slotID == "" {
		slotID = user.SlotID
	}
	if slotID == "" {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "user is not booked into any slot", apperrors.ErrSlotNotFound)
	}
	if _, err := store.GetSlot(ctx, slotID); err != nil {
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}

	attendance := &db.Attendance{
		ID:       newID(),
		UserID:   user.ID,
		SlotID:   slotID,
		Attended: input.Attended,
		MarkedBy: input.MarkedBy,
		Notes:    input.Notes,
	}
	if isTrue(input.Attended) {
		ts := now()
		attendance.MarkedAt = &ts
	}

	if err := store.UpsertAttendance(ctx, attendance); err != nil {
		return nil, fmt.Errorf("failed to save attendance: %w", err)
	}

	user.Attended = input.Attended
	if isTrue(input.Attended) {
		user.AdvanceTo(db.UserStateMeetingHeld)
	}
	user.UpdatedAt = now()
	if err := store.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	logger.Info("Attendance marked",
		zap.String("user_id", user.ID),
		zap.String("slot_id", slotID),
		zap.Stringp("attended", boolLabel(input.Attended)),
		zap.String("user_state", string(user.State)))

	return attendance, nil
}

// FailedAttendance is a user whose attendance row could not be created
type FailedAttendance struct {
	UserID string
	Error  string
}

// BulkAttendanceResult represents the result of creating pending attendance rows for a slot
type BulkAttendanceResult struct {
	Created  []db.Attendance
	Existing int
	Failed   []FailedAttendance
}

// BulkCreateForSlot creates an unmarked attendance row for every registered user of the slot that lacks one
func BulkCreateForSlot(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger, slotID string) (*BulkAttendanceResult, error) {
	logger.Debug("Creating attendance rows for slot", zap.String("slot_id", slotID))

	slot, err := store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}

	records, err := store.ListAttendance(ctx, db.AttendanceFilter{SlotIDs: []string{slotID}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	hasRecord := make(map[string]bool, len(records))
	for _, r := range records {
		hasRecord[r.UserID] = true
	}

	result := &BulkAttendanceResult{Created: []db.Attendance{}, Failed: []FailedAttendance{}}
	var errs error
	for _, userID := range slot.UserIDs() {
		if hasRecord[userID] {
			result.Existing++
			continue
		}

		attendance := db.Attendance{ID: newID(), UserID: userID, SlotID: slotID}
		if err := store.UpsertAttendance(ctx, &attendance); err != nil {
			logger.Warn("Failed to create attendance row", zap.String("user_id", userID), zap.Error(err))
			errs = multierr.Append(errs, err)
			result.Failed = append(result.Failed, FailedAttendance{UserID: userID, Error: err.Error()})
			continue
		}
		result.Created = append(result.Created, attendance)
	}

	if errs != nil {
		logger.Warn("Some attendance rows were not created", zap.Error(errs))
	}
	logger.Info("Attendance rows created",
		zap.String("slot_id", slotID),
		zap.Int("created", len(result.Created)),
		zap.Int("existing", result.Existing),
		zap.Int("failed", len(result.Failed)))

	return result, nil
}

// SlotAttendanceStats counts attendance among the users registered in a slot
type SlotAttendanceStats struct {
	SlotID     string
	Registered int
	Attended   int
	Absent     int
	Unmarked   int
}

// GetSlotAttendanceStats returns the attendance counts of a slot's registered users
func GetSlotAttendanceStats(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger, slotID string) (*SlotAttendanceStats, error) {
	slot, err := store.GetSlot(ctx, slotID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slot: %w", err)
	}

	records, err := store.ListAttendance(ctx, db.AttendanceFilter{SlotIDs: []string{slotID}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	byUser := make(map[string]db.Attendance, len(records))
	for _, r := range records {
		byUser[r.UserID] = r
	}

	stats := &SlotAttendanceStats{SlotID: slotID, Registered: slot.RegisteredCount()}
	for _, userID := range slot.UserIDs() {
		r, ok := byUser[userID]
		switch {
		case !ok || r.Attended == nil:
			stats.Unmarked++
		case *r.Attended:
			stats.Attended++
		default:
			stats.Absent++
		}
	}

	logger.Debug("Slot attendance stats",
		zap.String("slot_id", slotID),
		zap.Int("attended", stats.Attended),
		zap.Int("absent", stats.Absent),
		zap.Int("unmarked", stats.Unmarked))
	return stats, nil
}

// AttendanceSummary holds the global attendance totals
type AttendanceSummary struct {
	TotalRecords int
	Attended     int
	Absent       int
	Unmarked     int
	// Percentage of marked records that attended, 0 when nothing is marked
	AttendanceRate float64
}

// GetAttendanceSummary returns the attendance totals across every slot
func GetAttendanceSummary(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger) (*AttendanceSummary, error) {
	records, err := store.ListAttendance(ctx, db.AttendanceFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}

	summary := &AttendanceSummary{TotalRecords: len(records)}
	for _, r := range records {
		switch {
		case r.Attended == nil:
			summary.Unmarked++
		case *r.Attended:
			summary.Attended++
		default:
			summary.Absent++
		}
	}
	if marked := summary.Attended + summary.Absent; marked > 0 {
		summary.AttendanceRate = float64(summary.Attended) * 100 / float64(marked)
	}

	logger.Debug("Attendance summary",
		zap.Int("records", summary.TotalRecords),
		zap.Float64("rate", summary.AttendanceRate))
	return summary, nil
}

// AttendanceEntry is an attendance row with its slot and user
type AttendanceEntry struct {
	Attendance db.Attendance
	Slot       db.Slot
	User       db.User
}

// AttendanceQuery narrows an attendance listing
type AttendanceQuery struct {
	From     *time.Time // slot date lower bound
	To       *time.Time // slot date upper bound
	Attended *bool
	UserID   string
}

// ListAttendance returns the attendance rows matching the query, most recent slot first
func ListAttendance(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger, query AttendanceQuery) ([]AttendanceEntry, error) {
	filter := db.AttendanceFilter{UserID: query.UserID, Attended: query.Attended}

	if query.From != nil || query.To != nil {
		slots, err := store.ListSlots(ctx, db.SlotFilter{From: query.From, To: query.To})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch slots: %w", err)
		}
		if len(slots) == 0 {
			return []AttendanceEntry{}, nil
		}
		for _, s := range slots {
			filter.SlotIDs = append(filter.SlotIDs, s.ID)
		}
	}

	records, err := store.ListAttendance(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	logger.Debug("Found attendance rows", zap.Int("count", len(records)))

	return resolveAttendanceEntries(ctx, store, records)
}

// UserAttendanceHistory returns a user's attendance rows, most recent slot first
func UserAttendanceHistory(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger, userID string) ([]AttendanceEntry, error) {
	if _, err := store.GetUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return ListAttendance(ctx, store, logger, AttendanceQuery{UserID: userID})
}

func resolveAttendanceEntries(ctx context.Context, store AttendanceServiceStore, records []db.Attendance) ([]AttendanceEntry, error) {
	entries := make([]AttendanceEntry, 0, len(records))
	if len(records) == 0 {
		return entries, nil
	}

	userIDs := make([]string, 0, len(records))
	slots := make(map[string]*db.Slot)
	for _, r := range records {
		userIDs = append(userIDs, r.UserID)
		if _, ok := slots[r.SlotID]; ok {
			continue
		}
		slot, err := store.GetSlot(ctx, r.SlotID)
		if err != nil && !errors.Is(err, apperrors.ErrSlotNotFound) {
			return nil, fmt.Errorf("failed to fetch slot %s: %w", r.SlotID, err)
		}
		slots[r.SlotID] = slot
	}

	users, err := store.ListUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	byID := make(map[string]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, r := range records {
		slot := slots[r.SlotID]
		user, ok := byID[r.UserID]
		if slot == nil || !ok {
			continue
		}
		entries = append(entries, AttendanceEntry{Attendance: r, Slot: *slot, User: user})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return slotAfter(entries[i].Slot, entries[j].Slot)
	})
	return entries, nil
}

// SlotAttendanceList splits a slot's registered users by attendance
type SlotAttendanceList struct {
	Slot     db.Slot
	Attended []db.User
	Absent   []db.User
	Unmarked []db.User
}

// AttendanceLists returns, for every slot with registrations in range, who attended,
// who did not and who is still unmarked. Slots are ordered by date and start time.
func AttendanceLists(ctx context.Context, store AttendanceServiceStore, logger *zap.Logger, from, to time.Time) ([]SlotAttendanceList, error) {
	from, to = dateOnly(from), dateOnly(to)
	slots, err := store.ListSlots(ctx, db.SlotFilter{From: &from, To: &to})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch slots: %w", err)
	}

	var slotIDs, userIDs []string
	for _, s := range slots {
		if s.RegisteredCount() == 0 {
			continue
		}
		slotIDs = append(slotIDs, s.ID)
		userIDs = append(userIDs, s.UserIDs()...)
	}
	lists := []SlotAttendanceList{}
	if len(slotIDs) == 0 {
		return lists, nil
	}

	records, err := store.ListAttendance(ctx, db.AttendanceFilter{SlotIDs: slotIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attendance: %w", err)
	}
	marks := make(map[string]*bool, len(records))
	for _, r := range records {
		marks[r.SlotID+"/"+r.UserID] = r.Attended
	}

	users, err := store.ListUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users: %w", err)
	}
	byID := make(map[string]db.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	for _, s := range slots {
		if s.RegisteredCount() == 0 {
			continue
		}
		list := SlotAttendanceList{Slot: s, Attended: []db.User{}, Absent: []db.User{}, Unmarked: []db.User{}}
		for _, userID := range s.UserIDs() {
			user, ok := byID[userID]
			if !ok {
				continue
			}
			attended := marks[s.ID+"/"+userID]
			switch {
			case attended == nil:
				list.Unmarked = append(list.Unmarked, user)
			case *attended:
				list.Attended = append(list.Attended, user)
			default:
				list.Absent = append(list.Absent, user)
			}
		}
		lists = append(lists, list)
	}

	logger.Debug("Built attendance lists", zap.Int("slots", len(lists)))
	return lists, nil
}

// slotAfter orders slots by date then start time, latest first
func slotAfter(a, b db.Slot) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	return a.StartTime > b.StartTime
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

func boolLabel(b *bool) *string {
	if b == nil {
		return nil
	}
	s := "no"
	if *b {
		s = "yes"
	}
	return &s
}
