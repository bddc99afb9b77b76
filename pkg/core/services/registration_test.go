package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

func addCandidate(store *memStore, id string) *db.User {
	return store.addUser(db.User{ID: id, Name: "Ana", Surname: "López", Email: id + "@example.com"})
}

func TestRegister_BooksUserIntoSlot(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 0)
	addCandidate(store, "user-1")
	meetings := &mockMeetings{}

	result, err := Register(context.Background(), store, testProviders(meetings, &mockMailer{}, nil), testConfig(), zap.NewNop(), "slot-1", "user-1")

	require.NoError(t, err)
	assert.False(t, result.Filled)
	assert.Equal(t, 1, result.Slot.RegisteredCount())
	assert.Equal(t, db.SlotStatusAvailable, result.Slot.Status)

	reg := result.Slot.FindRegistration("user-1")
	require.NotNil(t, reg)
	assert.Equal(t, db.ApprovalPending, reg.ApprovalState)
	assert.Equal(t, fixedNow, reg.RegisteredAt)

	user := store.user("user-1")
	assert.Equal(t, "slot-1", user.SlotID)
	assert.Equal(t, db.UserStateScheduled, user.State)
	assert.Empty(t, meetings.requests)
}

func TestRegister_LastSeatFillsSlotAndRunsSideEffects(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 15, 14)
	addCandidate(store, "user-last")
	meetings := &mockMeetings{}
	mailer := &mockMailer{}

	result, err := Register(context.Background(), store, testProviders(meetings, mailer, nil), testConfig(), zap.NewNop(), "slot-1", "user-last")

	require.NoError(t, err)
	assert.True(t, result.Filled)
	assert.Equal(t, db.SlotStatusFull, result.Slot.Status)
	assert.Equal(t, 15, result.Slot.RegisteredCount())
	assert.Empty(t, result.MeetingError)

	// Meeting created once, with every registered user invited
	require.Len(t, meetings.requests, 1)
	req := meetings.requests[0]
	assert.Equal(t, "Reunión Promotoras - 09:00", req.Summary)
	assert.Len(t, req.Attendees, 15)
	assert.Equal(t, time.Hour, req.End.Sub(req.Start))
	assert.Equal(t, "America/Mexico_City", req.TimeZone)
	assert.Equal(t, 9, req.Start.Hour())

	stored := store.slot("slot-1")
	assert.Equal(t, "https://meet.google.com/abc-defg-hij", stored.MeetingLink)
	assert.NotEmpty(t, stored.MeetingID)

	// Every registered user was emailed the link
	require.NotNil(t, result.Notifications)
	assert.Equal(t, 15, result.Notifications.Sent)
	require.Len(t, mailer.sent, 15)
	assert.Contains(t, mailer.sent[0].Body, "https://meet.google.com/abc-defg-hij")
	assert.Len(t, store.outcomes, 15)
}

func TestRegister_FullSlotConflict(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 10)
	addCandidate(store, "late")

	_, err := Register(context.Background(), store, testProviders(&mockMeetings{}, &mockMailer{}, nil), testConfig(), zap.NewNop(), "slot-1", "late")

	assert.ErrorIs(t, err, apperrors.ErrSlotFull)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 10, store.slot("slot-1").RegisteredCount())
	assert.Empty(t, store.user("late").SlotID)
	assert.Equal(t, db.UserStatePending, store.user("late").State)
}

func TestRegister_DuplicateRegistrationConflict(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 3)
	before := store.slot("slot-1")

	_, err := Register(context.Background(), store, testProviders(&mockMeetings{}, &mockMailer{}, nil), testConfig(), zap.NewNop(), "slot-1", "slot-1-user-a")

	assert.ErrorIs(t, err, apperrors.ErrAlreadyRegistered)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, before, store.slot("slot-1"))
}

func TestRegister_UserBookedElsewhere(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 1)
	seedSlotWithUsers(store, "slot-2", 10, 0)

	_, err := Register(context.Background(), store, testProviders(&mockMeetings{}, &mockMailer{}, nil), testConfig(), zap.NewNop(), "slot-2", "slot-1-user-a")

	assert.ErrorIs(t, err, apperrors.ErrUserHasSlot)
	assert.Zero(t, store.slot("slot-2").RegisteredCount())
}

func TestRegister_ClosedSlot(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	slot := seedSlotWithUsers(store, "slot-1", 10, 0)
	slot.Status = db.SlotStatusCancelled
	store.addSlot(*slot)
	addCandidate(store, "user-1")

	_, err := Register(context.Background(), store, testProviders(&mockMeetings{}, &mockMailer{}, nil), testConfig(), zap.NewNop(), "slot-1", "user-1")

	assert.ErrorIs(t, err, apperrors.ErrSlotClosed)
}

func TestRegister_UnknownSlotOrUser(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 0)
	addCandidate(store, "user-1")
	providers := testProviders(&mockMeetings{}, &mockMailer{}, nil)

	_, err := Register(context.Background(), store, providers, testConfig(), zap.NewNop(), "missing", "user-1")
	assert.ErrorIs(t, err, apperrors.ErrSlotNotFound)

	_, err = Register(context.Background(), store, providers, testConfig(), zap.NewNop(), "slot-1", "missing")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}

func TestRegister_MeetingFailureKeepsRegistration(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 9)
	addCandidate(store, "user-last")
	meetings := &mockMeetings{err: apperrors.Wrap(apperrors.ErrExternalService, "failed to insert calendar event", errors.New("503"))}
	mailer := &mockMailer{}

	result, err := Register(context.Background(), store, testProviders(meetings, mailer, nil), testConfig(), zap.NewNop(), "slot-1", "user-last")

	require.NoError(t, err)
	assert.True(t, result.Filled)
	assert.Contains(t, result.MeetingError, "503")
	assert.Equal(t, 10, store.slot("slot-1").RegisteredCount())
	assert.Empty(t, store.slot("slot-1").MeetingLink)

	// Emails still go out, without a link
	assert.Len(t, mailer.sent, 10)
	assert.NotContains(t, mailer.sent[0].Body, "Google Meet Link:")
}

func TestRegister_MissingCredentialsRecordedNotPropagated(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 9)
	addCandidate(store, "user-last")

	result, err := Register(context.Background(), store, failingProviders(), testConfig(), zap.NewNop(), "slot-1", "user-last")

	require.NoError(t, err)
	assert.Contains(t, result.MeetingError, apperrors.ErrCredentialsUnavailable.Error())
	require.NotNil(t, result.Notifications)
	assert.Zero(t, result.Notifications.Sent)
	assert.Len(t, result.Notifications.Failed, 10)
	for _, o := range store.outcomes {
		assert.Equal(t, db.NotificationFailed, o.Status)
		assert.Equal(t, db.NotificationConfirmation, o.Kind)
	}
	assert.Equal(t, db.SlotStatusFull, store.slot("slot-1").Status)
}

func TestRegister_UserUpdateFailureRemovesRegistration(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 0)
	addCandidate(store, "user-1")
	store.updateUserErr = errors.New("connection lost")

	_, err := Register(context.Background(), store, testProviders(&mockMeetings{}, &mockMailer{}, nil), testConfig(), zap.NewNop(), "slot-1", "user-1")

	require.Error(t, err)
	assert.Zero(t, store.slot("slot-1").RegisteredCount())
}

func TestRegister_ConcurrentRegistrationsNeverExceedCapacity(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 0)
	for i := 0; i < 25; i++ {
		addCandidate(store, fmt.Sprintf("user-%02d", i))
	}
	providers := testProviders(&mockMeetings{}, &mockMailer{}, nil)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, full := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := Register(context.Background(), store, providers, testConfig(), zap.NewNop(), "slot-1", userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperrors.ErrSlotFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(fmt.Sprintf("user-%02d", i))
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, full)
	assert.Equal(t, 10, store.slot("slot-1").RegisteredCount())
	assert.Equal(t, db.SlotStatusFull, store.slot("slot-1").Status)
}

func TestRegisterUnregister_RandomSequenceRespectsCapacity(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 0)
	userIDs := make([]string, 20)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("user-%02d", i)
		addCandidate(store, userIDs[i])
	}
	providers := testProviders(&mockMeetings{}, &mockMailer{}, nil)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 300; i++ {
		userID := userIDs[rng.Intn(len(userIDs))]
		if rng.Intn(3) == 0 {
			_, err := Unregister(context.Background(), store, zap.NewNop(), "slot-1", userID)
			require.NoError(t, err)
		} else {
			_, _ = Register(context.Background(), store, providers, testConfig(), zap.NewNop(), "slot-1", userID)
		}

		slot := store.slot("slot-1")
		require.LessOrEqual(t, slot.RegisteredCount(), slot.MaxCapacity)
		assert.Equal(t, slot.IsFull(), slot.Status == db.SlotStatusFull)
	}
}

func TestUnregister_ReopensFullSlotAndUnlinksUser(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 10)

	slot, err := Unregister(context.Background(), store, zap.NewNop(), "slot-1", "slot-1-user-c")

	require.NoError(t, err)
	assert.Equal(t, 9, slot.RegisteredCount())
	assert.Equal(t, db.SlotStatusAvailable, slot.Status)
	assert.Nil(t, slot.FindRegistration("slot-1-user-c"))

	user := store.user("slot-1-user-c")
	assert.Empty(t, user.SlotID)
	assert.Equal(t, db.UserStateScheduled, user.State)
}

func TestUnregister_NotRegisteredIsNoop(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 2)
	addCandidate(store, "outsider")

	slot, err := Unregister(context.Background(), store, zap.NewNop(), "slot-1", "outsider")

	require.NoError(t, err)
	assert.Equal(t, 2, slot.RegisteredCount())
}

func TestApproveAndRejectRegistration(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 10)
	ctx := context.Background()

	_, err := RejectRegistration(ctx, store, zap.NewNop(), "slot-1", "slot-1-user-a", "no show", "admin")
	require.NoError(t, err)
	slot, err := ApproveRegistration(ctx, store, zap.NewNop(), "slot-1", "slot-1-user-a", "admin")
	require.NoError(t, err)

	reg := slot.FindRegistration("slot-1-user-a")
	require.NotNil(t, reg)
	assert.Equal(t, db.ApprovalApproved, reg.ApprovalState)
	assert.Empty(t, reg.RejectionReason)
	assert.Equal(t, "admin", reg.ApprovedBy)
	assert.Equal(t, 1, slot.ApprovedCount())
	assert.Equal(t, 9, slot.PendingCount())
	assert.True(t, slot.IsFull())

	_, err = ApproveRegistration(ctx, store, zap.NewNop(), "slot-1", "nobody", "admin")
	assert.ErrorIs(t, err, apperrors.ErrRegistrationNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSetSlotStatus(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 10)
	ctx := context.Background()

	slot, err := SetSlotStatus(ctx, store, zap.NewNop(), "slot-1", db.SlotStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, db.SlotStatusCompleted, slot.Status)

	// Reopening a slot at capacity lands on full
	slot, err = SetSlotStatus(ctx, store, zap.NewNop(), "slot-1", db.SlotStatusAvailable)
	require.NoError(t, err)
	assert.Equal(t, db.SlotStatusFull, slot.Status)

	_, err = SetSlotStatus(ctx, store, zap.NewNop(), "slot-1", db.SlotStatusFull)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestDeleteSlot_RefusesRegisteredSlot(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "busy", 10, 1)
	seedSlotWithUsers(store, "empty", 10, 0)
	ctx := context.Background()

	err := DeleteSlot(ctx, store, zap.NewNop(), "busy")
	assert.ErrorIs(t, err, apperrors.ErrPreconditionFailed)

	require.NoError(t, DeleteSlot(ctx, store, zap.NewNop(), "empty"))
	_, err = store.GetSlot(ctx, "empty")
	assert.ErrorIs(t, err, apperrors.ErrSlotNotFound)
}
