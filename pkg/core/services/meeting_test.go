package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

func TestGenerateMeetingLink_UsesTemplateDurationAndZone(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	require.NoError(t, store.InsertScheduleConfig(context.Background(), &db.ScheduleConfig{
		ID:       "cfg-1",
		Name:     "Verano",
		IsActive: true,
		TimeZone: "Europe/Madrid",
		TimeSlots: []db.TimeSlotTemplate{
			{StartTime: "09:00", EndTime: "10:00", DurationMinutes: 45, Capacity: 12},
		},
	}))
	slot := seedSlotWithUsers(store, "slot-1", 12, 2)
	slot.ConfigID = "cfg-1"
	store.addSlot(*slot)
	meetings := &mockMeetings{}

	updated, err := GenerateMeetingLink(context.Background(), store, testProviders(meetings, nil, nil), testConfig(), zap.NewNop(), "slot-1")

	require.NoError(t, err)
	require.Len(t, meetings.requests, 1)
	req := meetings.requests[0]
	assert.Equal(t, 45*time.Minute, req.End.Sub(req.Start))
	assert.Equal(t, "Europe/Madrid", req.TimeZone)
	assert.Equal(t, time.Date(2024, 6, 10, 7, 0, 0, 0, time.UTC), req.Start.UTC())
	assert.ElementsMatch(t, []string{"slot-1-user-a@example.com", "slot-1-user-b@example.com"}, req.Attendees)
	assert.Contains(t, req.RequestID, "meet-slot-1-")
	assert.Contains(t, req.Description, "45 minutos")

	assert.Equal(t, "https://meet.google.com/abc-defg-hij", updated.MeetingLink)
	assert.Equal(t, "event-"+req.RequestID, updated.MeetingID)
}

func TestGenerateMeetingLink_MissingConfigFallsBackToDefaults(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	slot := seedSlotWithUsers(store, "slot-1", 10, 1)
	slot.ConfigID = "deleted"
	store.addSlot(*slot)
	meetings := &mockMeetings{}

	_, err := GenerateMeetingLink(context.Background(), store, testProviders(meetings, nil, nil), testConfig(), zap.NewNop(), "slot-1")

	require.NoError(t, err)
	require.Len(t, meetings.requests, 1)
	assert.Equal(t, time.Hour, meetings.requests[0].End.Sub(meetings.requests[0].Start))
	assert.Equal(t, "America/Mexico_City", meetings.requests[0].TimeZone)
}

func TestGenerateMeetingLink_ExistingLinkIsKept(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	slot := seedSlotWithUsers(store, "slot-1", 10, 10)
	slot.MeetingLink = "https://meet.google.com/existing"
	store.addSlot(*slot)
	meetings := &mockMeetings{}

	updated, err := GenerateMeetingLink(context.Background(), store, testProviders(meetings, nil, nil), testConfig(), zap.NewNop(), "slot-1")

	require.NoError(t, err)
	assert.Equal(t, "https://meet.google.com/existing", updated.MeetingLink)
	assert.Empty(t, meetings.requests)
}

func TestGenerateMeetingLink_ProviderErrorLeavesSlotUntouched(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 10)
	meetings := &mockMeetings{err: apperrors.ErrMeetingCreationFailed}

	_, err := GenerateMeetingLink(context.Background(), store, testProviders(meetings, nil, nil), testConfig(), zap.NewNop(), "slot-1")

	assert.ErrorIs(t, err, apperrors.ErrMeetingCreationFailed)
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
	assert.Empty(t, store.slot("slot-1").MeetingLink)
}

func TestGenerateMeetingLink_NoCredentials(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 10)

	_, err := GenerateMeetingLink(context.Background(), store, failingProviders(), testConfig(), zap.NewNop(), "slot-1")

	assert.ErrorIs(t, err, apperrors.ErrCredentialsUnavailable)
}

func TestSendConfirmationNotifications_RecordsEachOutcome(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	slot := seedSlotWithUsers(store, "slot-1", 10, 3)
	slot.MeetingLink = "https://meet.google.com/abc-defg-hij"
	store.addSlot(*slot)
	noEmail := store.user("slot-1-user-c")
	noEmail.Email = ""
	store.addUser(*noEmail)
	mailer := &mockMailer{failFor: map[string]error{"slot-1-user-b@example.com": assert.AnError}}

	result, err := SendConfirmationNotifications(context.Background(), store, testProviders(nil, mailer, nil), testConfig(), zap.NewNop(), "slot-1")

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "slot-1-user-b", result.Failed[0].UserID)

	statuses := map[string]db.NotificationStatus{}
	for _, o := range store.outcomes {
		statuses[o.UserID] = o.Status
		assert.Equal(t, fixedNow, o.AttemptedAt)
	}
	assert.Equal(t, map[string]db.NotificationStatus{
		"slot-1-user-a": db.NotificationSent,
		"slot-1-user-b": db.NotificationFailed,
		"slot-1-user-c": db.NotificationSkipped,
	}, statuses)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, confirmationSubject, mailer.sent[0].Subject)
	assert.Contains(t, mailer.sent[0].Body, "Monday, June 10, 2024")
	assert.Contains(t, mailer.sent[0].Body, "09:00 - 10:00")
}
