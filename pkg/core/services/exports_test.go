package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/core/model"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

func TestPublishAttendanceList(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	seedSlotWithUsers(store, "slot-1", 10, 3)
	markAttended(t, store, "slot-1-user-b")
	_, err := MarkAttendance(context.Background(), store, zap.NewNop(), MarkAttendanceInput{UserID: "slot-1-user-c", Attended: boolPtr(false)})
	require.NoError(t, err)
	sheets := &mockSheets{}
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

	result, err := PublishAttendanceList(context.Background(), store, testProviders(nil, nil, sheets), testConfig(), zap.NewNop(), day, day)

	require.NoError(t, err)
	assert.Equal(t, "Asistencia 2024-06-10 - 2024-06-10", result.TabTitle)
	assert.Equal(t, 3, result.Rows)
	assert.Equal(t, "attendance-sheet", sheets.sheetID)
	assert.Equal(t, []model.AttendanceSheetRow{
		{Date: "2024-06-10", Time: "09:00 - 10:00", Name: "Usuaria", Email: "slot-1-user-b@example.com", Status: "Asistió", Approval: "meeting_held"},
		{Date: "2024-06-10", Time: "09:00 - 10:00", Name: "Usuaria", Email: "slot-1-user-c@example.com", Status: "No asistió", Approval: "scheduled"},
		{Date: "2024-06-10", Time: "09:00 - 10:00", Name: "Usuaria", Email: "slot-1-user-a@example.com", Status: "Sin marcar", Approval: "scheduled"},
	}, sheets.published)
}

func TestPublishAttendanceList_Errors(t *testing.T) {
	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	store := newMemStore()

	cfg := testConfig()
	cfg.AttendanceSheetID = ""
	_, err := PublishAttendanceList(context.Background(), store, testProviders(nil, nil, &mockSheets{}), cfg, zap.NewNop(), day, day)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = PublishAttendanceList(context.Background(), store, testProviders(nil, nil, &mockSheets{}), testConfig(), zap.NewNop(), day, day.AddDate(0, 0, -1))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = PublishAttendanceList(context.Background(), store, failingProviders(), testConfig(), zap.NewNop(), day, day)
	assert.ErrorIs(t, err, apperrors.ErrCredentialsUnavailable)
}

func TestExportSlotsICS(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	linked := seedSlotWithUsers(store, "slot-1", 10, 10)
	linked.MeetingLink = "https://meet.google.com/abc-defg-hij"
	store.addSlot(*linked)
	cancelled := seedSlotWithUsers(store, "slot-2", 10, 0)
	cancelled.StartTime, cancelled.EndTime = "10:00", "11:00"
	cancelled.Status = db.SlotStatusCancelled
	store.addSlot(*cancelled)
	cfg := testConfig()
	cfg.TimeZone = "UTC"

	var buf bytes.Buffer
	day := linked.Date
	count, err := ExportSlotsICS(context.Background(), store, cfg, zap.NewNop(), day, day, &buf)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "UID:slot-1@cupos")
	assert.Contains(t, out, "DTSTART:20240610T090000Z")
	assert.Contains(t, out, "DTEND:20240610T100000Z")
	assert.Contains(t, out, "URL:https://meet.google.com/abc-defg-hij")
	assert.Contains(t, out, "Registradas: 10/10")
}

func TestExportSlotsICS_NoSlots(t *testing.T) {
	useFixedClock(t, fixedNow)
	var buf bytes.Buffer

	count, err := ExportSlotsICS(context.Background(), newMemStore(), testConfig(), zap.NewNop(), fixedNow, fixedNow, &buf)

	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, buf.Len())
}
