package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jakechorley/promoter-slots/pkg/db"
)

func TestCapacityColor(t *testing.T) {
	tests := []struct {
		name       string
		status     db.SlotStatus
		registered int
		capacity   int
		expected   string
	}{
		{"empty slot - green", db.SlotStatusAvailable, 0, 15, colorGreen},
		{"under half - green", db.SlotStatusAvailable, 7, 15, colorGreen},
		{"half - yellow", db.SlotStatusAvailable, 5, 10, colorYellow},
		{"almost full - yellow", db.SlotStatusAvailable, 14, 15, colorYellow},
		{"full - red", db.SlotStatusFull, 15, 15, colorRed},
		{"cancelled - dim", db.SlotStatusCancelled, 3, 10, colorDim},
		{"completed full - dim", db.SlotStatusCompleted, 10, 10, colorDim},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, capacityColor(tt.status, tt.registered, tt.capacity))
		})
	}
}

func TestParseAttended(t *testing.T) {
	yes, err := parseAttended("Sí")
	require.NoError(t, err)
	require.NotNil(t, yes)
	assert.True(t, *yes)

	no, err := parseAttended("no")
	require.NoError(t, err)
	require.NotNil(t, no)
	assert.False(t, *no)

	cleared, err := parseAttended("clear")
	require.NoError(t, err)
	assert.Nil(t, cleared)

	_, err = parseAttended("maybe")
	assert.Error(t, err)
}

func TestParseTimeSlots(t *testing.T) {
	slots, err := parseTimeSlots("09:00-10:00, 16:00-17:00", 12, 45)

	require.NoError(t, err)
	assert.Equal(t, []db.TimeSlotTemplate{
		{StartTime: "09:00", EndTime: "10:00", DurationMinutes: 45, Capacity: 12},
		{StartTime: "16:00", EndTime: "17:00", DurationMinutes: 45, Capacity: 12},
	}, slots)

	_, err = parseTimeSlots("09:00", 12, 45)
	assert.Error(t, err)
}

func TestParseWeekDays(t *testing.T) {
	days, err := parseWeekDays("1, 3,5")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, days)

	days, err = parseWeekDays("")
	require.NoError(t, err)
	assert.Nil(t, days)

	_, err = parseWeekDays("1,x")
	assert.Error(t, err)
}

func TestParseOptionalDate(t *testing.T) {
	d, err := parseOptionalDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseOptionalDate("2024-06-10")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 10, d.Day())

	_, err = parseOptionalDate("10/06/2024")
	assert.Error(t, err)
}
