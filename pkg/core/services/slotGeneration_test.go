package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/db"
)

func weekConfig() *db.ScheduleConfig {
	return &db.ScheduleConfig{
		ID:              "config-1",
		Name:            "Junio",
		StartDate:       time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), // Monday
		EndDate:         time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), // Sunday
		AllowedWeekDays: []int{1, 2, 3, 4, 5},
		TimeSlots: []db.TimeSlotTemplate{
			{StartTime: "09:00", EndTime: "10:00", DurationMinutes: 60, Capacity: 10},
		},
		TimeZone: "America/Mexico_City",
		IsActive: true,
	}
}

func TestGenerateSlots_WeekdaysOnly(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()

	result, err := GenerateSlots(context.Background(), store, zap.NewNop(), weekConfig())

	require.NoError(t, err)
	require.Len(t, result.Created, 5)
	assert.Empty(t, result.Failed)

	for i, slot := range result.Created {
		assert.Equal(t, time.Date(2024, 6, 3+i, 0, 0, 0, 0, time.UTC), slot.Date)
		assert.NotEqual(t, time.Saturday, slot.Date.Weekday())
		assert.NotEqual(t, time.Sunday, slot.Date.Weekday())
		assert.Equal(t, "09:00", slot.StartTime)
		assert.Equal(t, "10:00", slot.EndTime)
		assert.Equal(t, 10, slot.MaxCapacity)
		assert.Equal(t, db.SlotStatusAvailable, slot.Status)
		assert.Equal(t, "config-1", slot.ConfigID)
		assert.Empty(t, slot.Registrations)
	}
}

func TestGenerateSlots_Idempotent(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	ctx := context.Background()

	first, err := GenerateSlots(ctx, store, zap.NewNop(), weekConfig())
	require.NoError(t, err)
	second, err := GenerateSlots(ctx, store, zap.NewNop(), weekConfig())
	require.NoError(t, err)

	assert.Len(t, first.Created, 5)
	assert.Empty(t, second.Created)
	assert.Equal(t, 5, second.Skipped)

	slots, err := store.ListSlots(ctx, db.SlotFilter{})
	require.NoError(t, err)
	assert.Len(t, slots, 5)
}

func TestGenerateSlots_MultipleTemplatesAndWeekend(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	config := weekConfig()
	config.AllowedWeekDays = []int{6, 7}
	config.TimeSlots = append(config.TimeSlots, db.TimeSlotTemplate{
		StartTime: "16:00", EndTime: "17:00", DurationMinutes: 60, Capacity: 15,
	})

	result, err := GenerateSlots(context.Background(), store, zap.NewNop(), config)

	require.NoError(t, err)
	require.Len(t, result.Created, 4)
	assert.Equal(t, time.Saturday, result.Created[0].Date.Weekday())
	assert.Equal(t, time.Sunday, result.Created[3].Date.Weekday())
	assert.Equal(t, 15, result.Created[1].MaxCapacity)
}

func TestGenerateSlots_CollectsPerSlotFailures(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	store.insertSlotErr["2024-06-05_09:00"] = errors.New("connection reset")

	result, err := GenerateSlots(context.Background(), store, zap.NewNop(), weekConfig())

	require.NoError(t, err)
	assert.Len(t, result.Created, 4)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC), result.Failed[0].Date)
	assert.Contains(t, result.Failed[0].Error, "connection reset")
}

func TestGenerateSlots_KeepsExistingSlots(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	existing := seedSlotWithUsers(store, "existing", 10, 2)

	result, err := GenerateSlots(context.Background(), store, zap.NewNop(), &db.ScheduleConfig{
		ID:              "config-1",
		StartDate:       existing.Date,
		EndDate:         existing.Date,
		AllowedWeekDays: []int{1},
		TimeSlots:       []db.TimeSlotTemplate{{StartTime: "09:00", EndTime: "10:00", DurationMinutes: 60, Capacity: 10}},
	})

	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 2, store.slot("existing").RegisteredCount())
}

func TestGenerateSlotsForWeek_UsesMondayBasedWeek(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	config := weekConfig()
	config.EndDate = time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.InsertScheduleConfig(context.Background(), config))

	// Thursday of the second week
	result, err := GenerateSlotsForWeek(context.Background(), store, testConfig(), zap.NewNop(), time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, result.Created, 5)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), result.Created[0].Date)
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), result.Created[4].Date)
}

func TestGenerateSlotsForWeek_OutsideRange(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	require.NoError(t, store.InsertScheduleConfig(context.Background(), weekConfig()))

	result, err := GenerateSlotsForWeek(context.Background(), store, testConfig(), zap.NewNop(), time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Empty(t, result.Created)
}

func TestGenerateSlotsForWeek_ClipsToConfigEnd(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	config := weekConfig()
	config.EndDate = time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC) // Wednesday
	require.NoError(t, store.InsertScheduleConfig(context.Background(), config))

	result, err := GenerateSlotsForWeek(context.Background(), store, testConfig(), zap.NewNop(), config.StartDate)

	require.NoError(t, err)
	assert.Len(t, result.Created, 3)
}

func TestWeekSlots_GeneratesWhenEmpty(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	require.NoError(t, store.InsertScheduleConfig(context.Background(), weekConfig()))

	slots, err := WeekSlots(context.Background(), store, testConfig(), zap.NewNop(), time.Date(2024, 6, 6, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Len(t, slots, 5)
}

func TestInitializeSystem_BootstrapsAndReportsCounts(t *testing.T) {
	useFixedClock(t, fixedNow)
	store := newMemStore()
	ctx := context.Background()

	result, err := InitializeSystem(ctx, store, testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.True(t, result.ConfigCreated)
	assert.NotEmpty(t, result.Generation.Created)
	assert.Equal(t, len(result.Generation.Created), result.Counts.Total)
	assert.Equal(t, result.Counts.Total, result.Counts.Available)

	again, err := InitializeSystem(ctx, store, testConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, again.ConfigCreated)
	assert.Empty(t, again.Generation.Created)
	assert.Equal(t, result.Counts.Total, again.Counts.Total)

	status, err := SystemStatus(ctx, store, zap.NewNop())
	require.NoError(t, err)
	assert.True(t, status.Initialized)
	assert.Equal(t, result.Config.ID, status.ActiveConfig.ID)
	// Mon 3 June to Mon 10 June inclusive: six weekdays, five slots each
	assert.Len(t, status.UpcomingSlots, 30)
}

func TestSystemStatus_NotInitialized(t *testing.T) {
	useFixedClock(t, fixedNow)

	status, err := SystemStatus(context.Background(), newMemStore(), zap.NewNop())

	require.NoError(t, err)
	assert.False(t, status.Initialized)
	assert.Nil(t, status.ActiveConfig)
	assert.Zero(t, status.Counts.Total)
}

func TestAllowedDates_RejectsInvalidWeekday(t *testing.T) {
	_, err := allowedDates([]int{8}, fixedNow, fixedNow)
	assert.Error(t, err)
}
