package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/clients/calendarclient"
	"github.com/jakechorley/promoter-slots/pkg/core/model"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

var fixedNow = time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

// useFixedClock pins the service clock for the duration of a test
func useFixedClock(t *testing.T, ts time.Time) {
	t.Helper()
	previous := now
	now = func() time.Time { return ts }
	t.Cleanup(func() { now = previous })
}

func testConfig() *config.Config {
	return &config.Config{
		DatabaseURL:            "postgres://localhost/cupos_test",
		TimeZone:               "America/Mexico_City",
		CalendarID:             "primary",
		GmailSender:            "cupos@example.com",
		CandidateSheetID:       "candidate-sheet",
		CandidatesTab:          "Candidatas",
		AttendanceSheetID:      "attendance-sheet",
		ProviderTimeoutSeconds: 5,
	}
}

func boolPtr(b bool) *bool { return &b }

// memStore is an in-memory db.Database. Slot mutations run the same db.Slot
// methods under a mutex, mirroring the row lock of the postgres store.
type memStore struct {
	mu         sync.Mutex
	configs    map[string]*db.ScheduleConfig
	slots      map[string]*db.Slot
	users      map[string]*db.User
	attendance map[string]*db.Attendance
	creds      map[string]*db.GoogleCredentials
	outcomes   []db.NotificationOutcome

	updateUserErr error
	insertSlotErr map[string]error // by slot key
}

var _ db.Database = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		configs:       map[string]*db.ScheduleConfig{},
		slots:         map[string]*db.Slot{},
		users:         map[string]*db.User{},
		attendance:    map[string]*db.Attendance{},
		creds:         map[string]*db.GoogleCredentials{},
		insertSlotErr: map[string]error{},
	}
}

func cloneSlot(s *db.Slot) *db.Slot {
	c := *s
	c.Registrations = append([]db.Registration{}, s.Registrations...)
	return &c
}

func cloneUser(u *db.User) *db.User {
	c := *u
	c.Languages = append([]string{}, u.Languages...)
	return &c
}

// addSlot stores a slot directly, for test setup
func (m *memStore) addSlot(s db.Slot) *db.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.Status == "" {
		s.Status = db.SlotStatusAvailable
	}
	m.slots[s.ID] = cloneSlot(&s)
	return cloneSlot(&s)
}

// addUser stores a user directly, for test setup
func (m *memStore) addUser(u db.User) *db.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.State == "" {
		u.State = db.UserStatePending
	}
	m.users[u.ID] = cloneUser(&u)
	return cloneUser(&u)
}

func (m *memStore) slot(id string) *db.Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneSlot(m.slots[id])
}

func (m *memStore) user(id string) *db.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneUser(m.users[id])
}

// Schedule configs

func (m *memStore) GetScheduleConfig(ctx context.Context, id string) (*db.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.configs[id]
	if !ok {
		return nil, apperrors.ErrConfigNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) GetActiveScheduleConfig(ctx context.Context) (*db.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configs {
		if c.IsActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNoActiveConfig
}

func (m *memStore) ListScheduleConfigs(ctx context.Context) ([]db.ScheduleConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	configs := make([]db.ScheduleConfig, 0, len(m.configs))
	for _, c := range m.configs {
		configs = append(configs, *c)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

func (m *memStore) InsertScheduleConfig(ctx context.Context, config *db.ScheduleConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.configs {
		if c.Name == config.Name {
			return apperrors.ErrDuplicateConfigName
		}
	}
	if config.IsActive {
		for _, c := range m.configs {
			c.IsActive = false
		}
	}
	cp := *config
	m.configs[config.ID] = &cp
	return nil
}

func (m *memStore) ActivateScheduleConfig(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return apperrors.ErrConfigNotFound
	}
	for _, c := range m.configs {
		c.IsActive = c.ID == id
	}
	return nil
}

func (m *memStore) DeleteScheduleConfig(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[id]; !ok {
		return apperrors.ErrConfigNotFound
	}
	for _, s := range m.slots {
		if s.ConfigID == id && len(s.Registrations) > 0 {
			return apperrors.ErrSlotHasRegistrations
		}
	}
	for sid, s := range m.slots {
		if s.ConfigID == id {
			delete(m.slots, sid)
		}
	}
	delete(m.configs, id)
	return nil
}

// Slots

func (m *memStore) GetSlot(ctx context.Context, id string) (*db.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, apperrors.ErrSlotNotFound
	}
	return cloneSlot(s), nil
}

func (m *memStore) ListSlots(ctx context.Context, filter db.SlotFilter) ([]db.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var slots []db.Slot
	for _, s := range m.slots {
		if filter.From != nil && s.Date.Before(dateOnly(*filter.From)) {
			continue
		}
		if filter.To != nil && s.Date.After(dateOnly(*filter.To)) {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, s.Status) {
			continue
		}
		if filter.ConfigID != "" && s.ConfigID != filter.ConfigID {
			continue
		}
		if filter.UserID != "" && s.FindRegistration(filter.UserID) == nil {
			continue
		}
		slots = append(slots, *cloneSlot(s))
	}
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots, nil
}

func containsStatus(statuses []db.SlotStatus, status db.SlotStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (m *memStore) ExistingSlotKeys(ctx context.Context, from, to time.Time) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := map[string]bool{}
	for _, s := range m.slots {
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		keys[s.Key()] = true
	}
	return keys, nil
}

func (m *memStore) InsertSlotIfAbsent(ctx context.Context, slot *db.Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertSlotErr[slot.Key()]; err != nil {
		return false, err
	}
	for _, s := range m.slots {
		if s.Key() == slot.Key() {
			return false, nil
		}
	}
	m.slots[slot.ID] = cloneSlot(slot)
	return true, nil
}

func (m *memStore) UpdateSlotAtomically(ctx context.Context, id string, fn func(*db.Slot) error) (*db.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, apperrors.ErrSlotNotFound
	}
	working := cloneSlot(s)
	if err := fn(working); err != nil {
		return nil, err
	}
	m.slots[id] = cloneSlot(working)
	return working, nil
}

func (m *memStore) DeleteSlot(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return apperrors.ErrSlotNotFound
	}
	if len(s.Registrations) > 0 {
		return apperrors.ErrSlotHasRegistrations
	}
	delete(m.slots, id)
	return nil
}

// Users

func (m *memStore) GetUser(ctx context.Context, id string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (m *memStore) ListUsers(ctx context.Context) ([]db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]db.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memStore) ListUsersByIDs(ctx context.Context, ids []string) ([]db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []db.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			users = append(users, *cloneUser(u))
		}
	}
	return users, nil
}

func (m *memStore) InsertUser(ctx context.Context, user *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return apperrors.ErrDuplicateEmail
		}
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *memStore) UpdateUser(ctx context.Context, user *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateUserErr != nil {
		return m.updateUserErr
	}
	if _, ok := m.users[user.ID]; !ok {
		return apperrors.ErrUserNotFound
	}
	m.users[user.ID] = cloneUser(user)
	return nil
}

func (m *memStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperrors.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// Attendance

func attendanceKey(userID, slotID string) string {
	return userID + "/" + slotID
}

func (m *memStore) GetAttendance(ctx context.Context, userID, slotID string) (*db.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attendance[attendanceKey(userID, slotID)]
	if !ok {
		return nil, apperrors.ErrAttendanceNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListAttendance(ctx context.Context, filter db.AttendanceFilter) ([]db.Attendance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var records []db.Attendance
	for _, a := range m.attendance {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if len(filter.SlotIDs) > 0 && !containsString(filter.SlotIDs, a.SlotID) {
			continue
		}
		if filter.Attended != nil && (a.Attended == nil || *a.Attended != *filter.Attended) {
			continue
		}
		records = append(records, *a)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func (m *memStore) UpsertAttendance(ctx context.Context, attendance *db.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attendanceKey(attendance.UserID, attendance.SlotID)
	if existing, ok := m.attendance[key]; ok {
		attendance.ID = existing.ID
	}
	cp := *attendance
	m.attendance[key] = &cp
	return nil
}

func (m *memStore) DeleteAttendanceForUser(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, a := range m.attendance {
		if a.UserID == userID {
			delete(m.attendance, key)
		}
	}
	return nil
}

// Credentials

func (m *memStore) GetCredentials(ctx context.Context, identifier string) (*db.GoogleCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[identifier]
	if !ok {
		return nil, apperrors.ErrCredentialsNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpsertCredentials(ctx context.Context, creds *db.GoogleCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *creds
	m.creds[creds.Identifier] = &cp
	return nil
}

func (m *memStore) TouchCredentials(ctx context.Context, identifier string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.creds[identifier]; ok {
		c.LastUsed = usedAt
	}
	return nil
}

func (m *memStore) DeleteCredentials(ctx context.Context, identifier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[identifier]; !ok {
		return apperrors.ErrCredentialsNotFound
	}
	delete(m.creds, identifier)
	return nil
}

// Notifications

func (m *memStore) InsertNotificationOutcome(ctx context.Context, outcome *db.NotificationOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, *outcome)
	return nil
}

func (m *memStore) ListNotificationOutcomes(ctx context.Context, userID string) ([]db.NotificationOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var outcomes []db.NotificationOutcome
	for _, o := range m.outcomes {
		if userID == "" || o.UserID == userID {
			outcomes = append(outcomes, o)
		}
	}
	return outcomes, nil
}

// Provider mocks

type mockMeetings struct {
	mu       sync.Mutex
	requests []calendarclient.MeetingRequest
	err      error
}

func (m *mockMeetings) CreateMeeting(ctx context.Context, req calendarclient.MeetingRequest) (*calendarclient.Meeting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &calendarclient.Meeting{
		EventID:  "event-" + req.RequestID,
		VideoURI: "https://meet.google.com/abc-defg-hij",
	}, nil
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]error
}

func (m *mockMailer) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failFor[to]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

type mockSheets struct {
	candidates []model.Candidate
	err        error
	published  []model.AttendanceSheetRow
	sheetID    string
}

func (m *mockSheets) ListCandidates(ctx context.Context, spreadsheetID, tab string) ([]model.Candidate, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

func (m *mockSheets) PublishAttendanceList(ctx context.Context, spreadsheetID string, from, to time.Time, rows []model.AttendanceSheetRow) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.sheetID = spreadsheetID
	m.published = rows
	return "Asistencia " + from.Format("2006-01-02") + " - " + to.Format("2006-01-02"), nil
}

func testProviders(meetings *mockMeetings, mailer *mockMailer, sheets *mockSheets) Providers {
	return Providers{
		Meetings: func(ctx context.Context) (MeetingProvider, error) { return meetings, nil },
		Mailer:   func(ctx context.Context) (Mailer, error) { return mailer, nil },
		Sheets:   func(ctx context.Context) (SheetsProvider, error) { return sheets, nil },
	}
}

// failingProviders behaves as if no Google credentials were stored
func failingProviders() Providers {
	return Providers{
		Meetings: func(ctx context.Context) (MeetingProvider, error) { return nil, apperrors.ErrCredentialsUnavailable },
		Mailer:   func(ctx context.Context) (Mailer, error) { return nil, apperrors.ErrCredentialsUnavailable },
		Sheets:   func(ctx context.Context) (SheetsProvider, error) { return nil, apperrors.ErrCredentialsUnavailable },
	}
}

// seedSlotWithUsers creates a slot with the given capacity and `registered` users booked into it
func seedSlotWithUsers(m *memStore, id string, capacity, registered int) *db.Slot {
	slot := db.Slot{
		ID:          id,
		Date:        time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:00",
		EndTime:     "10:00",
		MaxCapacity: capacity,
		Status:      db.SlotStatusAvailable,
	}
	for i := 0; i < registered; i++ {
		userID := id + "-user-" + string(rune('a'+i))
		m.addUser(db.User{
			ID:     userID,
			Name:   "Usuaria",
			Email:  userID + "@example.com",
			SlotID: id,
			State:  db.UserStateScheduled,
		})
		slot.Registrations = append(slot.Registrations, db.Registration{
			UserID:        userID,
			RegisteredAt:  fixedNow,
			ApprovalState: db.ApprovalPending,
		})
	}
	slot.RecomputeStatus()
	return m.addSlot(slot)
}
