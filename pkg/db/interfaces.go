package db

import (
	"context"
	"time"
)

// SlotFilter narrows ListSlots. Zero values mean "no filter".
type SlotFilter struct {
	From     *time.Time
	To       *time.Time
	Statuses []SlotStatus
	ConfigID string
	UserID   string // only slots the user is registered in
}

// AttendanceFilter narrows ListAttendance. Zero values mean "no filter".
type AttendanceFilter struct {
	UserID   string
	SlotIDs  []string
	Attended *bool
}

// ScheduleConfigStore defines the interface for schedule config database operations
type ScheduleConfigStore interface {
	GetScheduleConfig(ctx context.Context, id string) (*ScheduleConfig, error)
	GetActiveScheduleConfig(ctx context.Context) (*ScheduleConfig, error)
	ListScheduleConfigs(ctx context.Context) ([]ScheduleConfig, error)
	// InsertScheduleConfig inserts the config. When it is active, every other
	// config is deactivated in the same transaction.
	InsertScheduleConfig(ctx context.Context, config *ScheduleConfig) error
	ActivateScheduleConfig(ctx context.Context, id string) error
	// DeleteScheduleConfig deletes the config and its slots. Fails with
	// apperrors.ErrSlotHasRegistrations when any of its slots has registrations.
	DeleteScheduleConfig(ctx context.Context, id string) error
}

// SlotStore defines the interface for slot database operations
type SlotStore interface {
	GetSlot(ctx context.Context, id string) (*Slot, error)
	ListSlots(ctx context.Context, filter SlotFilter) ([]Slot, error)
	// ExistingSlotKeys returns the SlotKey of every slot dated within [from, to]
	ExistingSlotKeys(ctx context.Context, from, to time.Time) (map[string]bool, error)
	// InsertSlotIfAbsent inserts the slot unless one already exists for its
	// (date, start time). It reports whether a row was inserted.
	InsertSlotIfAbsent(ctx context.Context, slot *Slot) (bool, error)
	// UpdateSlotAtomically loads the slot under an exclusive lock, applies fn and
	// persists the result. Nothing is written when fn returns an error.
	UpdateSlotAtomically(ctx context.Context, id string, fn func(*Slot) error) (*Slot, error)
	// DeleteSlot deletes a slot without registrations
	DeleteSlot(ctx context.Context, id string) error
}

// UserStore defines the interface for user database operations
type UserStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListUsersByIDs(ctx context.Context, ids []string) ([]User, error)
	InsertUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context, id string) error
}

// AttendanceStore defines the interface for attendance database operations
type AttendanceStore interface {
	GetAttendance(ctx context.Context, userID, slotID string) (*Attendance, error)
	ListAttendance(ctx context.Context, filter AttendanceFilter) ([]Attendance, error)
	// UpsertAttendance inserts or updates the record for (user, slot)
	UpsertAttendance(ctx context.Context, attendance *Attendance) error
	DeleteAttendanceForUser(ctx context.Context, userID string) error
}

// CredentialStore defines the interface for Google credential database operations
type CredentialStore interface {
	GetCredentials(ctx context.Context, identifier string) (*GoogleCredentials, error)
	UpsertCredentials(ctx context.Context, creds *GoogleCredentials) error
	TouchCredentials(ctx context.Context, identifier string, usedAt time.Time) error
	DeleteCredentials(ctx context.Context, identifier string) error
}

// NotificationStore defines the interface for notification outcome database operations
type NotificationStore interface {
	InsertNotificationOutcome(ctx context.Context, outcome *NotificationOutcome) error
	ListNotificationOutcomes(ctx context.Context, userID string) ([]NotificationOutcome, error)
}

// Database defines the interface for all database operations.
// postgres.DB implements this interface.
type Database interface {
	ScheduleConfigStore
	SlotStore
	UserStore
	AttendanceStore
	CredentialStore
	NotificationStore
}

// SystemCredentialsID is the identifier of the single system-wide Google credential
const SystemCredentialsID = "system"
