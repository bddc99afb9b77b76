package db

import (
	"time"
)

// SlotStatus is the lifecycle status of a slot
type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusFull      SlotStatus = "full"
	SlotStatusCompleted SlotStatus = "completed"
	SlotStatusCancelled SlotStatus = "cancelled"
)

func (s SlotStatus) IsValid() bool {
	switch s {
	case SlotStatusAvailable, SlotStatusFull, SlotStatusCompleted, SlotStatusCancelled:
		return true
	}
	return false
}

// ApprovalState is the per-registration approval state inside a slot
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// UserState is the overall state of a candidate
type UserState string

const (
	UserStatePending     UserState = "pending"
	UserStateScheduled   UserState = "scheduled"
	UserStateMeetingHeld UserState = "meeting_held"
	UserStateApproved    UserState = "approved"
	UserStateRejected    UserState = "rejected"
)

func (s UserState) IsValid() bool {
	switch s {
	case UserStatePending, UserStateScheduled, UserStateMeetingHeld, UserStateApproved, UserStateRejected:
		return true
	}
	return false
}

// TimeSlotTemplate describes one daily time window of a schedule config
type TimeSlotTemplate struct {
	StartTime       string `json:"startTime" yaml:"startTime" validate:"required,hhmm"`
	EndTime         string `json:"endTime" yaml:"endTime" validate:"required,hhmm"`
	DurationMinutes int    `json:"duration" yaml:"duration" validate:"required,min=1,max=720"`
	Capacity        int    `json:"capacity" yaml:"capacity" validate:"required,min=10,max=15"`
}

// ScheduleConfig is the date-range policy slots are generated from
type ScheduleConfig struct {
	ID              string             `validate:"required"`
	Name            string             `validate:"required"`
	StartDate       time.Time          `validate:"required"`
	EndDate         time.Time          `validate:"required"`
	AllowedWeekDays []int              `validate:"required,min=1,dive,min=1,max=7"`
	TimeSlots       []TimeSlotTemplate `validate:"required,min=1,dive"`
	TimeZone        string             `validate:"required,timezone"`
	IsActive        bool
	AutoCreateSlots bool
	WeeksInAdvance  int `validate:"min=1,max=12"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FindTemplate returns the template matching the given start and end time
func (c *ScheduleConfig) FindTemplate(startTime, endTime string) (TimeSlotTemplate, bool) {
	for _, t := range c.TimeSlots {
		if t.StartTime == startTime && t.EndTime == endTime {
			return t, true
		}
	}
	return TimeSlotTemplate{}, false
}

// Registration links one user to one slot
type Registration struct {
	UserID          string
	RegisteredAt    time.Time
	ApprovalState   ApprovalState
	ApprovedAt      *time.Time
	ApprovedBy      string
	RejectionReason string
}

// Slot is a bookable meeting for a date and time window
type Slot struct {
	ID            string
	Date          time.Time // midnight UTC of the calendar date
	StartTime     string
	EndTime       string
	MaxCapacity   int
	Registrations []Registration
	MeetingLink   string
	MeetingID     string
	Status        SlotStatus
	ConfigID      string
	Description   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// User is a candidate for the promoter program
type User struct {
	ID                string
	Name              string
	Surname           string
	Email             string
	Phone             string
	Age               *int
	City              string
	ZipCode           string
	Experience        string
	Motivation        string
	Availability      string
	Languages         []string
	SlotID            string
	State             UserState
	Attended          *bool
	ApprovedAt        *time.Time
	ApprovedBy        string
	RejectionReason   string
	ApprovalEmailSent bool
	Imported          bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FullName returns "Name Surname"
func (u *User) FullName() string {
	if u.Surname == "" {
		return u.Name
	}
	return u.Name + " " + u.Surname
}

// Attendance records whether a user attended the meeting of a slot
type Attendance struct {
	ID       string
	UserID   string
	SlotID   string
	Attended *bool
	MarkedAt *time.Time
	MarkedBy string
	Notes    string
}

// GoogleCredentials is the system-wide OAuth token used for Calendar and Gmail
type GoogleCredentials struct {
	Identifier   string
	AccessToken  string
	RefreshToken string
	TokenType    string
	Scope        string
	Expiry       time.Time
	IsActive     bool
	LastUsed     time.Time
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsExpired reports whether the access token is expired at the given time
func (c *GoogleCredentials) IsExpired(now time.Time) bool {
	return !c.Expiry.After(now)
}

// NotificationKind identifies which message a notification outcome belongs to
type NotificationKind string

const (
	NotificationConfirmation NotificationKind = "confirmation"
	NotificationApproval     NotificationKind = "approval"
)

// NotificationStatus is the result of one send attempt
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationSkipped NotificationStatus = "skipped"
)

// NotificationOutcome records a single notification attempt
type NotificationOutcome struct {
	ID          string
	Kind        NotificationKind
	UserID      string
	SlotID      string
	Recipient   string
	Status      NotificationStatus
	Error       string
	AttemptedAt time.Time
}
