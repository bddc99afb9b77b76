package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/clients/calendarclient"
	"github.com/jakechorley/promoter-slots/pkg/core/model"
	"github.com/jakechorley/promoter-slots/pkg/utils/validation"
)

// now is the clock used by every service; tests replace it
var now = func() time.Time { return time.Now().UTC() }

func newID() string {
	return uuid.New().String()
}

// MeetingProvider defines the operations needed to schedule video meetings
type MeetingProvider interface {
	CreateMeeting(ctx context.Context, req calendarclient.MeetingRequest) (*calendarclient.Meeting, error)
}

// Mailer defines the operations needed to send notification emails
type Mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

// SheetsProvider defines the spreadsheet operations used for candidate import and attendance export
type SheetsProvider interface {
	ListCandidates(ctx context.Context, spreadsheetID, tab string) ([]model.Candidate, error)
	PublishAttendanceList(ctx context.Context, spreadsheetID string, from, to time.Time, rows []model.AttendanceSheetRow) (string, error)
}

// Providers builds the Google-backed clients on demand. Each factory resolves
// the system credentials, so a factory error carries the credential failure
// (apperrors.ErrCredentialsUnavailable or apperrors.ErrRefreshFailed).
type Providers struct {
	Meetings func(ctx context.Context) (MeetingProvider, error)
	Mailer   func(ctx context.Context) (Mailer, error)
	Sheets   func(ctx context.Context) (SheetsProvider, error)
}

// FailedEmail represents an email that failed to send
type FailedEmail struct {
	UserID string
	Email  string
	Error  string
}

// providerContext bounds a call to an external provider by the configured timeout
func providerContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc) {
	seconds := cfg.ProviderTimeoutSeconds
	if seconds <= 0 {
		seconds = config.DefaultProviderTimeoutSeconds
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

// dateOnly truncates t to midnight UTC of its calendar date
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// isoWeekday returns Monday=1 ... Sunday=7
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// startOfWeek returns the Monday of the week containing t
func startOfWeek(t time.Time) time.Time {
	d := dateOnly(t)
	return d.AddDate(0, 0, -(isoWeekday(d) - 1))
}

// slotStart combines a slot date and "HH:MM" start time in the given time zone
func slotStart(date time.Time, startTime, timeZone string) (time.Time, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time zone %q: %w", timeZone, err)
	}
	if !validation.IsHHMM(startTime) {
		return time.Time{}, fmt.Errorf("invalid start time %q", startTime)
	}
	minutes := validation.MinutesOfDay(startTime)
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}
