package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/core/model"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

const icsProductID = "-//promoter-slots//cupos//ES"

const (
	labelAttended = "Asistió"
	labelAbsent   = "No asistió"
	labelUnmarked = "Sin marcar"
)

// PublishResult represents the result of publishing an attendance list
type PublishResult struct {
	TabTitle string
	Rows     int
}

// PublishAttendanceList writes the attendance lists of the date range into the
// configured spreadsheet
func PublishAttendanceList(
	ctx context.Context,
	store AttendanceServiceStore,
	providers Providers,
	cfg *config.Config,
	logger *zap.Logger,
	from, to time.Time,
) (*PublishResult, error) {
	if cfg.AttendanceSheetID == "" {
		return nil, apperrors.Validation("attendanceSheetID is not configured")
	}
	from, to = dateOnly(from), dateOnly(to)
	if to.Before(from) {
		return nil, apperrors.Validation("end date must not be before start date")
	}

	lists, err := AttendanceLists(ctx, store, logger, from, to)
	if err != nil {
		return nil, err
	}
	rows := buildAttendanceSheetRows(lists)
	logger.Debug("Built attendance rows", zap.Int("rows", len(rows)))

	sheets, err := providers.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	providerCtx, cancel := providerContext(ctx, cfg)
	defer cancel()

	tabTitle, err := sheets.PublishAttendanceList(providerCtx, cfg.AttendanceSheetID, from, to, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to publish attendance list: %w", err)
	}

	logger.Info("Attendance list published", zap.String("tab", tabTitle), zap.Int("rows", len(rows)))
	return &PublishResult{TabTitle: tabTitle, Rows: len(rows)}, nil
}

func buildAttendanceSheetRows(lists []SlotAttendanceList) []model.AttendanceSheetRow {
	rows := []model.AttendanceSheetRow{}
	for _, list := range lists {
		groups := []struct {
			label string
			users []db.User
		}{
			{labelAttended, list.Attended},
			{labelAbsent, list.Absent},
			{labelUnmarked, list.Unmarked},
		}
		for _, g := range groups {
			for _, u := range g.users {
				rows = append(rows, model.AttendanceSheetRow{
					Date:     list.Slot.Date.Format("2006-01-02"),
					Time:     list.Slot.StartTime + " - " + list.Slot.EndTime,
					Name:     u.FullName(),
					Email:    u.Email,
					Phone:    u.Phone,
					Status:   g.label,
					Approval: string(u.State),
				})
			}
		}
	}
	return rows
}

// ExportSlotsICS writes an iCalendar feed of the slots dated within [from, to] and
// returns the number of events written
func ExportSlotsICS(
	ctx context.Context,
	store SlotReadStore,
	cfg *config.Config,
	logger *zap.Logger,
	from, to time.Time,
	w io.Writer,
) (int, error) {
	from, to = dateOnly(from), dateOnly(to)
	slots, err := store.ListSlots(ctx, db.SlotFilter{From: &from, To: &to})
	if err != nil {
		return 0, fmt.Errorf("failed to fetch slots: %w", err)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	stamp := now()
	for _, slot := range slots {
		if slot.Status == db.SlotStatusCancelled {
			continue
		}
		event, err := slotEvent(slot, cfg.TimeZone, stamp)
		if err != nil {
			return 0, err
		}
		cal.Children = append(cal.Children, event.Component)
	}

	if len(cal.Children) == 0 {
		// An empty VCALENDAR is rejected by the encoder
		logger.Info("No slots to export", zap.Time("from", from), zap.Time("to", to))
		return 0, nil
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return 0, fmt.Errorf("failed to encode calendar: %w", err)
	}

	logger.Info("Slots exported", zap.Int("events", len(cal.Children)))
	return len(cal.Children), nil
}

func slotEvent(slot db.Slot, timeZone string, stamp time.Time) (*ical.Event, error) {
	start, err := slotStart(slot.Date, slot.StartTime, timeZone)
	if err != nil {
		return nil, err
	}
	end, err := slotStart(slot.Date, slot.EndTime, timeZone)
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, errors.New("slot " + slot.ID + " ends before it starts")
	}

	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, slot.ID+"@cupos")
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	event.Props.SetText(ical.PropSummary, fmt.Sprintf("Reunión Promotoras - %s", slot.StartTime))
	event.Props.SetText(ical.PropDescription, fmt.Sprintf("Registradas: %d/%d. Estado: %s.",
		slot.RegisteredCount(), slot.MaxCapacity, slot.Status))

	if slot.MeetingLink != "" {
		event.Props.SetText(ical.PropLocation, slot.MeetingLink)
		urlProp := ical.NewProp(ical.PropURL)
		urlProp.Value = slot.MeetingLink
		event.Props.Set(urlProp)
	}

	return event, nil
}
