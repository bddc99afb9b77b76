package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jakechorley/promoter-slots/pkg/db"
)

const dateLayout = "2006-01-02"

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorDim    = "\033[2m"
)

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return t, nil
}

// parseOptionalDate returns nil for an empty flag value
func parseOptionalDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := parseDate(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseAttended maps yes/no/clear onto an attendance mark
func parseAttended(value string) (*bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "si", "sí", "true":
		b := true
		return &b, nil
	case "no", "n", "false":
		b := false
		return &b, nil
	case "clear", "none", "":
		return nil, nil
	}
	return nil, fmt.Errorf("attended must be yes, no or clear, got %q", value)
}

// parseWeekDays parses a comma separated list of ISO weekdays, e.g. "1,2,3"
func parseWeekDays(value string) ([]int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var days []int
	for _, part := range strings.Split(value, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid weekday %q", part)
		}
		days = append(days, n)
	}
	return days, nil
}

// parseTimeSlots parses "09:00-10:00,16:00-17:00" into templates sharing one capacity and duration
func parseTimeSlots(value string, capacity, duration int) ([]db.TimeSlotTemplate, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var templates []db.TimeSlotTemplate
	for _, part := range strings.Split(value, ",") {
		start, end, ok := strings.Cut(strings.TrimSpace(part), "-")
		if !ok {
			return nil, fmt.Errorf("invalid time slot %q, expected HH:MM-HH:MM", part)
		}
		templates = append(templates, db.TimeSlotTemplate{
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: duration,
			Capacity:        capacity,
		})
	}
	return templates, nil
}

// capacityColor picks the color of a slot's occupancy cell
func capacityColor(status db.SlotStatus, registered, capacity int) string {
	switch status {
	case db.SlotStatusCancelled, db.SlotStatusCompleted:
		return colorDim
	}
	switch {
	case registered >= capacity:
		return colorRed
	case registered*2 >= capacity:
		return colorYellow
	default:
		return colorGreen
	}
}

func printSlotLine(s db.Slot) {
	color := capacityColor(s.Status, s.RegisteredCount(), s.MaxCapacity)
	cell := fmt.Sprintf("%d/%d", s.RegisteredCount(), s.MaxCapacity)
	fmt.Printf("  %s  %s-%s  %s%-7s%s %-10s %s",
		s.Date.Format("2006-01-02 Mon"), s.StartTime, s.EndTime,
		color, cell, colorReset, s.Status, s.ID)
	if s.MeetingLink != "" {
		fmt.Printf("  %s", s.MeetingLink)
	}
	fmt.Println()
}

func printUserLine(u db.User) {
	fmt.Printf("  - %s (%s) %s [%s]\n", u.FullName(), u.ID, u.Email, u.State)
}

func attendedLabel(b *bool) string {
	switch {
	case b == nil:
		return "unmarked"
	case *b:
		return "attended"
	default:
		return "absent"
	}
}
