package sheetsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/promoter-slots/pkg/core/model"
)

var attendanceHeader = []interface{}{"Fecha", "Horario", "Nombre", "Email", "Teléfono", "Asistencia", "Estado"}

// PublishAttendanceList writes attendance rows into a tab named after the date range.
// The tab is created when missing and fully overwritten otherwise. Returns the tab title.
func (c *Client) PublishAttendanceList(
	ctx context.Context,
	spreadsheetID string,
	from, to time.Time,
	rows []model.AttendanceSheetRow,
) (string, error) {
	tabTitle := attendanceTabTitle(from, to)

	exists, err := c.HasSheet(ctx, spreadsheetID, tabTitle)
	if err != nil {
		return "", err
	}

	if exists {
		if err := c.ClearValues(ctx, spreadsheetID, tabTitle); err != nil {
			return "", fmt.Errorf("failed to clear tab: %w", err)
		}
	} else {
		if _, err := c.CreateSheet(ctx, spreadsheetID, tabTitle); err != nil {
			return "", fmt.Errorf("failed to create tab: %w", err)
		}
	}

	if err := c.WriteValues(ctx, spreadsheetID, tabTitle+"!A1", buildAttendanceValues(rows)); err != nil {
		return "", fmt.Errorf("failed to write attendance list: %w", err)
	}

	return tabTitle, nil
}

// attendanceTabTitle creates a tab title in the format "Asistencia 2025-03-03 - 2025-03-09"
func attendanceTabTitle(from, to time.Time) string {
	return fmt.Sprintf("Asistencia %s - %s", from.Format("2006-01-02"), to.Format("2006-01-02"))
}

func buildAttendanceValues(rows []model.AttendanceSheetRow) [][]interface{} {
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, attendanceHeader)
	for _, r := range rows {
		values = append(values, []interface{}{r.Date, r.Time, r.Name, r.Email, r.Phone, r.Status, r.Approval})
	}
	return values
}
