package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// MarkAttendanceCmd creates the markAttendance command
func MarkAttendanceCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markAttendance <user_id> <yes|no|clear>",
		Short: "Record whether a user attended their slot's meeting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slotID, _ := cmd.Flags().GetString("slot")
			notes, _ := cmd.Flags().GetString("notes")

			attended, err := parseAttended(args[1])
			if err != nil {
				return err
			}

			record, err := services.MarkAttendance(app.Ctx, app.Database, app.Logger, services.MarkAttendanceInput{
				UserID:   args[0],
				SlotID:   slotID,
				Attended: attended,
				Notes:    notes,
				MarkedBy: app.Actor,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Attendance recorded: %s (slot %s)\n\n", attendedLabel(record.Attended), record.SlotID)
			return nil
		},
	}

	cmd.Flags().String("slot", "", "Slot id (defaults to the user's booked slot)")
	cmd.Flags().String("notes", "", "Free-text notes")

	return cmd
}

// CreateAttendanceCmd creates the createAttendance command
func CreateAttendanceCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createAttendance <slot_id>",
		Short: "Create unmarked attendance rows for every registered user of a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.BulkCreateForSlot(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Attendance rows created: %d (already present: %d)\n", len(result.Created), result.Existing)
			if len(result.Failed) > 0 {
				fmt.Printf("⚠️  Failed for %d users:\n", len(result.Failed))
				for _, f := range result.Failed {
					fmt.Printf("  ✗ %s: %s\n", f.UserID, f.Error)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

// SlotAttendanceCmd creates the slotAttendance command
func SlotAttendanceCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "slotAttendance <slot_id>",
		Short: "Show attendance counts for a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := services.GetSlotAttendanceStats(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("\nRegistered: %d\n", stats.Registered)
			fmt.Printf("%sAttended:   %d%s\n", colorGreen, stats.Attended, colorReset)
			fmt.Printf("%sAbsent:     %d%s\n", colorRed, stats.Absent, colorReset)
			fmt.Printf("%sUnmarked:   %d%s\n\n", colorDim, stats.Unmarked, colorReset)
			return nil
		},
	}
}

// AttendanceSummaryCmd creates the attendanceSummary command
func AttendanceSummaryCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attendanceSummary",
		Short: "Show attendance totals across every slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := services.GetAttendanceSummary(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}
			fmt.Printf("\nRecords:  %d\n", summary.TotalRecords)
			fmt.Printf("Attended: %d\n", summary.Attended)
			fmt.Printf("Absent:   %d\n", summary.Absent)
			fmt.Printf("Unmarked: %d\n", summary.Unmarked)
			fmt.Printf("Rate:     %.1f%%\n\n", summary.AttendanceRate)
			return nil
		},
	}
}

// ListAttendanceCmd creates the listAttendance command
func ListAttendanceCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listAttendance",
		Short: "List attendance records, most recent slot first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			attendedFlag, _ := cmd.Flags().GetString("attended")
			userID, _ := cmd.Flags().GetString("user")

			from, err := parseOptionalDate(fromFlag)
			if err != nil {
				return err
			}
			to, err := parseOptionalDate(toFlag)
			if err != nil {
				return err
			}
			attended, err := parseAttended(attendedFlag)
			if err != nil {
				return err
			}

			entries, err := services.ListAttendance(app.Ctx, app.Database, app.Logger, services.AttendanceQuery{
				From:     from,
				To:       to,
				Attended: attended,
				UserID:   userID,
			})
			if err != nil {
				return err
			}
			printAttendanceEntries(entries)
			return nil
		},
	}

	cmd.Flags().String("from", "", "First slot date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last slot date (YYYY-MM-DD)")
	cmd.Flags().String("attended", "", "Only yes or no records")
	cmd.Flags().String("user", "", "Only records of this user")

	return cmd
}

// AttendanceHistoryCmd creates the attendanceHistory command
func AttendanceHistoryCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attendanceHistory <user_id>",
		Short: "Show a user's attendance records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := services.UserAttendanceHistory(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}
			printAttendanceEntries(entries)
			return nil
		},
	}
}

// AttendanceListsCmd creates the attendanceLists command
func AttendanceListsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attendanceLists <from> <to>",
		Short: "Show who attended, missed or is unmarked for each slot in a date range",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseDate(args[0])
			if err != nil {
				return err
			}
			to, err := parseDate(args[1])
			if err != nil {
				return err
			}

			lists, err := services.AttendanceLists(app.Ctx, app.Database, app.Logger, from, to)
			if err != nil {
				return err
			}

			for _, list := range lists {
				fmt.Println()
				printSlotLine(list.Slot)
				printUserGroup("Attended", colorGreen, list.Attended)
				printUserGroup("Absent", colorRed, list.Absent)
				printUserGroup("Unmarked", colorDim, list.Unmarked)
			}
			fmt.Println()
			return nil
		},
	}
}

func printAttendanceEntries(entries []services.AttendanceEntry) {
	fmt.Printf("\nFound %d attendance records:\n\n", len(entries))
	for _, e := range entries {
		fmt.Printf("  %s %s-%s  %-9s %s <%s>\n",
			e.Slot.Date.Format(dateLayout), e.Slot.StartTime, e.Slot.EndTime,
			attendedLabel(e.Attendance.Attended), e.User.FullName(), e.User.Email)
	}
	fmt.Println()
}

func printUserGroup(label, color string, users []db.User) {
	if len(users) == 0 {
		return
	}
	fmt.Printf("    %s%s (%d)%s\n", color, label, len(users), colorReset)
	for _, u := range users {
		fmt.Printf("      %s <%s>\n", u.FullName(), u.Email)
	}
}
