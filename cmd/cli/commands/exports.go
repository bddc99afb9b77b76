package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
)

// PublishAttendanceCmd creates the publishAttendance command
func PublishAttendanceCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publishAttendance <from> <to>",
		Short: "Write the attendance lists of a date range to the configured spreadsheet",
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

			result, err := services.PublishAttendanceList(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger, from, to)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Published %d rows to tab %q\n\n", result.Rows, result.TabTitle)
			return nil
		},
	}
}

// ExportICSCmd creates the exportICS command
func ExportICSCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exportICS <from> <to>",
		Short: "Export the slots of a date range as an iCalendar feed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")

			from, err := parseDate(args[0])
			if err != nil {
				return err
			}
			to, err := parseDate(args[1])
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}

			count, err := services.ExportSlotsICS(app.Ctx, app.Database, app.Cfg, app.Logger, from, to, w)
			if err != nil {
				return err
			}

			if out != "" {
				fmt.Printf("\n✓ Exported %d slots to %s\n\n", count, out)
			}
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "Output file (defaults to stdout)")

	return cmd
}
