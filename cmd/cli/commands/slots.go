package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// ListSlotsCmd creates the listSlots command
func ListSlotsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listSlots",
		Short: "List slots, optionally filtered by date range and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			status, _ := cmd.Flags().GetString("status")
			openOnly, _ := cmd.Flags().GetBool("open")
			filledOnly, _ := cmd.Flags().GetBool("filled")

			from, err := parseOptionalDate(fromFlag)
			if err != nil {
				return err
			}
			to, err := parseOptionalDate(toFlag)
			if err != nil {
				return err
			}
			if status != "" && !db.SlotStatus(status).IsValid() {
				return fmt.Errorf("invalid status %q", status)
			}

			slots, err := services.ListSlots(app.Ctx, app.Database, app.Logger, services.SlotQuery{
				From:       from,
				To:         to,
				Status:     db.SlotStatus(status),
				OpenOnly:   openOnly,
				FilledOnly: filledOnly,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d slots:\n\n", len(slots))
			for _, s := range slots {
				printSlotLine(s)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last date (YYYY-MM-DD)")
	cmd.Flags().String("status", "", "Only slots with this status (available, full, completed, cancelled)")
	cmd.Flags().Bool("open", false, "Only available or full slots")
	cmd.Flags().Bool("filled", false, "Only slots with at least one registration")

	return cmd
}

// ViewSlotCmd creates the viewSlot command
func ViewSlotCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "viewSlot <slot_id>",
		Short: "Show a slot and its registered users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := services.GetSlotDetail(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Println()
			printSlotLine(detail.Slot)
			fmt.Printf("\nRegistrations (%d approved, %d pending):\n",
				detail.Slot.ApprovedCount(), detail.Slot.PendingCount())
			for _, u := range detail.Users {
				reg := detail.Slot.FindRegistration(u.ID)
				fmt.Printf("  - %s (%s) %s, registered %s, %s\n",
					u.FullName(), u.ID, u.Email,
					reg.RegisteredAt.Format("2006-01-02 15:04"), reg.ApprovalState)
			}
			fmt.Println()
			return nil
		},
	}
}

// AppointmentsCmd creates the appointments command
func AppointmentsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "Show slots grouped by day with their registered users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")
			from, err := parseOptionalDate(fromFlag)
			if err != nil {
				return err
			}
			to, err := parseOptionalDate(toFlag)
			if err != nil {
				return err
			}

			days, err := services.AppointmentsByDay(app.Ctx, app.Database, app.Logger, from, to)
			if err != nil {
				return err
			}

			for _, day := range days {
				fmt.Printf("\n%s (%d appointments)\n", day.Date, day.TotalAppointments)
				for _, d := range day.Slots {
					printSlotLine(d.Slot)
					for _, u := range d.Users {
						fmt.Printf("      %s <%s>\n", u.FullName(), u.Email)
					}
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("from", "", "First date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Last date (YYYY-MM-DD)")

	return cmd
}

// SetSlotStatusCmd creates the setSlotStatus command
func SetSlotStatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "setSlotStatus <slot_id> <available|completed|cancelled>",
		Short: "Complete, cancel or reopen a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := services.SetSlotStatus(app.Ctx, app.Database, app.Logger, args[0], db.SlotStatus(args[1]))
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Slot status updated\n\n")
			printSlotLine(*slot)
			fmt.Println()
			return nil
		},
	}
}

// DeleteSlotCmd creates the deleteSlot command
func DeleteSlotCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteSlot <slot_id>",
		Short: "Delete a slot without registrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.DeleteSlot(app.Ctx, app.Database, app.Logger, args[0]); err != nil {
				return err
			}
			fmt.Printf("\n✓ Slot %s deleted\n\n", args[0])
			return nil
		},
	}
}

// GenerateMeetingCmd creates the generateMeeting command
func GenerateMeetingCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generateMeeting <slot_id>",
		Short: "Create the Google Meet meeting of a slot if it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := services.GenerateMeetingLink(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Meeting link: %s\n\n", slot.MeetingLink)
			return nil
		},
	}
}

// SendConfirmationsCmd creates the sendConfirmations command
func SendConfirmationsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sendConfirmations <slot_id>",
		Short: "Email every registered user of a slot its date, time and meeting link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("sendConfirmations command", zap.String("slot_id", args[0]))

			result, err := services.SendConfirmationNotifications(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger, args[0])
			if err != nil {
				return err
			}
			printNotificationResult(result)
			return nil
		},
	}
}

func printNotificationResult(result *services.NotificationResult) {
	fmt.Printf("\n✓ Confirmation emails sent: %d\n", result.Sent)
	if len(result.Failed) > 0 {
		fmt.Printf("⚠️  Failed to send %d emails:\n", len(result.Failed))
		for _, fe := range result.Failed {
			fmt.Printf("  ✗ %s (%s): %s\n", fe.UserID, fe.Email, fe.Error)
		}
	}
	fmt.Println()
}
