package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
)

// RegisterCmd creates the register command
func RegisterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "register <slot_id> <user_id>",
		Short: "Book a user into a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.Register(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger, args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ %s registered\n\n", result.User.FullName())
			printSlotLine(*result.Slot)

			if result.Filled {
				fmt.Printf("\n%sSlot is now full.%s\n", colorYellow, colorReset)
				if result.MeetingError != "" {
					fmt.Printf("⚠️  Meeting link could not be generated: %s\n", result.MeetingError)
				}
				if result.Notifications != nil {
					printNotificationResult(result.Notifications)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

// UnregisterCmd creates the unregister command
func UnregisterCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unregister <slot_id> <user_id>",
		Short: "Remove a user from a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := services.Unregister(app.Ctx, app.Database, app.Logger, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ User removed\n\n")
			printSlotLine(*slot)
			fmt.Println()
			return nil
		},
	}
}

// ApproveRegistrationCmd creates the approveRegistration command
func ApproveRegistrationCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approveRegistration <slot_id> <user_id>",
		Short: "Approve a user's registration in a slot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := services.ApproveRegistration(app.Ctx, app.Database, app.Logger, args[0], args[1], app.Actor)
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Registration approved (%d approved, %d pending)\n\n", slot.ApprovedCount(), slot.PendingCount())
			return nil
		},
	}
}

// RejectRegistrationCmd creates the rejectRegistration command
func RejectRegistrationCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rejectRegistration <slot_id> <user_id> [reason...]",
		Short: "Reject a user's registration in a slot",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason := strings.Join(args[2:], " ")
			slot, err := services.RejectRegistration(app.Ctx, app.Database, app.Logger, args[0], args[1], reason, app.Actor)
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Registration rejected (%d approved, %d pending)\n\n", slot.ApprovedCount(), slot.PendingCount())
			return nil
		},
	}
}
