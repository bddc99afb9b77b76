package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// CandidatesCmd creates the candidates command
func CandidatesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List users who attended at least one meeting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			state, _ := cmd.Flags().GetString("state")
			fromFlag, _ := cmd.Flags().GetString("from")
			toFlag, _ := cmd.Flags().GetString("to")

			if state != "" && !db.UserState(state).IsValid() {
				return fmt.Errorf("invalid state %q", state)
			}
			from, err := parseOptionalDate(fromFlag)
			if err != nil {
				return err
			}
			to, err := parseOptionalDate(toFlag)
			if err != nil {
				return err
			}

			candidates, err := services.ListAttendedCandidates(app.Ctx, app.Database, app.Logger, services.CandidateQuery{
				State: db.UserState(state),
				From:  from,
				To:    to,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d candidates:\n\n", len(candidates))
			for _, c := range candidates {
				printUserLine(c.User)
				for _, m := range c.Meetings {
					fmt.Printf("      attended %s %s-%s\n", m.Date.Format(dateLayout), m.StartTime, m.EndTime)
				}
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("state", "", "Only users in this state")
	cmd.Flags().String("from", "", "Attended on or after (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Attended on or before (YYYY-MM-DD)")

	return cmd
}

// ApproveUserCmd creates the approveUser command
func ApproveUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approveUser <user_id>",
		Short: "Approve a user who attended a meeting and send the approval email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ApproveUser(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger, args[0], app.Actor)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ %s approved\n", result.User.FullName())
			switch {
			case result.Notification == nil:
				fmt.Println("Approval email was already sent.")
			case result.Notification.Status == db.NotificationSent:
				fmt.Printf("Approval email sent to %s\n", result.Notification.Recipient)
			default:
				fmt.Printf("⚠️  Approval email %s: %s\n", result.Notification.Status, result.Notification.Error)
			}
			fmt.Println()
			return nil
		},
	}
}

// RejectUserCmd creates the rejectUser command
func RejectUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rejectUser <user_id> <reason...>",
		Short: "Reject a user with a reason",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := services.RejectUser(app.Ctx, app.Database, app.Logger, args[0], strings.Join(args[1:], " "), app.Actor)
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ %s rejected: %s\n\n", user.FullName(), user.RejectionReason)
			return nil
		},
	}
}

// BulkApproveCmd creates the bulkApprove command
func BulkApproveCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bulkApprove <user_id>...",
		Short: "Approve several users; each one succeeds or fails independently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.BulkApprove(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger, args, app.Actor)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Bulk approval completed: %d approved, %d failed\n\n", result.Approved, result.Failed)
			for _, item := range result.Items {
				switch {
				case !item.Approved:
					fmt.Printf("  ✗ %s: %s\n", item.UserID, item.Error)
				case !item.EmailSent:
					fmt.Printf("  ✓ %s (email not sent)\n", item.UserID)
				default:
					fmt.Printf("  ✓ %s\n", item.UserID)
				}
			}
			fmt.Println()
			return nil
		},
	}
}

// ApprovalStatsCmd creates the approvalStats command
func ApprovalStatsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approvalStats",
		Short: "Show approval counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := services.GetApprovalStatistics(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}
			fmt.Printf("\nApproved:         %d\n", stats.Approved)
			fmt.Printf("Rejected:         %d\n", stats.Rejected)
			fmt.Printf("Meeting held:     %d\n", stats.MeetingHeld)
			fmt.Printf("Pending approval: %d\n\n", stats.PendingApproval)
			return nil
		},
	}
}

// ApprovedUsersCmd creates the approvedUsers command
func ApprovedUsersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "approvedUsers",
		Short: "List approved users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := services.ListApprovedUsers(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}
			fmt.Printf("\nFound %d approved users:\n\n", len(users))
			for _, u := range users {
				printUserLine(u)
			}
			fmt.Println()
			return nil
		},
	}
}
