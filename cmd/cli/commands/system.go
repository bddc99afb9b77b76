package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
)

// InitSystemCmd creates the initSystem command
func InitSystemCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "initSystem",
		Short: "Create the default schedule config if none is active and generate its slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.InitializeSystem(app.Ctx, app.Database, app.Cfg, app.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ System initialized\n\n")
			if result.ConfigCreated {
				fmt.Printf("Created config: %s (%s)\n", result.Config.Name, result.Config.ID)
			} else {
				fmt.Printf("Active config:  %s (%s)\n", result.Config.Name, result.Config.ID)
			}
			fmt.Printf("Date range:     %s to %s\n", result.Config.StartDate.Format(dateLayout), result.Config.EndDate.Format(dateLayout))
			printGeneration(result.Generation)
			printCounts(result.Counts)
			return nil
		},
	}
}

// SystemStatusCmd creates the systemStatus command
func SystemStatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "systemStatus",
		Short: "Show the active config, slot counts and the slots of the next 7 days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := services.SystemStatus(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			if !status.Initialized {
				fmt.Printf("\n%s⚠️  System not initialized.%s Run initSystem to create the default config.\n\n", colorYellow, colorReset)
				return nil
			}

			fmt.Printf("\nActive config: %s (%s)\n", status.ActiveConfig.Name, status.ActiveConfig.ID)
			printCounts(status.Counts)

			fmt.Printf("Upcoming slots (%d):\n", len(status.UpcomingSlots))
			for _, s := range status.UpcomingSlots {
				printSlotLine(s)
			}
			fmt.Println()
			return nil
		},
	}
}

func printGeneration(g *services.GenerateSlotsResult) {
	if g == nil {
		return
	}
	fmt.Printf("Slots created:  %d\n", len(g.Created))
	fmt.Printf("Slots skipped:  %d\n", g.Skipped)
	if len(g.Failed) > 0 {
		fmt.Printf("⚠️  Failed to create %d slots:\n", len(g.Failed))
		for _, f := range g.Failed {
			fmt.Printf("  ✗ %s %s: %s\n", f.Date.Format(dateLayout), f.StartTime, f.Error)
		}
	}
}

func printCounts(c services.SlotCounts) {
	fmt.Printf("\nSlots: %d total, %d available, %d full, %d completed, %d cancelled\n\n",
		c.Total, c.Available, c.Full, c.Completed, c.Cancelled)
}
