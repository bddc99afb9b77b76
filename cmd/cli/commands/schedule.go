package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// CreateConfigCmd creates the createConfig command
func CreateConfigCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createConfig <name> <start_date> <end_date>",
		Short: "Create a schedule config; it becomes the active config unless --inactive is set",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			weekDaysFlag, _ := cmd.Flags().GetString("weekdays")
			slotsFlag, _ := cmd.Flags().GetString("slots")
			capacity, _ := cmd.Flags().GetInt("capacity")
			duration, _ := cmd.Flags().GetInt("duration")
			timeZone, _ := cmd.Flags().GetString("timezone")
			inactive, _ := cmd.Flags().GetBool("inactive")
			autoCreate, _ := cmd.Flags().GetBool("auto-create")
			weeks, _ := cmd.Flags().GetInt("weeks-in-advance")
			generate, _ := cmd.Flags().GetBool("generate")

			start, err := parseDate(args[1])
			if err != nil {
				return err
			}
			end, err := parseDate(args[2])
			if err != nil {
				return err
			}
			weekDays, err := parseWeekDays(weekDaysFlag)
			if err != nil {
				return err
			}
			timeSlots, err := parseTimeSlots(slotsFlag, capacity, duration)
			if err != nil {
				return err
			}

			scheduleConfig, err := services.CreateScheduleConfig(app.Ctx, app.Database, app.Cfg, app.Logger, services.ScheduleConfigInput{
				Name:            args[0],
				StartDate:       start,
				EndDate:         end,
				AllowedWeekDays: weekDays,
				TimeSlots:       timeSlots,
				TimeZone:        timeZone,
				IsActive:        !inactive,
				AutoCreateSlots: autoCreate,
				WeeksInAdvance:  weeks,
			})
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Schedule config created!\n\n")
			printConfig(scheduleConfig.ID, scheduleConfig.Name, scheduleConfig.IsActive)

			if generate {
				result, err := services.GenerateSlots(app.Ctx, app.Database, app.Logger, scheduleConfig)
				if err != nil {
					return err
				}
				printGeneration(result)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("weekdays", "1,2,3,4,5", "Allowed ISO weekdays (1=Monday ... 7=Sunday)")
	cmd.Flags().String("slots", "09:00-10:00,10:00-11:00,16:00-17:00,17:00-18:00,18:00-19:00", "Daily time slots")
	cmd.Flags().Int("capacity", 15, "Capacity of each slot (10-15)")
	cmd.Flags().Int("duration", 60, "Meeting duration in minutes")
	cmd.Flags().String("timezone", "", "IANA time zone (defaults to the configured one)")
	cmd.Flags().Bool("inactive", false, "Create the config without activating it")
	cmd.Flags().Bool("auto-create", true, "Generate slots automatically")
	cmd.Flags().Int("weeks-in-advance", 0, "Weeks to generate ahead (defaults to 4)")
	cmd.Flags().Bool("generate", false, "Generate the config's slots after creating it")

	return cmd
}

// ListConfigsCmd creates the listConfigs command
func ListConfigsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listConfigs",
		Short: "List all schedule configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := services.ListScheduleConfigs(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			fmt.Printf("\nFound %d schedule configs:\n\n", len(configs))
			for _, c := range configs {
				active := ""
				if c.IsActive {
					active = colorGreen + " [active]" + colorReset
				}
				days := make([]string, len(c.AllowedWeekDays))
				for i, d := range c.AllowedWeekDays {
					days[i] = fmt.Sprint(d)
				}
				fmt.Printf("- %s (%s)%s\n", c.Name, c.ID, active)
				fmt.Printf("    %s to %s, weekdays %s, %d time slots, %s\n",
					c.StartDate.Format(dateLayout), c.EndDate.Format(dateLayout),
					strings.Join(days, ","), len(c.TimeSlots), c.TimeZone)
			}
			fmt.Println()
			return nil
		},
	}
}

// ActivateConfigCmd creates the activateConfig command
func ActivateConfigCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "activateConfig <config_id>",
		Short: "Make a schedule config the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scheduleConfig, err := services.ActivateScheduleConfig(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("\n✓ Config activated\n\n")
			printConfig(scheduleConfig.ID, scheduleConfig.Name, scheduleConfig.IsActive)
			fmt.Println()
			return nil
		},
	}
}

// DeleteConfigCmd creates the deleteConfig command
func DeleteConfigCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteConfig <config_id>",
		Short: "Delete an inactive schedule config and its slots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.DeleteScheduleConfig(app.Ctx, app.Database, app.Logger, args[0]); err != nil {
				return err
			}
			fmt.Printf("\n✓ Config %s deleted\n\n", args[0])
			return nil
		},
	}
}

// GenerateSlotsCmd creates the generateSlots command
func GenerateSlotsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generateSlots [config_id]",
		Short: "Generate the missing slots of a config (defaults to the active config)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var configID string
			if len(args) > 0 {
				configID = args[0]
			}

			scheduleConfig, err := resolveConfig(app, configID)
			if err != nil {
				return err
			}
			app.Logger.Debug("generateSlots command", zap.String("config_id", scheduleConfig.ID))

			result, err := services.GenerateSlots(app.Ctx, app.Database, app.Logger, scheduleConfig)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Slot generation completed for %s\n\n", scheduleConfig.Name)
			printGeneration(result)
			fmt.Println()
			return nil
		},
	}
}

// GenerateWeekCmd creates the generateWeek command
func GenerateWeekCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "generateWeek <date>",
		Short: "Generate the missing slots of the week (Monday to Sunday) containing date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}

			result, err := services.GenerateSlotsForWeek(app.Ctx, app.Database, app.Cfg, app.Logger, date)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Week generation completed\n\n")
			printGeneration(result)
			fmt.Println()
			return nil
		},
	}
}

// WeekSlotsCmd creates the weekSlots command
func WeekSlotsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "weekSlots <date>",
		Short: "Show the slots of the week containing date, generating them if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[0])
			if err != nil {
				return err
			}

			slots, err := services.WeekSlots(app.Ctx, app.Database, app.Cfg, app.Logger, date)
			if err != nil {
				return err
			}

			fmt.Printf("\n%d slots:\n\n", len(slots))
			for _, s := range slots {
				printSlotLine(s)
			}
			fmt.Println()
			return nil
		},
	}
}

func resolveConfig(app *AppContext, configID string) (*db.ScheduleConfig, error) {
	if configID == "" {
		return app.Database.GetActiveScheduleConfig(app.Ctx)
	}
	return app.Database.GetScheduleConfig(app.Ctx, configID)
}

func printConfig(id, name string, active bool) {
	fmt.Printf("Config ID: %s\n", id)
	fmt.Printf("Name:      %s\n", name)
	fmt.Printf("Active:    %t\n", active)
}
