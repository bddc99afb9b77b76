package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
)

// CreateUserCmd creates the createUser command
func CreateUserCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "createUser <name> <surname> <email>",
		Short: "Create a candidate",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := services.UserInput{
				Name:    args[0],
				Surname: args[1],
				Email:   args[2],
			}
			input.Phone, _ = cmd.Flags().GetString("phone")
			input.City, _ = cmd.Flags().GetString("city")
			input.ZipCode, _ = cmd.Flags().GetString("zip")
			input.Experience, _ = cmd.Flags().GetString("experience")
			input.Motivation, _ = cmd.Flags().GetString("motivation")
			input.Availability, _ = cmd.Flags().GetString("availability")
			input.Languages, _ = cmd.Flags().GetStringSlice("languages")
			if cmd.Flags().Changed("age") {
				age, _ := cmd.Flags().GetInt("age")
				input.Age = &age
			}

			user, err := services.CreateUser(app.Ctx, app.Database, app.Logger, input)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ User created: %s\n", user.ID)
			printUserLine(*user)
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().String("phone", "", "Phone number")
	cmd.Flags().Int("age", 0, "Age")
	cmd.Flags().String("city", "", "City")
	cmd.Flags().String("zip", "", "Zip code")
	cmd.Flags().String("experience", "", "Previous experience")
	cmd.Flags().String("motivation", "", "Motivation")
	cmd.Flags().String("availability", "", "Availability")
	cmd.Flags().StringSlice("languages", nil, "Spoken languages")

	return cmd
}

// ImportUsersCmd creates the importUsers command
func ImportUsersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "importUsers",
		Short: "Import candidates from the configured registrations spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := services.ImportUsersFromSheet(app.Ctx, app.Database, app.Providers, app.Cfg, app.Logger)
			if err != nil {
				return err
			}
			printImportResult(result)
			return nil
		},
	}
}

// ImportUsersFileCmd creates the importUsersFile command
func ImportUsersFileCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "importUsersFile <path.yaml>",
		Short: "Import candidates from a YAML list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			var rows []services.UserInput
			if err := yaml.Unmarshal(data, &rows); err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			result, err := services.ImportUsers(app.Ctx, app.Database, app.Logger, rows)
			if err != nil {
				return err
			}
			printImportResult(result)
			return nil
		},
	}
}

// FindUserCmd creates the findUser command
func FindUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "findUser <email>",
		Short: "Look up a user by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := services.FindUserByEmail(app.Ctx, app.Database, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Println()
			printUserLine(*user)
			fmt.Printf("    id: %s\n", user.ID)
			if user.SlotID != "" {
				fmt.Printf("    slot: %s\n", user.SlotID)
			}
			fmt.Printf("    attended: %s\n", attendedLabel(user.Attended))
			if user.RejectionReason != "" {
				fmt.Printf("    rejection reason: %s\n", user.RejectionReason)
			}
			fmt.Println()
			return nil
		},
	}
}

// ListUsersCmd creates the listUsers command
func ListUsersCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "listUsers",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := services.ListUsers(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}
			fmt.Printf("\nFound %d users:\n\n", len(users))
			for _, u := range users {
				printUserLine(u)
			}
			fmt.Println()
			return nil
		},
	}
}

// DeleteUserCmd creates the deleteUser command
func DeleteUserCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteUser <user_id>",
		Short: "Delete a user with their registration and attendance records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.DeleteUser(app.Ctx, app.Database, app.Logger, args[0]); err != nil {
				return err
			}
			fmt.Printf("\n✓ User %s deleted\n\n", args[0])
			return nil
		},
	}
}

func printImportResult(result *services.ImportResult) {
	fmt.Printf("\n✓ Imported %d users\n", len(result.Created))
	if len(result.Duplicates) > 0 {
		fmt.Printf("Skipped %d duplicates:\n", len(result.Duplicates))
		for _, email := range result.Duplicates {
			fmt.Printf("  - %s\n", email)
		}
	}
	if len(result.Failed) > 0 {
		fmt.Printf("⚠️  %d rows failed:\n", len(result.Failed))
		for _, f := range result.Failed {
			fmt.Printf("  ✗ row %d (%s): %s\n", f.Row, f.Email, f.Error)
		}
	}
	fmt.Println()
}
