package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jakechorley/promoter-slots/pkg/core/services"
)

// AuthorizeCmd creates the authorize command
func AuthorizeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "authorize",
		Short: "Grant Calendar, Gmail and Sheets access and store the system credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.requireOAuth(); err != nil {
				return err
			}

			creds, err := services.AuthorizeGoogle(app.Ctx, app.Database, app.OAuthConfig, app.Logger, app.Actor)
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Google credentials stored (expires %s)\n\n", creds.Expiry.Format("2006-01-02 15:04"))
			return nil
		},
	}
}

// CredentialStatusCmd creates the credentialStatus command
func CredentialStatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "credentialStatus",
		Short: "Show whether Google credentials are configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := services.CredentialStatus(app.Ctx, app.Database, app.Logger)
			if err != nil {
				return err
			}

			if !status.Configured {
				fmt.Printf("\n✗ Google credentials are not configured. Run authorize.\n\n")
				return nil
			}

			fmt.Printf("\n✓ Google credentials configured by %s\n", status.CreatedBy)
			fmt.Printf("Access token expiry: %s", status.Expiry.Format("2006-01-02 15:04"))
			if status.Expired {
				fmt.Printf(" %s(expired, will refresh on next use)%s", colorYellow, colorReset)
			}
			fmt.Println()
			if !status.LastUsed.IsZero() {
				fmt.Printf("Last used: %s\n", status.LastUsed.Format("2006-01-02 15:04"))
			}
			if len(status.MissingScopes) > 0 {
				fmt.Printf("⚠️  Missing scopes: %s\n", strings.Join(status.MissingScopes, ", "))
			}
			fmt.Println()
			return nil
		},
	}
}

// DeleteCredentialsCmd creates the deleteCredentials command
func DeleteCredentialsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteCredentials",
		Short: "Remove the stored Google credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := services.DeleteCredentials(app.Ctx, app.Database, app.Logger); err != nil {
				return err
			}
			fmt.Printf("\n✓ Google credentials deleted\n\n")
			return nil
		},
	}
}
