package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/promoter-slots/cmd/cli/commands"
	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/postgres"
	"github.com/jakechorley/promoter-slots/pkg/utils"
	"github.com/jakechorley/promoter-slots/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	actor   string
	app     = &commands.AppContext{}
	pgDB    *postgres.DB
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Promoter slots CLI - Manage recruitment meeting slots",
		Long: `A CLI tool for managing promoter recruitment: schedule configs, meeting slots,
registrations, Google Meet links, attendance and approvals.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if pgDB != nil {
				pgDB.Close()
			}
			if app.Logger != nil {
				_ = app.Logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	_ = rootCmd.MarkPersistentFlagRequired("env")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.PersistentFlags().StringVar(&actor, "by", "admin", "Name recorded as approver or attendance marker")

	rootCmd.AddCommand(
		commands.InitSystemCmd(app),
		commands.SystemStatusCmd(app),

		commands.CreateConfigCmd(app),
		commands.ListConfigsCmd(app),
		commands.ActivateConfigCmd(app),
		commands.DeleteConfigCmd(app),
		commands.GenerateSlotsCmd(app),
		commands.GenerateWeekCmd(app),
		commands.WeekSlotsCmd(app),

		commands.ListSlotsCmd(app),
		commands.ViewSlotCmd(app),
		commands.AppointmentsCmd(app),
		commands.SetSlotStatusCmd(app),
		commands.DeleteSlotCmd(app),
		commands.GenerateMeetingCmd(app),
		commands.SendConfirmationsCmd(app),

		commands.RegisterCmd(app),
		commands.UnregisterCmd(app),
		commands.ApproveRegistrationCmd(app),
		commands.RejectRegistrationCmd(app),

		commands.MarkAttendanceCmd(app),
		commands.CreateAttendanceCmd(app),
		commands.SlotAttendanceCmd(app),
		commands.AttendanceSummaryCmd(app),
		commands.ListAttendanceCmd(app),
		commands.AttendanceHistoryCmd(app),
		commands.AttendanceListsCmd(app),

		commands.CandidatesCmd(app),
		commands.ApproveUserCmd(app),
		commands.RejectUserCmd(app),
		commands.BulkApproveCmd(app),
		commands.ApprovalStatsCmd(app),
		commands.ApprovedUsersCmd(app),

		commands.CreateUserCmd(app),
		commands.ImportUsersCmd(app),
		commands.ImportUsersFileCmd(app),
		commands.FindUserCmd(app),
		commands.ListUsersCmd(app),
		commands.DeleteUserCmd(app),

		commands.AuthorizeCmd(app),
		commands.CredentialStatusCmd(app),
		commands.DeleteCredentialsCmd(app),

		commands.PublishAttendanceCmd(app),
		commands.ExportICSCmd(app),

		commands.InteractiveCmd(app),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp loads config, sets up the logger, connects to the database and wires
// the Google providers
func initApp() error {
	var err error
	app.Ctx = context.Background()
	app.Actor = actor

	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app.Logger, err = logging.InitLogger(logging.Options{Env: env, LogsDir: app.Cfg.LogsDir, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Info("Starting application", zap.String("environment", env))

	app.Logger.Info("Connecting to database")
	pgDB, err = postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pgDB.RunMigrations(app.Ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	app.Database = pgDB
	app.Logger.Debug("Database initialized successfully")

	// Commands that don't touch Google still work without an OAuth client
	app.OAuthCfg, err = config.LoadOAuthClientWithEnv(env)
	if err != nil {
		app.Logger.Warn("OAuth client not configured, Google features disabled", zap.Error(err))
		app.OAuthCfg = nil
		app.Providers = commands.UnavailableProviders(err)
		return nil
	}

	app.OAuthConfig, err = utils.GetOAuthConfig(app.OAuthCfg)
	if err != nil {
		return fmt.Errorf("failed to build OAuth config: %w", err)
	}

	resolver := commands.NewResolver(app.Cfg, pgDB, app.OAuthConfig, app.Logger)
	app.Providers = commands.NewProviders(app.Cfg, app.OAuthCfg, resolver)
	app.Logger.Debug("Google providers configured")

	return nil
}
