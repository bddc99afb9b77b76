package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jakechorley/promoter-slots/internal/config"
	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/clients/calendarclient"
	"github.com/jakechorley/promoter-slots/pkg/clients/gmailclient"
	"github.com/jakechorley/promoter-slots/pkg/clients/sheetsclient"
	"github.com/jakechorley/promoter-slots/pkg/core/credentials"
	"github.com/jakechorley/promoter-slots/pkg/core/services"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg         *config.Config
	OAuthCfg    *config.OAuthClientConfig // nil when no OAuth client is configured
	OAuthConfig *oauth2.Config
	Database    db.Database
	Providers   services.Providers
	Logger      *zap.Logger
	Ctx         context.Context
	Actor       string // recorded as approver, marker or credential owner
}

// NewProviders builds the Google-backed providers. Every factory resolves the
// stored system credentials first, refreshing them when expired.
func NewProviders(cfg *config.Config, oauthCfg *config.OAuthClientConfig, resolver *credentials.Resolver) services.Providers {
	return services.Providers{
		Meetings: func(ctx context.Context) (services.MeetingProvider, error) {
			token, err := resolver.Token(ctx)
			if err != nil {
				return nil, err
			}
			client, err := calendarclient.NewClient(ctx, oauthCfg, token, cfg.CalendarID)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Mailer: func(ctx context.Context) (services.Mailer, error) {
			token, err := resolver.Token(ctx)
			if err != nil {
				return nil, err
			}
			client, err := gmailclient.NewClient(ctx, oauthCfg, token, cfg.GmailSender)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Sheets: func(ctx context.Context) (services.SheetsProvider, error) {
			token, err := resolver.Token(ctx)
			if err != nil {
				return nil, err
			}
			client, err := sheetsclient.NewClient(ctx, oauthCfg, token)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

// UnavailableProviders is used when no OAuth client is configured. Every
// factory fails with apperrors.ErrCredentialsUnavailable carrying the cause.
func UnavailableProviders(cause error) services.Providers {
	err := apperrors.Because(apperrors.ErrCredentialsUnavailable, cause)
	return services.Providers{
		Meetings: func(ctx context.Context) (services.MeetingProvider, error) { return nil, err },
		Mailer:   func(ctx context.Context) (services.Mailer, error) { return nil, err },
		Sheets:   func(ctx context.Context) (services.SheetsProvider, error) { return nil, err },
	}
}

// NewResolver creates the credential resolver for the system Google account
func NewResolver(cfg *config.Config, store credentials.Store, oauthConfig *oauth2.Config, logger *zap.Logger) *credentials.Resolver {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	return credentials.NewResolver(store, credentials.OAuthRefresher{Config: oauthConfig}, logger, timeout)
}

func (app *AppContext) requireOAuth() error {
	if app.OAuthConfig == nil {
		return fmt.Errorf("no OAuth client configured: %w", apperrors.ErrCredentialsUnavailable)
	}
	return nil
}
