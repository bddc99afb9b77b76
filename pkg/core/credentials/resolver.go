package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// Store is the subset of the credential store the resolver needs
type Store interface {
	GetCredentials(ctx context.Context, identifier string) (*db.GoogleCredentials, error)
	UpsertCredentials(ctx context.Context, creds *db.GoogleCredentials) error
	TouchCredentials(ctx context.Context, identifier string, usedAt time.Time) error
}

// Refresher exchanges an expired token for a fresh one
type Refresher interface {
	Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// OAuthRefresher refreshes tokens through an oauth2.Config token source
type OAuthRefresher struct {
	Config *oauth2.Config
}

// Refresh implements Refresher
func (r OAuthRefresher) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	return r.Config.TokenSource(ctx, token).Token()
}

// Resolver hands out a valid access token for the system Google account
type Resolver struct {
	store     Store
	refresher Refresher
	logger    *zap.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewResolver creates a resolver. timeout bounds each refresh call.
func NewResolver(store Store, refresher Refresher, logger *zap.Logger, timeout time.Duration) *Resolver {
	return &Resolver{
		store:     store,
		refresher: refresher,
		logger:    logger,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Token loads the system credentials, refreshing and persisting them when expired,
// and marks them as used.
func (r *Resolver) Token(ctx context.Context) (*oauth2.Token, error) {
	r.logger.Debug("Loading system Google credentials")
	creds, err := r.store.GetCredentials(ctx, db.SystemCredentialsID)
	if errors.Is(err, apperrors.ErrCredentialsNotFound) {
		return nil, apperrors.ErrCredentialsUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	now := r.now()
	if creds.IsExpired(now) {
		r.logger.Info("Google access token expired, refreshing", zap.Time("expiry", creds.Expiry))
		creds, err = r.refresh(ctx, creds)
		if err != nil {
			return nil, err
		}
	}

	if err := r.store.TouchCredentials(ctx, db.SystemCredentialsID, now); err != nil {
		r.logger.Warn("Failed to mark credentials as used", zap.Error(err))
	}

	return ToOAuthToken(creds), nil
}

func (r *Resolver) refresh(ctx context.Context, creds *db.GoogleCredentials) (*db.GoogleCredentials, error) {
	if creds.RefreshToken == "" {
		return nil, apperrors.Because(apperrors.ErrRefreshFailed, errors.New("no refresh token stored"))
	}

	refreshCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fresh, err := r.refresher.Refresh(refreshCtx, ToOAuthToken(creds))
	if err != nil {
		r.logger.Error("Failed to refresh Google access token", zap.Error(err))
		return nil, apperrors.Because(apperrors.ErrRefreshFailed, err)
	}

	updated := *creds
	updated.AccessToken = fresh.AccessToken
	updated.Expiry = fresh.Expiry
	if fresh.RefreshToken != "" {
		updated.RefreshToken = fresh.RefreshToken
	}
	if fresh.TokenType != "" {
		updated.TokenType = fresh.TokenType
	}

	if err := r.store.UpsertCredentials(ctx, &updated); err != nil {
		return nil, fmt.Errorf("failed to save refreshed credentials: %w", err)
	}

	r.logger.Info("Google access token refreshed", zap.Time("expiry", updated.Expiry))
	return &updated, nil
}

// ToOAuthToken converts stored credentials into an oauth2 token
func ToOAuthToken(c *db.GoogleCredentials) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// FromOAuthToken converts an oauth2 token into the system credentials record
func FromOAuthToken(token *oauth2.Token, scope, createdBy string) *db.GoogleCredentials {
	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &db.GoogleCredentials{
		Identifier:   db.SystemCredentialsID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    tokenType,
		Scope:        scope,
		Expiry:       token.Expiry,
		IsActive:     true,
		CreatedBy:    createdBy,
	}
}
