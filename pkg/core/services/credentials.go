package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/core/credentials"
	"github.com/jakechorley/promoter-slots/pkg/db"
	"github.com/jakechorley/promoter-slots/pkg/utils"
)

// runConsentFlow is replaced in tests
var runConsentFlow = utils.RunConsentFlow

// CredentialStatusResult describes the stored system Google credentials
type CredentialStatusResult struct {
	Configured    bool
	Expiry        time.Time
	Expired       bool
	LastUsed      time.Time
	CreatedBy     string
	MissingScopes []string
}

// StoreCredentials saves a token as the system Google credentials, replacing any previous one
func StoreCredentials(
	ctx context.Context,
	store db.CredentialStore,
	logger *zap.Logger,
	token *oauth2.Token,
	scope, createdBy string,
) (*db.GoogleCredentials, error) {
	if token == nil || token.AccessToken == "" {
		return nil, apperrors.Validation("an access token is required")
	}

	creds := credentials.FromOAuthToken(token, scope, createdBy)
	ts := now()
	creds.CreatedAt = ts
	creds.UpdatedAt = ts

	if err := store.UpsertCredentials(ctx, creds); err != nil {
		return nil, fmt.Errorf("failed to store credentials: %w", err)
	}

	logger.Info("Google credentials stored",
		zap.String("created_by", createdBy),
		zap.Time("expiry", creds.Expiry),
		zap.Bool("has_refresh_token", creds.RefreshToken != ""))
	return creds, nil
}

// CredentialStatus reports whether system credentials exist and whether they are usable
func CredentialStatus(ctx context.Context, store db.CredentialStore, logger *zap.Logger) (*CredentialStatusResult, error) {
	creds, err := store.GetCredentials(ctx, db.SystemCredentialsID)
	if errors.Is(err, apperrors.ErrCredentialsNotFound) {
		logger.Debug("No Google credentials stored")
		return &CredentialStatusResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credentials: %w", err)
	}

	return &CredentialStatusResult{
		Configured:    true,
		Expiry:        creds.Expiry,
		Expired:       creds.IsExpired(now()),
		LastUsed:      creds.LastUsed,
		CreatedBy:     creds.CreatedBy,
		MissingScopes: utils.MissingScopes(creds.Scope),
	}, nil
}

// DeleteCredentials removes the system Google credentials
func DeleteCredentials(ctx context.Context, store db.CredentialStore, logger *zap.Logger) error {
	if err := store.DeleteCredentials(ctx, db.SystemCredentialsID); err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	logger.Info("Google credentials deleted")
	return nil
}

// AuthorizeGoogle runs the interactive consent flow and stores the resulting token
func AuthorizeGoogle(
	ctx context.Context,
	store db.CredentialStore,
	oauthConfig *oauth2.Config,
	logger *zap.Logger,
	createdBy string,
) (*db.GoogleCredentials, error) {
	logger.Info("Starting Google authorization")

	token, scope, err := runConsentFlow(ctx, oauthConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize: %w", err)
	}

	return StoreCredentials(ctx, store, logger, token, scope, createdBy)
}
