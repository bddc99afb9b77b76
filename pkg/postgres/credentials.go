package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

// GetCredentials retrieves the active Google credentials with the given identifier
func (d *DB) GetCredentials(ctx context.Context, identifier string) (*db.GoogleCredentials, error) {
	var c db.GoogleCredentials
	var lastUsed *time.Time
	err := d.pool.QueryRow(ctx, `
		SELECT identifier, access_token, refresh_token, token_type, scope, expiry, is_active,
			last_used, created_by, created_at, updated_at
		FROM google_credentials
		WHERE identifier = $1 AND is_active
	`, identifier).Scan(&c.Identifier, &c.AccessToken, &c.RefreshToken, &c.TokenType, &c.Scope, &c.Expiry,
		&c.IsActive, &lastUsed, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if isNoRows(err) {
		return nil, apperrors.ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	if lastUsed != nil {
		c.LastUsed = *lastUsed
	}
	return &c, nil
}

// UpsertCredentials stores the credentials, replacing any existing record
func (d *DB) UpsertCredentials(ctx context.Context, c *db.GoogleCredentials) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO google_credentials (identifier, access_token, refresh_token, token_type, scope, expiry,
			is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (identifier) DO UPDATE
		SET access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			expiry = EXCLUDED.expiry,
			is_active = EXCLUDED.is_active,
			updated_at = NOW()
	`, c.Identifier, c.AccessToken, c.RefreshToken, c.TokenType, c.Scope, c.Expiry, c.IsActive, c.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to upsert credentials: %w", err)
	}
	return nil
}

// TouchCredentials records when the credentials were last used
func (d *DB) TouchCredentials(ctx context.Context, identifier string, usedAt time.Time) error {
	_, err := d.pool.Exec(ctx, `UPDATE google_credentials SET last_used = $2 WHERE identifier = $1`, identifier, usedAt)
	if err != nil {
		return fmt.Errorf("failed to update credentials last used: %w", err)
	}
	return nil
}

// DeleteCredentials deletes the credentials with the given identifier
func (d *DB) DeleteCredentials(ctx context.Context, identifier string) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM google_credentials WHERE identifier = $1`, identifier)
	if err != nil {
		return fmt.Errorf("failed to delete credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrCredentialsNotFound
	}
	return nil
}
