package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/jakechorley/promoter-slots/pkg/apperrors"
	"github.com/jakechorley/promoter-slots/pkg/db"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type mockStore struct {
	creds    *db.GoogleCredentials
	upserted *db.GoogleCredentials
	touched  time.Time
}

func (m *mockStore) GetCredentials(ctx context.Context, identifier string) (*db.GoogleCredentials, error) {
	if m.creds == nil {
		return nil, apperrors.ErrCredentialsNotFound
	}
	c := *m.creds
	return &c, nil
}

func (m *mockStore) UpsertCredentials(ctx context.Context, creds *db.GoogleCredentials) error {
	c := *creds
	m.upserted = &c
	m.creds = &c
	return nil
}

func (m *mockStore) TouchCredentials(ctx context.Context, identifier string, usedAt time.Time) error {
	m.touched = usedAt
	return nil
}

type mockRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (m *mockRefresher) Refresh(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.token, nil
}

func newTestResolver(store Store, refresher Refresher) *Resolver {
	r := NewResolver(store, refresher, zap.NewNop(), time.Second)
	r.now = func() time.Time { return fixedNow }
	return r
}

func TestToken_ValidCredentialsNotRefreshed(t *testing.T) {
	store := &mockStore{creds: &db.GoogleCredentials{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       fixedNow.Add(time.Hour),
	}}
	refresher := &mockRefresher{}

	token, err := newTestResolver(store, refresher).Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, 0, refresher.calls)
	assert.Nil(t, store.upserted)
	assert.Equal(t, fixedNow, store.touched)
}

func TestToken_ExpiredCredentialsRefreshedAndPersisted(t *testing.T) {
	store := &mockStore{creds: &db.GoogleCredentials{
		Identifier:   db.SystemCredentialsID,
		AccessToken:  "stale",
		RefreshToken: "keep-me",
		TokenType:    "Bearer",
		Scope:        "calendar",
		Expiry:       fixedNow.Add(-time.Minute),
	}}
	refresher := &mockRefresher{token: &oauth2.Token{
		AccessToken: "fresh",
		Expiry:      fixedNow.Add(time.Hour),
	}}

	token, err := newTestResolver(store, refresher).Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "fresh", token.AccessToken)
	assert.Equal(t, "keep-me", token.RefreshToken)
	require.NotNil(t, store.upserted)
	assert.Equal(t, "fresh", store.upserted.AccessToken)
	assert.Equal(t, "keep-me", store.upserted.RefreshToken)
	assert.Equal(t, "Bearer", store.upserted.TokenType)
	assert.Equal(t, "calendar", store.upserted.Scope)
	assert.Equal(t, fixedNow.Add(time.Hour), store.upserted.Expiry)
}

func TestToken_RefreshFailure(t *testing.T) {
	store := &mockStore{creds: &db.GoogleCredentials{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expiry:       fixedNow.Add(-time.Minute),
	}}
	refresher := &mockRefresher{err: errors.New("invalid_grant")}

	_, err := newTestResolver(store, refresher).Token(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	assert.ErrorIs(t, err, apperrors.ErrExternalService)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Nil(t, store.upserted)
}

func TestToken_ExpiredWithoutRefreshToken(t *testing.T) {
	store := &mockStore{creds: &db.GoogleCredentials{
		AccessToken: "stale",
		Expiry:      fixedNow.Add(-time.Minute),
	}}
	refresher := &mockRefresher{}

	_, err := newTestResolver(store, refresher).Token(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrRefreshFailed)
	assert.Equal(t, 0, refresher.calls)
}

func TestToken_NoCredentials(t *testing.T) {
	_, err := newTestResolver(&mockStore{}, &mockRefresher{}).Token(context.Background())

	assert.ErrorIs(t, err, apperrors.ErrCredentialsUnavailable)
}

func TestFromOAuthToken_DefaultsTokenType(t *testing.T) {
	creds := FromOAuthToken(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: fixedNow}, "scope", "admin")

	assert.Equal(t, db.SystemCredentialsID, creds.Identifier)
	assert.Equal(t, "Bearer", creds.TokenType)
	assert.True(t, creds.IsActive)
	assert.Equal(t, "admin", creds.CreatedBy)
}
