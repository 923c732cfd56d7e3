package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("secret", time.Hour, 6*time.Hour)

	token, err := svc.Issue("user-1", AudienceUser)
	require.NoError(t, err)

	sub, err := svc.Verify(token, AudienceUser)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestTokenService_AudiencesAreSeparate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour, 6*time.Hour)

	userToken, err := svc.Issue("user-1", AudienceUser)
	require.NoError(t, err)
	_, err = svc.Verify(userToken, AudienceAdmin)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	adminToken, err := svc.Issue("admin-1", AudienceAdmin)
	require.NoError(t, err)
	_, err = svc.Verify(adminToken, AudienceUser)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_Expiry(t *testing.T) {
	svc := NewTokenService("secret", time.Hour, 6*time.Hour)
	issued := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issued }

	userToken, err := svc.Issue("user-1", AudienceUser)
	require.NoError(t, err)
	adminToken, err := svc.Issue("admin-1", AudienceAdmin)
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = svc.Verify(userToken, AudienceUser)
	assert.ErrorIs(t, err, ErrTokenExpired)

	sub, err := svc.Verify(adminToken, AudienceAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", sub)
}

func TestTokenService_WrongSecret(t *testing.T) {
	token, err := NewTokenService("one", time.Hour, time.Hour).Issue("u", AudienceUser)
	require.NoError(t, err)

	_, err = NewTokenService("two", time.Hour, time.Hour).Verify(token, AudienceUser)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = NewTokenService("two", time.Hour, time.Hour).Verify("garbage", AudienceUser)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
