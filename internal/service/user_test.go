package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRecordsReferral(t *testing.T) {
	users := newFakeUserRepo()
	referrals := newFakeReferralRepo()
	svc := NewUserService(users, referrals, discardLogger())

	require.NoError(t, svc.Register(context.Background(), 100, 5))
	assert.Equal(t, int64(5), referrals.records[100])

	_, err := users.Find(context.Background(), 100)
	assert.NoError(t, err)
}

func TestRegisterIgnoresSelfReferral(t *testing.T) {
	users := newFakeUserRepo()
	referrals := newFakeReferralRepo()
	svc := NewUserService(users, referrals, discardLogger())

	require.NoError(t, svc.Register(context.Background(), 100, 100))
	assert.Empty(t, referrals.records)

	require.NoError(t, svc.Register(context.Background(), 101, 0))
	assert.Empty(t, referrals.records)
}

func TestTrialAvailable(t *testing.T) {
	users := newFakeUserRepo()
	svc := NewUserService(users, newFakeReferralRepo(), discardLogger())

	ok, err := svc.TrialAvailable(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, ok, "unknown users may claim a trial")

	require.NoError(t, users.Ensure(context.Background(), 42))
	require.NoError(t, users.SetTrial(context.Background(), 42, 1))

	ok, err = svc.TrialAvailable(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseReferralPayload(t *testing.T) {
	assert.Equal(t, int64(123), ParseReferralPayload("ref_123"))
	assert.Equal(t, int64(0), ParseReferralPayload("ref_abc"))
	assert.Equal(t, int64(0), ParseReferralPayload("123"))
	assert.Equal(t, int64(0), ParseReferralPayload("ref_-5"))
	assert.Equal(t, int64(0), ParseReferralPayload(""))
}
