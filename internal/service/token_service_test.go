package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTokens(clock *fakeClock) *TokenService {
	return NewTokenService("access-secret", "refresh-secret", 15*time.Minute, 7*24*time.Hour, WithClock(clock.Now))
}

func TestTokenService_IssuedAccessVerifies(t *testing.T) {
	ts := newTokens(&fakeClock{t: time.Now()})

	pair, err := ts.IssuePair("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access.Token)
	require.NotEmpty(t, pair.Refresh.Token)
	assert.NotEqual(t, pair.Access.Token, pair.Refresh.Token)

	uid, err := ts.VerifyAccess(pair.Access.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", uid)
}

func TestTokenService_DefaultLifetimes(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	ts := newTokens(clock)

	pair, err := ts.IssuePair("u")
	require.NoError(t, err)
	assert.Equal(t, clock.t.Add(15*time.Minute), pair.Access.Expires)
	assert.Equal(t, clock.t.Add(7*24*time.Hour), pair.Refresh.Expires)
}

func TestTokenService_AccessExpires(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ts := newTokens(clock)

	pair, err := ts.IssuePair("u")
	require.NoError(t, err)

	clock.Advance(16 * time.Minute)
	_, err = ts.VerifyAccess(pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, KindInvalidToken, KindOf(err))
}

func TestTokenService_RefreshExpiresAtBoundary(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	ts := newTokens(clock)

	pair, err := ts.IssuePair("user-7")
	require.NoError(t, err)

	// valid right after issuance
	access, err := ts.Refresh(pair.Refresh.Token)
	require.NoError(t, err)
	uid, err := ts.VerifyAccess(access.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", uid)

	// still valid just before the lifetime elapses
	clock.Advance(7*24*time.Hour - time.Minute)
	_, err = ts.Refresh(pair.Refresh.Token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = ts.Refresh(pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestTokenService_SecretsAreNotInterchangeable(t *testing.T) {
	ts := newTokens(&fakeClock{t: time.Now()})

	pair, err := ts.IssuePair("u")
	require.NoError(t, err)

	_, err = ts.Refresh(pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "access token must not refresh")

	_, err = ts.VerifyRefresh(pair.Access.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = ts.VerifyAccess(pair.Refresh.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "refresh token must not authorize requests")
}

func TestTokenService_Malformed(t *testing.T) {
	ts := newTokens(&fakeClock{t: time.Now()})

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		_, err := ts.VerifyAccess(raw)
		assert.ErrorIs(t, err, ErrInvalidToken, raw)
		_, err = ts.Refresh(raw)
		assert.ErrorIs(t, err, ErrInvalidRefreshToken, raw)
	}
}

func TestTokenService_MissingSecretIsInternal(t *testing.T) {
	ts := NewTokenService("", "refresh", time.Minute, time.Hour)

	_, err := ts.IssuePair("u")
	require.Error(t, err)
	assert.Equal(t, KindInternal, KindOf(err))

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.NotNil(t, se.Unwrap())
}

func TestTokenService_PairsDifferAcrossCalls(t *testing.T) {
	ts := newTokens(&fakeClock{t: time.Now()})

	a, err := ts.IssuePair("u")
	require.NoError(t, err)
	b, err := ts.IssuePair("u")
	require.NoError(t, err)

	assert.NotEqual(t, a.Access.Token, b.Access.Token)
	assert.NotEqual(t, a.Refresh.Token, b.Refresh.Token)
}
