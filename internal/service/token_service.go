package service

import (
	"time"

	"github.com/iliyamo/chat-auth/internal/utils"
)

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Token   string
	Expires time.Time
}

// TokenPair is what login and registration hand back to the client.
type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// TokenIssuer mints tokens.  Implementations may be stateless (as TokenService
// is) or record issued tokens for later revocation.
type TokenIssuer interface {
	IssuePair(userID string) (TokenPair, error)
	IssueAccess(userID string) (IssuedToken, error)
}

// TokenVerifier checks tokens and returns the user id they carry.
type TokenVerifier interface {
	VerifyAccess(token string) (string, error)
	VerifyRefresh(token string) (string, error)
}

// TokenService signs access tokens and refresh tokens with two distinct
// secrets.  It keeps no state: a token stays valid until it expires.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now for both minting and verification.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService returns a TokenService.  Empty secrets are not rejected
// here; they surface as an internal error on first use, which main avoids by
// validating configuration at startup.
func NewTokenService(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, opts ...TokenOption) *TokenService {
	s := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var (
	_ TokenIssuer   = (*TokenService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)

// IssuePair mints an access token and a refresh token for userID.
func (s *TokenService) IssuePair(userID string) (TokenPair, error) {
	access, err := s.IssueAccess(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.SignToken(s.refreshSecret, utils.KindRefresh, userID, s.now(), s.refreshTTL)
	if err != nil {
		return TokenPair{}, internal("Token issuance failed", err)
	}
	return TokenPair{Access: access, Refresh: IssuedToken(refresh)}, nil
}

// IssueAccess mints a single access token for userID.
func (s *TokenService) IssueAccess(userID string) (IssuedToken, error) {
	access, err := utils.SignToken(s.accessSecret, utils.KindAccess, userID, s.now(), s.accessTTL)
	if err != nil {
		return IssuedToken{}, internal("Token issuance failed", err)
	}
	return IssuedToken(access), nil
}

// VerifyAccess returns the user id of a valid access token, or
// ErrInvalidToken when the token is malformed, expired, or signed with
// anything but the access secret.
func (s *TokenService) VerifyAccess(token string) (string, error) {
	uid, err := utils.ParseToken(s.accessSecret, utils.KindAccess, token, s.now)
	if err != nil {
		return "", wrap(ErrInvalidToken, err)
	}
	return uid, nil
}

// VerifyRefresh is VerifyAccess for refresh tokens; failures are
// ErrInvalidRefreshToken.
func (s *TokenService) VerifyRefresh(token string) (string, error) {
	uid, err := utils.ParseToken(s.refreshSecret, utils.KindRefresh, token, s.now)
	if err != nil {
		return "", wrap(ErrInvalidRefreshToken, err)
	}
	return uid, nil
}

// Refresh exchanges a valid refresh token for a new access token carrying the
// same user id.  The refresh token itself is not reissued.
func (s *TokenService) Refresh(refreshToken string) (IssuedToken, error) {
	uid, err := s.VerifyRefresh(refreshToken)
	if err != nil {
		return IssuedToken{}, err
	}
	return s.IssueAccess(uid)
}
