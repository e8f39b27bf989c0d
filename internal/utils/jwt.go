package utils // package utils provides the low-level token and password primitives

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind distinguishes access tokens from refresh tokens inside the
// claims, on top of the two tokens being signed with different secrets.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	// ErrMissingSecret means the signing secret was not configured.
	ErrMissingSecret = errors.New("signing secret is empty")
	// ErrWrongTokenKind means a token of the other kind was presented.
	ErrWrongTokenKind = errors.New("wrong token kind")
	// ErrMissingUserID means the token verified but carries no user id.
	ErrMissingUserID = errors.New("token has no user id")
)

// Claims is the payload of both token kinds.  UserID is the only
// application claim; the registered claims carry iat/exp and a random jti
// so that two tokens minted within the same second still differ.
type Claims struct {
	UserID string    `json:"userId"`
	Kind   TokenKind `json:"typ"`
	jwt.RegisteredClaims
}

// SignedToken is a serialized token along with its expiry.
type SignedToken struct {
	Token   string
	Expires time.Time
}

// SignToken builds and signs an HS256 token of the given kind for userID,
// valid for ttl from now.
func SignToken(secret []byte, kind TokenKind, userID string, now time.Time, ttl time.Duration) (SignedToken, error) {
	if len(secret) == 0 {
		return SignedToken{}, ErrMissingSecret
	}
	now = now.UTC()
	exp := now.Add(ttl)
	claims := Claims{
		UserID: userID,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return SignedToken{}, fmt.Errorf("sign %s token: %w", kind, err)
	}
	return SignedToken{Token: signed, Expires: exp.Truncate(time.Second)}, nil
}

// ParseToken verifies signature, expiry and kind, and returns the user id.
// now supplies the verification clock.
func ParseToken(secret []byte, kind TokenKind, raw string, now func() time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrMissingSecret
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return "", err
	}
	if !tok.Valid {
		return "", jwt.ErrTokenSignatureInvalid
	}
	if claims.Kind != kind {
		return "", ErrWrongTokenKind
	}
	if claims.UserID == "" {
		return "", ErrMissingUserID
	}
	return claims.UserID, nil
}
