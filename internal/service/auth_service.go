// Package service holds the authentication core: token minting/verification
// and the register, login and refresh flows.  Every exported operation
// returns a *Error whose Kind tells the caller what happened.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/chat-auth/internal/metrics"
	"github.com/iliyamo/chat-auth/internal/model"
	"github.com/iliyamo/chat-auth/internal/queue"
	"github.com/iliyamo/chat-auth/internal/repository"
	"github.com/iliyamo/chat-auth/internal/utils"
)

// UserStore is the identity store contract.  Create must enforce email
// uniqueness atomically and report a lost race as
// repository.ErrDuplicateEmail.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	Create(ctx context.Context, email, passwordHash, displayName string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
}

// PasswordHasher hashes and checks passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plain string) (string, error)
	Compare(ctx context.Context, hash, plain string) error
	Burn(ctx context.Context, plain string)
}

// Tokens is what the auth flows need from the token layer.
type Tokens interface {
	TokenIssuer
	VerifyRefresh(token string) (string, error)
}

// RegisterInput carries a registration request.  Password is plaintext and
// lives only for the duration of the call.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	Tokens TokenPair
	User   model.PublicUser
}

// AuthService orchestrates registration, login and refresh.  It holds no
// per-session state.
type AuthService struct {
	users     UserStore
	hasher    PasswordHasher
	tokens    Tokens
	events    queue.Publisher
	metrics   *metrics.Auth
	log       *slog.Logger
	dbTimeout time.Duration
}

// AuthOption customizes an AuthService.
type AuthOption func(*AuthService)

// WithEvents publishes audit events after successful register and login.
func WithEvents(p queue.Publisher) AuthOption { return func(s *AuthService) { s.events = p } }

// WithMetrics records every outcome on m.
func WithMetrics(m *metrics.Auth) AuthOption { return func(s *AuthService) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) AuthOption { return func(s *AuthService) { s.log = l } }

// WithStoreTimeout bounds each identity store call.
func WithStoreTimeout(d time.Duration) AuthOption { return func(s *AuthService) { s.dbTimeout = d } }

func NewAuthService(users UserStore, hasher PasswordHasher, tokens Tokens, opts ...AuthOption) *AuthService {
	s := &AuthService{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		events:    queue.NopPublisher{},
		log:       slog.Default(),
		dbTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register validates the input, stores a new user and mints a token pair.
// The client is expected to send the user to the login screen afterwards;
// the tokens are returned anyway so API consumers can choose.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (res AuthResult, err error) {
	defer func() { s.observe(ctx, "register", in.Email, err) }()

	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.DisplayName) == "" {
		return AuthResult{}, ErrMissingFields
	}

	if _, err := s.findByEmail(ctx, in.Email); err == nil {
		return AuthResult{}, ErrUserExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return AuthResult{}, storageFailure(err)
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return AuthResult{}, internal("Registration failed", err)
	}

	user, err := s.create(ctx, in.Email, hash, in.DisplayName)
	if err != nil {
		// lost a race with a concurrent registration of the same email
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return AuthResult{}, wrap(ErrUserExists, err)
		}
		if errors.Is(err, repository.ErrFieldTooLong) {
			return AuthResult{}, wrap(ErrFieldTooLong, err)
		}
		return AuthResult{}, storageFailure(err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	s.publish(ctx, queue.EventUserRegistered, user)
	return AuthResult{Tokens: pair, User: user.Public()}, nil
}

// Login checks the credentials and mints a fresh token pair.  An unknown
// email and a wrong password produce the same ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (res AuthResult, err error) {
	defer func() { s.observe(ctx, "login", email, err) }()

	user, err := s.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.hasher.Burn(ctx, password)
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, storageFailure(err)
	}

	if err := s.hasher.Compare(ctx, user.PasswordHash, password); err != nil {
		if errors.Is(err, utils.ErrPasswordMismatch) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, internal("Login failed", err)
	}

	pair, err := s.tokens.IssuePair(user.ID)
	if err != nil {
		return AuthResult{}, err
	}
	s.publish(ctx, queue.EventUserLoggedIn, user)
	return AuthResult{Tokens: pair, User: user.Public()}, nil
}

// Refresh exchanges a refresh token for a new access token.  Every failure,
// including an empty token, is InvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (tok IssuedToken, err error) {
	defer func() { s.observe(ctx, "refresh", "", err) }()

	if strings.TrimSpace(refreshToken) == "" {
		return IssuedToken{}, ErrRefreshRequired
	}
	uid, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return IssuedToken{}, wrap(ErrInvalidRefreshToken, err)
	}
	return s.tokens.IssueAccess(uid)
}

// Me returns the public projection of an authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (model.PublicUser, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PublicUser{}, ErrUserNotFound
		}
		return model.PublicUser{}, storageFailure(err)
	}
	return u.Public(), nil
}

func (s *AuthService) findByEmail(ctx context.Context, email string) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()
	return s.users.FindByEmail(ctx, email)
}

func (s *AuthService) create(ctx context.Context, email, hash, displayName string) (model.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.dbTimeout)
	defer cancel()
	return s.users.Create(ctx, email, hash, displayName)
}

func (s *AuthService) publish(ctx context.Context, typ string, u model.User) {
	ev := queue.AuthEvent{
		Type:       typ,
		UserID:     u.ID,
		Email:      u.Email,
		RemoteIP:   RemoteIPFrom(ctx),
		OccurredAt: time.Now().UTC(),
	}
	// detached from the request so a client hang-up does not drop the event
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(pubCtx, ev); err != nil {
		s.log.WarnContext(ctx, "audit event not published", "type", typ, "user_id", u.ID, "err", err)
	}
}

func (s *AuthService) observe(ctx context.Context, op, email string, err error) {
	if err == nil {
		s.metrics.Observe(op, "ok")
		s.log.InfoContext(ctx, "auth succeeded", "op", op, "email", email)
		return
	}
	kind := KindOf(err)
	s.metrics.Observe(op, kind.String())
	switch kind {
	case KindInternal, KindStorageFailure:
		s.log.ErrorContext(ctx, "auth failed", "op", op, "email", email, "kind", kind.String(), "err", err)
	default:
		s.log.InfoContext(ctx, "auth rejected", "op", op, "email", email, "kind", kind.String())
	}
}

type remoteIPKey struct{}

// ContextWithRemoteIP attaches the client address for audit events.
func ContextWithRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, remoteIPKey{}, ip)
}

// RemoteIPFrom returns the address stored by ContextWithRemoteIP.
func RemoteIPFrom(ctx context.Context) string {
	ip, _ := ctx.Value(remoteIPKey{}).(string)
	return ip
}
