// Package session is the client's session guard.  It owns the
// authenticated/unauthenticated state, decides which area of the app the
// user lands in at launch and moves them between areas on login, logout and
// refresh failure.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/iliyamo/chat-auth/internal/client/api"
	"github.com/iliyamo/chat-auth/internal/client/credstore"
)

// State is the guard's view of the user.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Routes the guard navigates to.
const (
	RouteAuth = "/auth"
	RouteChat = "/chat"
)

// LaunchPolicy controls how much Launch trusts a stored credential.
type LaunchPolicy int

const (
	// PresenceOnly treats any stored access token as a session.  An expired
	// or forged token is caught by the first protected request instead.
	PresenceOnly LaunchPolicy = iota
	// VerifyOnLaunch exchanges the stored refresh token before admitting the
	// user, at the cost of a network round-trip on every start.  Only a
	// rejected refresh token sends the user to login; when the server cannot
	// be reached the decision falls back to PresenceOnly.
	VerifyOnLaunch
)

var (
	// ErrSubmitInFlight is returned when Login or Register is called while
	// another submit has not finished.  No request is sent.
	ErrSubmitInFlight = errors.New("a request is already in progress")
	// ErrNoSession is returned by Refresh when nothing is stored.
	ErrNoSession = errors.New("no stored session")
)

// Backend is the part of api.Client the guard calls.
type Backend interface {
	Login(ctx context.Context, email, password string) (api.AuthResponse, error)
	Register(ctx context.Context, email, password, displayName string) (api.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// Navigator switches the visible area of the app.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Controller is the single owner of session state.  It is safe for
// concurrent use.
type Controller struct {
	store  credstore.Store
	api    Backend
	nav    Navigator
	policy LaunchPolicy
	log    *slog.Logger

	mu    sync.RWMutex
	state State

	submitting atomic.Bool
}

// Option customizes a Controller.
type Option func(*Controller)

func WithLaunchPolicy(p LaunchPolicy) Option { return func(c *Controller) { c.policy = p } }

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

func NewController(store credstore.Store, backend Backend, nav Navigator, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		api:   backend,
		nav:   nav,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// AccessToken returns the stored access token for an authenticated request.
// It returns ErrNoSession when nothing is stored; the state is not changed.
func (c *Controller) AccessToken(ctx context.Context) (string, error) {
	cred, err := c.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if cred.Empty() {
		return "", ErrNoSession
	}
	return cred.AccessToken, nil
}

// Launch picks the initial area from the stored credential.  It must return
// before the first screen is shown.
func (c *Controller) Launch(ctx context.Context) State {
	cred, err := c.store.Load(ctx)
	if err != nil {
		c.log.WarnContext(ctx, "credential store unreadable, starting logged out", "err", err)
		return c.transition(Unauthenticated)
	}
	if cred.Empty() {
		return c.transition(Unauthenticated)
	}

	if c.policy == VerifyOnLaunch {
		_, err := c.refresh(ctx, cred)
		switch {
		case err == nil:
		case rejected(err):
			c.log.InfoContext(ctx, "stored session rejected at launch", "err", err)
			c.RefreshFailed(ctx)
			return Unauthenticated
		default:
			// server unreachable: keep the session, the next protected call decides
			c.log.WarnContext(ctx, "could not verify stored session at launch", "err", err)
		}
	}
	return c.transition(Authenticated)
}

// Login submits credentials, stores the returned pair and enters the chat
// area.  On failure the state is unchanged and the error is returned for
// display.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	if !c.submitting.CompareAndSwap(false, true) {
		return ErrSubmitInFlight
	}
	defer c.submitting.Store(false)

	res, err := c.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := c.store.Save(ctx, credstore.Credential{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	c.transition(Authenticated)
	return nil
}

// Register creates the account and sends the user to the login screen.  The
// tokens the server returns are dropped: a fresh account always logs in
// explicitly.
func (c *Controller) Register(ctx context.Context, email, password, displayName string) (api.User, error) {
	if !c.submitting.CompareAndSwap(false, true) {
		return api.User{}, ErrSubmitInFlight
	}
	defer c.submitting.Store(false)

	res, err := c.api.Register(ctx, email, password, displayName)
	if err != nil {
		return api.User{}, err
	}
	c.transition(Unauthenticated)
	return res.User, nil
}

// Logout forgets the stored credential and returns to the login area.  The
// transition happens even when clearing the store fails.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.store.Clear(ctx)
	if err != nil {
		c.log.WarnContext(ctx, "clear credentials", "err", err)
	}
	c.transition(Unauthenticated)
	return err
}

// RefreshFailed is called when the server rejects the refresh token.  It has
// the same effect as Logout.
func (c *Controller) RefreshFailed(ctx context.Context) {
	_ = c.Logout(ctx)
}

// Refresh exchanges the stored refresh token for a new access token and
// returns it.  A rejected refresh token ends the session; a network error
// leaves it untouched so the caller can retry.
func (c *Controller) Refresh(ctx context.Context) (string, error) {
	cred, err := c.store.Load(ctx)
	if err != nil {
		return "", err
	}
	tok, err := c.refresh(ctx, cred)
	if err != nil && rejected(err) {
		c.RefreshFailed(ctx)
	}
	return tok, err
}

// rejected reports whether err means the stored session is no longer valid,
// as opposed to the server being unreachable.
func rejected(err error) bool {
	return errors.Is(err, ErrNoSession) || api.IsUnauthorized(err)
}

func (c *Controller) refresh(ctx context.Context, cred credstore.Credential) (string, error) {
	if cred.RefreshToken == "" {
		return "", ErrNoSession
	}
	tok, err := c.api.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", err
	}
	cred.AccessToken = tok
	if err := c.store.Save(ctx, cred); err != nil {
		return "", fmt.Errorf("save credentials: %w", err)
	}
	return tok, nil
}

func (c *Controller) transition(to State) State {
	c.mu.Lock()
	c.state = to
	c.mu.Unlock()

	if to == Authenticated {
		c.nav.Navigate(RouteChat)
	} else {
		c.nav.Navigate(RouteAuth)
	}
	return to
}
