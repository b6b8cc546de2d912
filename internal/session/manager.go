// Package session owns the authentication session lifecycle: credentials,
// token pair, identity, and the status state machine. The Manager is the
// only writer of the session domain; all mutation flows through store
// actions.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowex/flowex-go/internal/state"
)

// Event signals session transitions that collaborators react to, in
// particular the realtime channel's token rotation and logout teardown.
type Event string

const (
	EventLoggedIn  Event = "logged_in"
	EventRefreshed Event = "refreshed"
	EventLoggedOut Event = "logged_out"
)

// Config holds session behavior knobs.
type Config struct {
	// RotateRefreshToken applies server-sent refresh token rotation. When
	// false a rotated token in the response is ignored and the original
	// refresh token stays in use.
	RotateRefreshToken bool
	// Timeout bounds Initialize/Login/Refresh; zero means 10s.
	Timeout time.Duration
}

// Manager drives the session state machine:
//
//	Anonymous → Authenticating → {Authenticated, Unauthenticated}
//	Authenticated → Refreshing → {Authenticated, Unauthenticated}
//
// Initialize is the only path into Authenticated without an explicit Login.
type Manager struct {
	store  *state.Store
	client API
	cfg    Config

	mu            sync.Mutex
	loginInFlight bool
	refreshCancel context.CancelFunc

	subMu sync.Mutex
	subs  []func(Event)
}

// NewManager creates a session Manager dispatching into store and calling
// the auth service through client.
func NewManager(store *state.Store, client API, cfg Config) *Manager {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Manager{store: store, client: client, cfg: cfg}
}

// Subscribe registers a callback for session events. Callbacks run
// synchronously on the transition path and must not block.
func (m *Manager) Subscribe(fn func(Event)) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) emit(ev Event) {
	m.subMu.Lock()
	subs := make([]func(Event), len(m.subs))
	copy(subs, m.subs)
	m.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// Session returns the current session snapshot.
func (m *Manager) Session() state.SessionState {
	return m.store.GetState().Session
}

// AccessToken returns the current access token, empty when anonymous. The
// realtime channel reads it at connect time rather than caching it.
func (m *Manager) AccessToken() string {
	return m.Session().AccessToken
}

// HasPermission reports whether the current session carries permission p.
func (m *Manager) HasPermission(p string) bool {
	for _, have := range m.Session().Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// HasRole reports whether the current session carries role r.
func (m *Manager) HasRole(r string) bool {
	for _, have := range m.Session().Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Initialize validates tokens restored by rehydration. A no-op when no
// tokens are persisted; otherwise it resolves the identity behind the
// access token, entering Authenticated on success and clearing the stale
// pair on failure.
func (m *Manager) Initialize(ctx context.Context) error {
	s := m.Session()
	if s.AccessToken == "" || s.RefreshToken == "" {
		return nil
	}

	m.store.Dispatch(state.Action{Type: state.ActionMePending})

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	me, err := m.client.Me(ctx, s.AccessToken)
	if err != nil {
		log.Info().Err(err).Msg("Persisted session invalid, clearing tokens")
		m.store.Dispatch(state.Action{Type: state.ActionMeRejected, Err: err})
		return err
	}

	m.store.Dispatch(state.Action{Type: state.ActionMeFulfilled, Payload: state.Identity{
		User:        me.User,
		Permissions: me.Permissions,
		Roles:       me.Roles,
	}})
	log.Info().Str("user", userEmail(me.User)).Msg("Session restored from storage")
	m.emit(EventLoggedIn)
	return nil
}

// Login authenticates with credentials. At most one login is in flight;
// concurrent calls return ErrLoginInFlight.
func (m *Manager) Login(ctx context.Context, creds Credentials) error {
	m.mu.Lock()
	if m.loginInFlight {
		m.mu.Unlock()
		return ErrLoginInFlight
	}
	m.loginInFlight = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.loginInFlight = false
		m.mu.Unlock()
	}()

	m.store.Dispatch(state.Action{Type: state.ActionLoginPending})

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	resp, err := m.client.Login(ctx, creds)
	if err != nil {
		m.store.Dispatch(state.Action{Type: state.ActionLoginRejected, Err: err})
		return err
	}

	// rememberMe=false keeps the pair memory-only for this process.
	m.store.SetDomainPersistence(state.DomainSession, creds.RememberMe)
	m.store.Dispatch(state.Action{Type: state.ActionLoginFulfilled, Payload: state.LoginResult{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		User:         resp.User,
		RememberMe:   creds.RememberMe,
	}})

	// Permissions and roles come from the identity endpoint. A failure here
	// leaves the session authenticated with empty sets rather than undoing
	// the login.
	if me, meErr := m.client.Me(ctx, resp.Token); meErr == nil {
		m.store.Dispatch(state.Action{Type: state.ActionMeFulfilled, Payload: state.Identity{
			User:        me.User,
			Permissions: me.Permissions,
			Roles:       me.Roles,
		}})
	} else {
		log.Warn().Err(meErr).Msg("Failed to resolve permissions after login")
	}

	log.Info().Str("user", creds.Email).Msg("Login succeeded")
	m.emit(EventLoggedIn)
	return nil
}

// Logout clears the session unconditionally: it cancels any in-flight
// refresh, drops tokens from memory and durable storage, and never fails.
func (m *Manager) Logout() {
	m.mu.Lock()
	if m.refreshCancel != nil {
		m.refreshCancel()
		m.refreshCancel = nil
	}
	m.mu.Unlock()

	m.store.Dispatch(state.Action{Type: state.ActionLogout})
	m.store.SetDomainPersistence(state.DomainSession, false)
	log.Info().Msg("Logged out")
	m.emit(EventLoggedOut)
}

// Refresh exchanges the refresh token for a new access token. Valid only
// from Authenticated; a failure is never retried and forces logout
// semantics, since the session is unrecoverable without re-authentication.
func (m *Manager) Refresh(ctx context.Context) error {
	s := m.Session()
	if s.Status != state.StatusAuthenticated {
		return ErrNotAuthenticated
	}

	m.store.Dispatch(state.Action{Type: state.ActionRefreshPending})

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	m.mu.Lock()
	m.refreshCancel = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.refreshCancel = nil
		m.mu.Unlock()
	}()

	resp, err := m.client.Refresh(ctx, s.RefreshToken)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Logout already tore the session down; rejecting again would
			// surface a spurious notification.
			return err
		}
		log.Warn().Err(err).Msg("Refresh failed, session unrecoverable")
		m.store.Dispatch(state.Action{Type: state.ActionRefreshRejected, Err: err})
		m.emit(EventLoggedOut)
		return err
	}

	rotated := resp.RefreshToken
	if !m.cfg.RotateRefreshToken {
		rotated = ""
	}
	m.store.Dispatch(state.Action{Type: state.ActionRefreshFulfilled, Payload: state.RefreshResult{
		AccessToken:  resp.Token,
		RefreshToken: rotated,
	}})
	m.emit(EventRefreshed)
	return nil
}

func userEmail(u *state.User) string {
	if u == nil {
		return ""
	}
	return u.Email
}
