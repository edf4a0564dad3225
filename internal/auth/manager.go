// Package auth owns the admin login lifecycle: rehydrating a stored session,
// checking credentials, and expiring the session after its validity window.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/session"
)

// SessionWindow is how long a login stays valid.
const SessionWindow = 24 * time.Hour

// State is the authentication state of a Manager.
type State int

const (
	// StateUnknown means Initialize has not completed yet.
	StateUnknown State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Navigator moves the active surface to a route, e.g. the login screen after
// logout.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// LoginPath is where Logout sends the user.
const LoginPath = "/login"

// Options wires a Manager's collaborators. Zero values get no-op defaults.
type Options struct {
	Admin     Credentials
	Store     session.SessionStore
	Notifier  notify.Notifier
	Navigator Navigator
	Logger    logr.Logger
	Clock     func() time.Time
	// Window overrides SessionWindow; used by tests.
	Window time.Duration
}

// Manager holds the in-memory authentication state. All methods are safe for
// concurrent use; each read-then-act on the store happens under one lock.
type Manager struct {
	admin  Credentials
	store  session.SessionStore
	notif  notify.Notifier
	nav    Navigator
	log    logr.Logger
	now    func() time.Time
	window time.Duration

	mu       sync.Mutex
	state    State
	current  *session.Session
	stopSync context.CancelFunc
}

// NewManager returns a Manager in StateUnknown. Call Initialize before use.
func NewManager(opts Options) *Manager {
	m := &Manager{
		admin:  opts.Admin,
		store:  opts.Store,
		notif:  opts.Notifier,
		nav:    opts.Navigator,
		log:    opts.Logger,
		now:    opts.Clock,
		window: opts.Window,
	}
	if m.notif == nil {
		m.notif = notify.Discard
	}
	if m.nav == nil {
		m.nav = NavigatorFunc(func(string) {})
	}
	if m.log.GetSink() == nil {
		m.log = logr.Discard()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.window == 0 {
		m.window = SessionWindow
	}
	return m
}

// Initialize rehydrates the state from the store. A valid stored session
// makes the manager Authenticated; anything else (absent, corrupt, expired,
// unreadable) clears the store and makes it Unauthenticated.
func (m *Manager) Initialize(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rehydrateLocked()
	return m.state
}

// Resync re-reads the store after it may have been changed by another
// process. It is Initialize under another name for call sites that react to
// store events.
func (m *Manager) Resync(ctx context.Context) State {
	return m.Initialize(ctx)
}

func (m *Manager) rehydrateLocked() {
	s, err := m.store.Load()
	switch {
	case err == nil && s.Valid(m.now(), m.window):
		m.state = StateAuthenticated
		m.current = s
		return
	case err == nil && s.Authenticated:
		m.log.V(1).Info("stored session expired", "session", s.ID, "issuedAt", s.IssuedAt)
	case err != nil && !errors.Is(err, session.ErrNoSession):
		m.log.V(1).Info("ignoring unreadable session state", "error", err.Error())
	}
	m.clearLocked()
}

// clearLocked removes stored state and drops to Unauthenticated.
func (m *Manager) clearLocked() {
	if err := m.store.Delete(); err != nil {
		m.log.Error(err, "failed to clear session state")
	}
	m.state = StateUnauthenticated
	m.current = nil
}

// Login checks the submitted credentials against the configured admin pair.
// A mismatch is a normal negative result: the state is unchanged and false is
// returned.
func (m *Manager) Login(ctx context.Context, email, password string) bool {
	if !CheckCredentials(m.admin, Credentials{Email: email, Password: password}) {
		m.log.Info("login rejected", "email", email)
		m.notif.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Login failed",
			Description: "Invalid email or password",
		})
		return false
	}

	s := &session.Session{
		Authenticated: true,
		IssuedAt:      m.now().Truncate(time.Millisecond),
		ID:            uuid.New().String(),
	}

	m.mu.Lock()
	err := m.store.Save(s)
	if err == nil {
		m.state = StateAuthenticated
		m.current = s
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error(err, "failed to persist login")
		m.notif.Notify(notify.Notification{
			Level:       notify.LevelError,
			Title:       "Login failed",
			Description: "Could not save the session",
		})
		return false
	}

	m.log.Info("login accepted", "email", email, "session", s.ID)
	m.notif.Notify(notify.Notification{
		Level:       notify.LevelSuccess,
		Title:       "Login successful",
		Description: "Welcome to the AI Chatbot Monitoring Dashboard",
	})
	return true
}

// Logout clears the stored session and returns to the login route. Calling it
// while already logged out is harmless.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	id := ""
	if m.current != nil {
		id = m.current.ID
	}
	m.clearLocked()
	m.mu.Unlock()

	m.log.Info("logged out", "session", id)
	m.nav.Navigate(LoginPath)
	m.notif.Notify(notify.Notification{
		Level:       notify.LevelInfo,
		Title:       "Logged out",
		Description: "You have been logged out successfully",
	})
}

// IsAuthenticated reports whether the admin is logged in right now. It is
// false before Initialize. Once the window has elapsed the session is
// cleared and false is returned, without notifying the user.
func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return false
	}
	if !m.current.Valid(m.now(), m.window) {
		m.log.V(1).Info("session expired", "session", m.current.ID)
		m.clearLocked()
		return false
	}
	return true
}

// State returns the current state after applying expiry.
func (m *Manager) State() State {
	m.IsAuthenticated()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Ready reports whether Initialize has completed.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != StateUnknown
}

// Session returns a copy of the active session, or nil when logged out.
func (m *Manager) Session() *session.Session {
	if !m.IsAuthenticated() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *m.current
	return &cp
}

// ExpiresAt returns when the active session lapses.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	s := m.Session()
	if s == nil {
		return time.Time{}, false
	}
	return s.ExpiresAt(m.window), true
}

// SyncWithStore starts watching the store, if it supports it, and calls
// Resync on every external change. onChange, when non-nil, runs after each
// resync with the new state. Close stops the watcher.
func (m *Manager) SyncWithStore(ctx context.Context, onChange func(State)) {
	w, ok := m.store.(session.Watcher)
	if !ok {
		return
	}
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.stopSync != nil {
		m.stopSync()
	}
	m.stopSync = cancel
	m.mu.Unlock()

	go func() {
		err := w.Watch(ctx, func() {
			st := m.Resync(ctx)
			if onChange != nil {
				onChange(st)
			}
		})
		if err != nil {
			m.log.Error(err, "session watcher stopped")
		}
	}()
}

// Close stops background work started by SyncWithStore.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopSync != nil {
		m.stopSync()
		m.stopSync = nil
	}
}
