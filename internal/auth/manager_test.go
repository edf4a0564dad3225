package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/session"
)

var admin = Credentials{Email: "admin@example.com", Password: "password123"}

// memStore is an in-memory session.SessionStore.
type memStore struct {
	mu      sync.Mutex
	s       *session.Session
	loadErr error
	saveErr error
	deletes int
}

func (m *memStore) Save(s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *s
	m.s = &cp
	return nil
}

func (m *memStore) Load() (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.s == nil {
		return nil, session.ErrNoSession
	}
	cp := *m.s
	return &cp, nil
}

func (m *memStore) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	m.s = nil
	return nil
}

func (m *memStore) stored() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(store *memStore, clock *fakeClock) (*Manager, *notify.Recorder, *[]string) {
	rec := &notify.Recorder{}
	var paths []string
	m := NewManager(Options{
		Admin:     admin,
		Store:     store,
		Notifier:  rec,
		Navigator: NavigatorFunc(func(p string) { paths = append(paths, p) }),
		Clock:     clock.Now,
	})
	return m, rec, &paths
}

func TestCheckCredentials(t *testing.T) {
	tests := []struct {
		name string
		in   Credentials
		want bool
	}{
		{"exact", admin, true},
		{"wrong password", Credentials{admin.Email, "nope"}, false},
		{"wrong email", Credentials{"root@example.com", admin.Password}, false},
		{"case differs", Credentials{"Admin@example.com", admin.Password}, false},
		{"empty", Credentials{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckCredentials(admin, tt.in); got != tt.want {
				t.Errorf("CheckCredentials(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStateBeforeInitialize(t *testing.T) {
	m, _, _ := newTestManager(&memStore{}, &fakeClock{now: time.Now()})
	if m.Ready() {
		t.Error("Ready() should be false before Initialize")
	}
	if m.IsAuthenticated() {
		t.Error("IsAuthenticated() should be false while unknown")
	}
	if got := m.State(); got != StateUnknown {
		t.Errorf("State() = %v, want unknown", got)
	}
}

// Feature: chatwatch, Property 3: Wrong credentials never authenticate
func TestLoginRejectsEveryOtherPair(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		email := rapid.String().Draw(rt, "email")
		password := rapid.String().Draw(rt, "password")
		if email == admin.Email && password == admin.Password {
			rt.Skip("drew the admin pair")
		}

		store := &memStore{}
		m, rec, _ := newTestManager(store, &fakeClock{now: time.Now()})
		m.Initialize(context.Background())

		if m.Login(context.Background(), email, password) {
			rt.Fatalf("Login(%q, %q) succeeded", email, password)
		}
		if m.State() != StateUnauthenticated {
			rt.Fatalf("state = %v, want unauthenticated", m.State())
		}
		if store.stored() != nil {
			rt.Fatalf("store was written on a failed login")
		}
		last, ok := rec.Last()
		if !ok || last.Level != notify.LevelError {
			rt.Fatalf("expected a failure notification, got %+v", last)
		}
	})
}

func TestLoginSuccessPersistsSession(t *testing.T) {
	store := &memStore{}
	clock := &fakeClock{now: time.Now()}
	m, rec, _ := newTestManager(store, clock)
	m.Initialize(context.Background())

	before := time.Now()
	if !m.Login(context.Background(), admin.Email, admin.Password) {
		t.Fatal("Login with the admin pair failed")
	}
	if !m.IsAuthenticated() {
		t.Error("IsAuthenticated() should be true right after login")
	}

	s := store.stored()
	if s == nil || !s.Authenticated {
		t.Fatalf("stored session = %+v, want authenticated", s)
	}
	if d := s.IssuedAt.Sub(before); d < -time.Second || d > time.Second {
		t.Errorf("IssuedAt %v is not within 1s of the call", s.IssuedAt)
	}
	if s.ID == "" {
		t.Error("login should assign a session id")
	}
	if last, _ := rec.Last(); last.Level != notify.LevelSuccess {
		t.Errorf("last notification = %+v, want success", last)
	}
}

func TestLoginStoreFailure(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	m, rec, _ := newTestManager(store, &fakeClock{now: time.Now()})
	m.Initialize(context.Background())

	if m.Login(context.Background(), admin.Email, admin.Password) {
		t.Fatal("Login should fail when the session cannot be saved")
	}
	if m.IsAuthenticated() {
		t.Error("state must stay unauthenticated")
	}
	if last, _ := rec.Last(); last.Level != notify.LevelError {
		t.Errorf("last notification = %+v, want error", last)
	}
}

func TestInitializeRehydrates(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		stored    *session.Session
		loadErr   error
		want      State
		wantClear bool
	}{
		{"nothing stored", nil, nil, StateUnauthenticated, true},
		{"issued an hour ago", &session.Session{Authenticated: true, IssuedAt: now.Add(-time.Hour)}, nil, StateAuthenticated, false},
		{"expired by 1ms", &session.Session{Authenticated: true, IssuedAt: now.Add(-SessionWindow - time.Millisecond)}, nil, StateUnauthenticated, true},
		{"flag without timestamp", &session.Session{Authenticated: true}, nil, StateUnauthenticated, true},
		{"timestamp without flag", &session.Session{IssuedAt: now}, nil, StateUnauthenticated, true},
		{"corrupt", nil, session.ErrCorruptSession, StateUnauthenticated, true},
		{"unreadable", nil, errors.New("permission denied"), StateUnauthenticated, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &memStore{s: tt.stored, loadErr: tt.loadErr}
			m, rec, _ := newTestManager(store, &fakeClock{now: now})

			if got := m.Initialize(context.Background()); got != tt.want {
				t.Errorf("Initialize() = %v, want %v", got, tt.want)
			}
			if !m.Ready() {
				t.Error("Ready() should be true after Initialize")
			}
			if tt.wantClear && store.stored() != nil {
				t.Error("store should have been cleared")
			}
			if !tt.wantClear && store.stored() == nil {
				t.Error("valid session should stay stored")
			}
			if n := len(rec.All()); n != 0 {
				t.Errorf("rehydration should be silent, got %d notifications", n)
			}
		})
	}
}

func TestSessionExpiresWhileRunning(t *testing.T) {
	store := &memStore{}
	clock := &fakeClock{now: time.Now()}
	m, rec, _ := newTestManager(store, clock)
	m.Initialize(context.Background())
	m.Login(context.Background(), admin.Email, admin.Password)

	clock.Advance(SessionWindow - time.Millisecond)
	if !m.IsAuthenticated() {
		t.Fatal("session should still be valid just before the window ends")
	}

	clock.Advance(time.Millisecond)
	if m.IsAuthenticated() {
		t.Fatal("session should expire once the window has elapsed")
	}
	if m.State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", m.State())
	}
	if store.stored() != nil {
		t.Error("expired session should be cleared from the store")
	}
	// Only the login notification; expiry is silent.
	if n := len(rec.All()); n != 1 {
		t.Errorf("got %d notifications, want 1", n)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := &memStore{}
	m, rec, paths := newTestManager(store, &fakeClock{now: time.Now()})
	m.Initialize(context.Background())
	m.Login(context.Background(), admin.Email, admin.Password)

	m.Logout(context.Background())
	m.Logout(context.Background())

	if m.State() != StateUnauthenticated {
		t.Errorf("State() = %v, want unauthenticated", m.State())
	}
	if store.stored() != nil {
		t.Error("store should be empty after logout")
	}
	if len(*paths) != 2 || (*paths)[0] != LoginPath {
		t.Errorf("navigations = %v, want two redirects to %s", *paths, LoginPath)
	}
	all := rec.All()
	if last := all[len(all)-1]; last.Title != "Logged out" {
		t.Errorf("last notification = %+v", last)
	}
}

func TestExpiresAt(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m, _, _ := newTestManager(&memStore{}, clock)
	m.Initialize(context.Background())

	if _, ok := m.ExpiresAt(); ok {
		t.Error("ExpiresAt should report false when logged out")
	}
	m.Login(context.Background(), admin.Email, admin.Password)
	exp, ok := m.ExpiresAt()
	if !ok || !exp.Equal(clock.Now().Add(SessionWindow)) {
		t.Errorf("ExpiresAt() = %v, %v", exp, ok)
	}
}

func TestResyncPicksUpExternalLogout(t *testing.T) {
	store := &memStore{}
	m, _, _ := newTestManager(store, &fakeClock{now: time.Now()})
	m.Initialize(context.Background())
	m.Login(context.Background(), admin.Email, admin.Password)

	// Another console logs out.
	store.Delete()

	if got := m.Resync(context.Background()); got != StateUnauthenticated {
		t.Errorf("Resync() = %v, want unauthenticated", got)
	}
}

func TestSyncWithDiskStore(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	store, err := session.NewSessionStore()
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(Options{Admin: admin, Store: store})
	defer m.Close()
	m.Initialize(context.Background())
	if !m.Login(context.Background(), admin.Email, admin.Password) {
		t.Fatal("login failed")
	}

	states := make(chan State, 16)
	m.SyncWithStore(context.Background(), func(s State) { states <- s })

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case s := <-states:
			if s == StateUnauthenticated {
				return
			}
		case <-tick.C:
			// The watcher registers asynchronously; repeat the external logout.
			if err := store.Delete(); err != nil {
				t.Fatal(err)
			}
			if err := store.Save(&session.Session{Authenticated: true}); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("manager never observed the external logout")
		}
	}
}
