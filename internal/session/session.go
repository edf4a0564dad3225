package session

import (
	"errors"
	"strconv"
	"time"
)

// Storage keys. They match the keys the browser build kept in localStorage so
// an exported store can be inspected with the same vocabulary.
const (
	KeyAuth          = "auth"
	KeyAuthTimestamp = "auth_timestamp"
	KeySessionID     = "session_id"
)

// ErrCorruptSession is returned by Load when stored values exist but cannot
// be interpreted.
var ErrCorruptSession = errors.New("corrupt session state")

// Session is the persisted admin login.
type Session struct {
	Authenticated bool
	// IssuedAt has millisecond precision; that is what the store keeps.
	IssuedAt time.Time
	// ID correlates log lines for one login. It carries no authority.
	ID string
}

// ExpiresAt returns the end of the validity window starting at IssuedAt.
func (s *Session) ExpiresAt(window time.Duration) time.Time {
	return s.IssuedAt.Add(window)
}

// Valid reports whether s is an authenticated session still inside window at now.
func (s *Session) Valid(now time.Time, window time.Duration) bool {
	if s == nil || !s.Authenticated || s.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(s.IssuedAt) < window
}

// record is the flat key/value form shared by all backends.
type record map[string]string

func encode(s *Session) record {
	r := record{}
	if s.Authenticated {
		r[KeyAuth] = "true"
	}
	if !s.IssuedAt.IsZero() {
		r[KeyAuthTimestamp] = strconv.FormatInt(s.IssuedAt.UnixMilli(), 10)
	}
	if s.ID != "" {
		r[KeySessionID] = s.ID
	}
	return r
}

func decode(r record) (*Session, error) {
	s := &Session{ID: r[KeySessionID]}
	switch v := r[KeyAuth]; v {
	case "":
	case "true":
		s.Authenticated = true
	default:
		return nil, ErrCorruptSession
	}
	if ts := r[KeyAuthTimestamp]; ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil || ms < 0 {
			return nil, ErrCorruptSession
		}
		s.IssuedAt = time.UnixMilli(ms)
	}
	return s, nil
}
