// Package route names the dashboard's navigable surfaces and decides, from
// the authentication state, whether a surface may be shown.
package route

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/fakeyudi/chatwatch/internal/auth"
)

// ErrRouteNotFound is returned by Parse for paths outside the route table.
var ErrRouteNotFound = errors.New("route not found")

// Kind identifies a surface.
type Kind int

const (
	KindNotFound Kind = iota
	KindLogin
	KindDashboard
	KindExecutions
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindDashboard:
		return "dashboard"
	case KindExecutions:
		return "executions"
	case KindChat:
		return "chat"
	default:
		return "not-found"
	}
}

// Route is a parsed path.
type Route struct {
	Kind      Kind
	SessionID string // set for KindChat
	Path      string // the path as requested
}

// Well-known routes.
var (
	Login      = Route{Kind: KindLogin, Path: "/login"}
	Dashboard  = Route{Kind: KindDashboard, Path: "/"}
	Executions = Route{Kind: KindExecutions, Path: "/executions"}
)

// Chat returns the transcript route for sessionID.
func Chat(sessionID string) Route {
	return Route{Kind: KindChat, SessionID: sessionID, Path: "/chat/" + url.PathEscape(sessionID)}
}

// Protected reports whether the route requires an authenticated admin.
func (r Route) Protected() bool {
	switch r.Kind {
	case KindDashboard, KindExecutions, KindChat:
		return true
	}
	return false
}

func (r Route) String() string { return r.Path }

// Parse maps a path to a Route. Unknown paths return a KindNotFound route
// alongside an error wrapping ErrRouteNotFound, so callers can still render
// the 404 surface with the attempted path.
func Parse(path string) (Route, error) {
	clean := path
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if len(clean) > 1 {
		clean = strings.TrimRight(clean, "/")
	}
	switch clean {
	case "/login":
		return Login, nil
	case "", "/":
		return Dashboard, nil
	case "/executions":
		return Executions, nil
	}
	if rest, ok := strings.CutPrefix(clean, "/chat/"); ok && rest != "" && !strings.Contains(rest, "/") {
		id, err := url.PathUnescape(rest)
		if err == nil && id != "" {
			return Chat(id), nil
		}
	}
	return Route{Kind: KindNotFound, Path: path}, fmt.Errorf("%w: %s", ErrRouteNotFound, path)
}

// Action is the outcome of a guard decision.
type Action int

const (
	// ActionPending means authentication has not been resolved; render nothing.
	ActionPending Action = iota
	ActionRender
	ActionRedirect
)

func (a Action) String() string {
	switch a {
	case ActionRender:
		return "render"
	case ActionRedirect:
		return "redirect"
	default:
		return "pending"
	}
}

// Decision tells the caller what to show.
type Decision struct {
	Action Action
	// Target is the route to render, or the redirect destination.
	Target Route
}

// Guard decides whether requested may be shown in the given auth state.
// Protected routes render only when authenticated; nothing renders while the
// state is unknown. An authenticated visit to the login route goes to the
// dashboard instead.
func Guard(state auth.State, requested Route) Decision {
	if state == auth.StateUnknown {
		return Decision{Action: ActionPending, Target: requested}
	}
	authed := state == auth.StateAuthenticated
	switch {
	case requested.Protected() && !authed:
		return Decision{Action: ActionRedirect, Target: Login}
	case requested.Kind == KindLogin && authed:
		return Decision{Action: ActionRedirect, Target: Dashboard}
	default:
		return Decision{Action: ActionRender, Target: requested}
	}
}
