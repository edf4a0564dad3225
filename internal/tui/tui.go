// Package tui provides the Bubble Tea dashboard. Each screen corresponds to
// a route and is only shown when the route guard allows it.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-logr/logr"

	"github.com/fakeyudi/chatwatch/internal/api"
	"github.com/fakeyudi/chatwatch/internal/auth"
	"github.com/fakeyudi/chatwatch/internal/listview"
	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/route"
)

const (
	toastDuration       = 4 * time.Second
	expiryCheckInterval = time.Minute
)

// API is the subset of the execution log client the dashboard uses.
type API interface {
	listview.Fetcher
	FetchSummary(ctx context.Context) (*api.SummaryData, error)
	FetchSession(ctx context.Context, sessionID string) ([]api.ExecutionRecord, error)
}

// Navigator lets code outside the event loop (the auth manager) request a
// route change. Requests are dropped when the buffer is full.
type Navigator struct {
	ch chan string
}

// NewNavigator returns a Navigator ready to hand to auth.Options.
func NewNavigator() *Navigator {
	return &Navigator{ch: make(chan string, 8)}
}

func (n *Navigator) Navigate(path string) {
	select {
	case n.ch <- path:
	default:
	}
}

// Deps wires the dashboard to the rest of the program.
type Deps struct {
	Manager       *auth.Manager
	API           API
	Notifications *notify.Queue
	Navigator     *Navigator
	Logger        logr.Logger
	PageSize      int
	// StartPath is the first route requested (default "/").
	StartPath string
}

// ── Messages ────────────

type authReadyMsg struct{ state auth.State }

type authChangedMsg struct{ state auth.State }

type navigateMsg struct{ path string }

type notificationMsg struct{ n notify.Notification }

type clearToastMsg struct{ seq int }

type expiryTickMsg struct{}

type summaryMsg struct {
	data *api.SummaryData
	err  error
}

type listMsg struct {
	screen route.Kind
	ticket listview.Ticket
	res    *api.ListResult
	err    error
}

type sessionMsg struct {
	sessionID string
	records   []api.ExecutionRecord
	err       error
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	deps   Deps
	ctx    context.Context
	log    logr.Logger
	authCh chan auth.State

	// resolved is set once authReadyMsg has been handled; until then the
	// route is not meaningful.
	resolved bool
	route    route.Route
	// requested is the route asked for while auth was unresolved, or the
	// protected route that sent the user to the login screen.
	requested route.Route

	width   int
	height  int
	spinner spinner.Model

	toast    *notify.Notification
	toastSeq int

	login      loginForm
	dashboard  dashboardScreen
	executions executionsScreen
	chat       chatScreen
}

// New creates the dashboard model. ctx bounds every API call and the store
// watcher.
func New(ctx context.Context, deps Deps) Model {
	if deps.Navigator == nil {
		deps.Navigator = NewNavigator()
	}
	if deps.Notifications == nil {
		deps.Notifications = notify.NewQueue(16)
	}
	if deps.PageSize <= 0 {
		deps.PageSize = listview.DefaultLimit
	}
	if deps.StartPath == "" {
		deps.StartPath = route.Dashboard.Path
	}
	log := deps.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	start, _ := route.Parse(deps.StartPath)
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		deps:       deps,
		ctx:        ctx,
		log:        log.WithName("tui"),
		authCh:     make(chan auth.State, 4),
		requested:  start,
		spinner:    sp,
		login:      newLoginForm(),
		dashboard:  newDashboardScreen(deps.PageSize),
		executions: newExecutionsScreen(deps.PageSize),
		chat:       newChatScreen(),
	}
}

// Run starts the dashboard in the alternate screen and blocks until it exits.
func Run(ctx context.Context, deps Deps) error {
	m := New(ctx, deps)
	defer deps.Manager.Close()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initAuth(),
		m.spinner.Tick,
		waitForNotification(m.deps.Notifications),
		waitForNavigation(m.deps.Navigator),
		waitForAuthChange(m.authCh),
		expiryTick(),
	)
}

// initAuth rehydrates the session off the event loop and starts watching the
// store for logins and logouts made by other processes.
func (m Model) initAuth() tea.Cmd {
	mgr, ctx, ch := m.deps.Manager, m.ctx, m.authCh
	return func() tea.Msg {
		st := mgr.Initialize(ctx)
		mgr.SyncWithStore(ctx, func(s auth.State) {
			select {
			case ch <- s:
			default:
			}
		})
		return authReadyMsg{state: st}
	}
}

func waitForNotification(q *notify.Queue) tea.Cmd {
	return func() tea.Msg { return notificationMsg{n: <-q.C()} }
}

func waitForNavigation(n *Navigator) tea.Cmd {
	return func() tea.Msg { return navigateMsg{path: <-n.ch} }
}

func waitForAuthChange(ch <-chan auth.State) tea.Cmd {
	return func() tea.Msg { return authChangedMsg{state: <-ch} }
}

func expiryTick() tea.Cmd {
	return tea.Tick(expiryCheckInterval, func(time.Time) tea.Msg { return expiryTickMsg{} })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.updateScreen(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case authReadyMsg:
		m.log.V(1).Info("auth resolved", "state", msg.state.String())
		m.resolved = true
		return m.navigate(m.requested.Path)

	case authChangedMsg:
		// Another process changed the session; re-check the current route.
		return m.reguard(waitForAuthChange(m.authCh))

	case expiryTickMsg:
		return m.reguard(expiryTick())

	case navigateMsg:
		m2, cmd := m.navigate(msg.path)
		return m2, tea.Batch(cmd, waitForNavigation(m.deps.Navigator))

	case notificationMsg:
		n := msg.n
		m.toast = &n
		m.toastSeq++
		seq := m.toastSeq
		return m, tea.Batch(
			waitForNotification(m.deps.Notifications),
			tea.Tick(toastDuration, func(time.Time) tea.Msg { return clearToastMsg{seq: seq} }),
		)

	case clearToastMsg:
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case summaryMsg:
		m.dashboard.summary, m.dashboard.summaryErr = msg.data, msg.err
		m.dashboard.summaryLoading = false
		return m, nil

	case listMsg:
		switch msg.screen {
		case route.KindDashboard:
			if m.dashboard.list.Apply(msg.ticket, msg.res, msg.err) {
				m.dashboard.syncRows()
			}
		case route.KindExecutions:
			if m.executions.list.Apply(msg.ticket, msg.res, msg.err) {
				m.executions.syncRows()
			}
		}
		return m, nil

	case sessionMsg:
		if msg.sessionID == m.chat.sessionID {
			m.chat.apply(msg.records, msg.err)
		}
		return m, nil
	}
	return m, nil
}

// reguard re-runs the guard for the current route, then schedules next.
func (m Model) reguard(next tea.Cmd) (tea.Model, tea.Cmd) {
	if !m.resolved {
		return m, next
	}
	d := route.Guard(m.deps.Manager.State(), m.route)
	if d.Action == route.ActionRender {
		return m, next
	}
	m2, cmd := m.navigate(m.route.Path)
	return m2, tea.Batch(cmd, next)
}

// navigate parses path, consults the guard and switches screens.
func (m Model) navigate(path string) (Model, tea.Cmd) {
	r, err := route.Parse(path)
	if !m.resolved {
		m.requested = r
		return m, nil
	}
	if err != nil {
		m.log.Info("route not found", "path", path)
	}

	d := route.Guard(m.deps.Manager.State(), r)
	switch d.Action {
	case route.ActionPending:
		m.requested = r
		return m, nil
	case route.ActionRedirect:
		if d.Target.Kind == route.KindLogin && r.Protected() {
			m.requested = r
		}
		return m.navigate(d.Target.Path)
	}

	m.route = r
	cmd := m.enter(r)
	return m, cmd
}

// enter prepares the screen for r and returns its initial fetches.
func (m *Model) enter(r route.Route) tea.Cmd {
	switch r.Kind {
	case route.KindLogin:
		m.login.reset()
		return m.login.focus()
	case route.KindDashboard:
		m.dashboard.summaryLoading = true
		return tea.Batch(m.fetchSummary(), m.fetchList(route.KindDashboard))
	case route.KindExecutions:
		return m.fetchList(route.KindExecutions)
	case route.KindChat:
		m.chat.open(r.SessionID)
		m.resize()
		return m.fetchSession(r.SessionID)
	}
	return nil
}

// afterLogin returns where a successful login lands.
func (m Model) afterLogin() string {
	if m.requested.Protected() {
		return m.requested.Path
	}
	return route.Dashboard.Path
}

func (m Model) logout() (tea.Model, tea.Cmd) {
	m.requested = route.Dashboard
	// The manager's navigator delivers the move to the login screen.
	m.deps.Manager.Logout(m.ctx)
	return m, nil
}

// ── Commands ────────────

func (m Model) fetchSummary() tea.Cmd {
	client, ctx := m.deps.API, m.ctx
	return func() tea.Msg {
		data, err := client.FetchSummary(ctx)
		return summaryMsg{data: data, err: err}
	}
}

// fetchList issues a ticket synchronously so responses that arrive out of
// order can be told apart.
func (m Model) fetchList(screen route.Kind) tea.Cmd {
	lv := m.dashboard.list
	if screen == route.KindExecutions {
		lv = m.executions.list
	}
	t := lv.Begin()
	client, ctx := m.deps.API, m.ctx
	return func() tea.Msg {
		res, err := client.FetchExecutions(ctx, t.Query)
		return listMsg{screen: screen, ticket: t, res: res, err: err}
	}
}

func (m Model) fetchSession(id string) tea.Cmd {
	client, ctx := m.deps.API, m.ctx
	return func() tea.Msg {
		records, err := client.FetchSession(ctx, id)
		return sessionMsg{sessionID: id, records: records, err: err}
	}
}

// ── Input ────────────

func (m Model) updateScreen(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.route.Kind {
	case route.KindLogin:
		return m.updateLogin(msg)
	case route.KindDashboard:
		return m.updateDashboard(msg)
	case route.KindExecutions:
		return m.updateExecutions(msg)
	case route.KindChat:
		return m.updateChat(msg)
	case route.KindNotFound:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "enter", "esc", "d":
			return m.navigate(route.Dashboard.Path)
		}
	}
	return m, nil
}

// navKeys handles the keys shared by the protected screens. ok is false when
// the key was not one of them.
func (m Model) navKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "q":
		return m, tea.Quit, true
	case "d":
		m2, cmd := m.navigate(route.Dashboard.Path)
		return m2, cmd, true
	case "e":
		m2, cmd := m.navigate(route.Executions.Path)
		return m2, cmd, true
	case "x":
		m2, cmd := m.logout()
		return m2, cmd, true
	}
	return m, nil, false
}

// ── Layout ────────────

// chromeHeight is title(1) + nav(1) + status bar(1).
const chromeHeight = 3

func (m *Model) resize() {
	body := m.height - chromeHeight
	if body < 1 {
		body = 1
	}
	m.dashboard.resize(m.width, body)
	m.executions.resize(m.width, body)
	m.chat.resize(m.width, body)
}

func (m Model) View() string {
	if !m.resolved {
		return "\n  " + m.spinner.View() + " Checking session…\n"
	}
	if m.width == 0 {
		return "Loading…"
	}

	var body string
	switch m.route.Kind {
	case route.KindLogin:
		body = m.viewLogin()
	case route.KindDashboard:
		body = m.viewDashboard()
	case route.KindExecutions:
		body = m.viewExecutions()
	case route.KindChat:
		body = m.viewChat()
	default:
		body = m.viewNotFound()
	}

	title := titleStyle.Width(m.width).Render("  chatwatch  AI Chatbot Monitoring")
	return lipgloss.JoinVertical(lipgloss.Left, title, m.viewNav(), body, m.viewStatusBar())
}

func (m Model) viewNav() string {
	if m.route.Kind == route.KindLogin {
		return lipgloss.NewStyle().Background(lipgloss.Color("235")).Width(m.width).Render("")
	}
	entries := []struct {
		kind  route.Kind
		label string
	}{
		{route.KindDashboard, " d Dashboard "},
		{route.KindExecutions, " e Executions "},
	}
	var parts []string
	for i, e := range entries {
		if e.kind == m.route.Kind {
			parts = append(parts, activeTabStyle.Render(e.label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(e.label))
		}
		if i < len(entries)-1 {
			parts = append(parts, tabSepStyle.Render("│"))
		}
	}
	if m.route.Kind == route.KindChat {
		parts = append(parts, tabSepStyle.Render("│"), activeTabStyle.Render(" Chat "))
	}
	return lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
}

func (m Model) viewStatusBar() string {
	left := m.hint()
	if m.toast != nil {
		style := toastInfoStyle
		switch m.toast.Level {
		case notify.LevelSuccess:
			style = toastSuccessStyle
		case notify.LevelError:
			style = toastErrorStyle
		}
		left = style.Render(m.toast.String())
	}

	right := ""
	if exp, ok := m.deps.Manager.ExpiresAt(); ok {
		right = "session until " + exp.Local().Format("Jan 2 15:04")
	}
	pad := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", pad) + right)
}

func (m Model) hint() string {
	switch m.route.Kind {
	case route.KindLogin:
		return "tab next field  enter sign in  ctrl+c quit"
	case route.KindDashboard:
		return "↑/↓ select  enter open chat  [/] page  l page size  s status  r refresh  x logout  q quit"
	case route.KindExecutions:
		if m.executions.editing {
			return "tab next field  enter apply  esc cancel"
		}
		return "↑/↓ select  enter open chat  [/] page  / filter  c clear  r refresh  x logout  q quit"
	case route.KindChat:
		return "↑/↓ scroll  esc back  r reload  x logout  q quit"
	default:
		return "enter back to dashboard  q quit"
	}
}

func (m Model) viewNotFound() string {
	var sb strings.Builder
	sb.WriteString(heading("404"))
	sb.WriteString("  Oops! Page not found\n\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  %s does not exist.", m.route.Path)) + "\n\n")
	sb.WriteString("  Press enter to return home.\n")
	return sb.String()
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}
