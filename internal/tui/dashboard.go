package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/chatwatch/internal/api"
	"github.com/fakeyudi/chatwatch/internal/listview"
	"github.com/fakeyudi/chatwatch/internal/render"
	"github.com/fakeyudi/chatwatch/internal/route"
)

// statusCycle is the order the dashboard's status filter steps through.
var statusCycle = []string{"", api.StatusSuccess, api.StatusFailure}

type dashboardScreen struct {
	list  *listview.State
	table table.Model

	summary        *api.SummaryData
	summaryErr     error
	summaryLoading bool
}

func newDashboardScreen(pageSize int) dashboardScreen {
	return dashboardScreen{
		list:  listview.New(pageSize),
		table: newExecutionTable(),
	}
}

// newExecutionTable returns the table used by the list screens.
func newExecutionTable() table.Model {
	t := table.New(
		table.WithColumns(executionColumns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62"))
	t.SetStyles(s)
	return t
}

// executionColumns sizes the columns for width, giving the slack to the
// prompt and response columns.
func executionColumns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "ID", Width: 8},
		{Title: "Employee", Width: 10},
		{Title: "Session", Width: 14},
		{Title: "Started", Width: 20},
		{Title: "Tokens", Width: 7},
		{Title: "Status", Width: 8},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	text := (width - used - 4) / 2
	if text < 12 {
		text = 12
	}
	return []table.Column{
		fixed[0], fixed[1], fixed[2], fixed[3],
		{Title: "Input", Width: text},
		{Title: "Output", Width: text},
		fixed[4], fixed[5],
	}
}

// executionRows converts a page of executions into table rows.
func executionRows(res *api.ListResult, textWidth int) []table.Row {
	if res == nil {
		return nil
	}
	rows := make([]table.Row, 0, len(res.Results))
	for _, e := range res.Results {
		started := "N/A"
		if e.Input != nil {
			started = render.FormatDate(e.Input.Time)
		}
		tokens := "N/A"
		if total, ok := e.TotalTokens(); ok {
			tokens = strconv.FormatInt(total, 10)
		}
		status := e.Status
		if status == "" {
			status = "N/A"
		}
		rows = append(rows, table.Row{
			string(e.ExecutionID),
			valueOrNA(e.EmployeeID),
			valueOrNA(e.SessionID),
			started,
			valueOrNA(render.Truncate(e.Input.Text(), textWidth)),
			valueOrNA(render.Truncate(e.Output.Text(), textWidth)),
			tokens,
			status,
		})
	}
	return rows
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// selectedSession returns the session id of the highlighted row.
func selectedSession(t table.Model) (string, bool) {
	row := t.SelectedRow()
	if len(row) < 3 || row[2] == "N/A" {
		return "", false
	}
	return row[2], true
}

func (d *dashboardScreen) resize(width, height int) {
	d.table.SetColumns(executionColumns(width))
	// Cards take 5 rows, headings and the pager the rest.
	h := height - 12
	if h < 3 {
		h = 3
	}
	d.table.SetHeight(h)
	d.syncRows()
}

func (d *dashboardScreen) syncRows() {
	cols := d.table.Columns()
	d.table.SetRows(executionRows(d.list.Result(), cols[4].Width))
}

func (m Model) updateDashboard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m2, cmd, ok := m.navKeys(msg.String()); ok {
		return m2, cmd
	}
	d := &m.dashboard
	switch msg.String() {
	case "enter":
		if id, ok := selectedSession(d.table); ok {
			return m.navigate(route.Chat(id).Path)
		}
		return m, nil
	case "]", "right":
		if d.list.NextPage() {
			return m, m.fetchList(route.KindDashboard)
		}
		return m, nil
	case "[", "left":
		if d.list.PrevPage() {
			return m, m.fetchList(route.KindDashboard)
		}
		return m, nil
	case "l":
		d.list.SetLimit(nextPageSize(d.list.Limit()))
		return m, m.fetchList(route.KindDashboard)
	case "s":
		d.list.SetFilter(api.FilterStatus, nextStatus(d.list.Filters()[api.FilterStatus]))
		return m, m.fetchList(route.KindDashboard)
	case "r":
		d.summaryLoading = true
		return m, tea.Batch(m.fetchSummary(), m.fetchList(route.KindDashboard))
	}
	var cmd tea.Cmd
	d.table, cmd = d.table.Update(msg)
	return m, cmd
}

func nextPageSize(current int) int {
	for i, n := range listview.PageSizes {
		if n == current {
			return listview.PageSizes[(i+1)%len(listview.PageSizes)]
		}
	}
	return listview.PageSizes[0]
}

func nextStatus(current string) string {
	for i, s := range statusCycle {
		if s == current {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return ""
}

func (m Model) viewDashboard() string {
	d := m.dashboard
	var sb strings.Builder

	sb.WriteString(m.viewSummaryCards())
	sb.WriteString("\n")

	status := d.list.Filters()[api.FilterStatus]
	if status == "" {
		status = "all"
	}
	sb.WriteString(sectionHeader.Render("  Recent Executions") + "  " +
		dimStyle.Render(fmt.Sprintf("status: %s  page size: %d", status, d.list.Limit())) + "\n\n")
	sb.WriteString(m.viewList(d.list, d.table))
	return sb.String()
}

func (m Model) viewSummaryCards() string {
	d := m.dashboard
	value := func(c api.Count) string {
		switch {
		case d.summaryLoading && d.summary == nil:
			return m.spinner.View()
		case d.summary == nil:
			return "-"
		}
		return strconv.FormatInt(int64(c), 10)
	}
	var s api.SummaryData
	if d.summary != nil {
		s = *d.summary
	}
	card := func(label, val, sub string) string {
		return cardStyle.Render(dimStyle.Render(label) + "\n" + cardValueStyle.Render(val) + "\n" + dimStyle.Render(sub))
	}

	rate := "-"
	if res := d.list.Result(); res != nil && len(res.Results) > 0 {
		rate = fmt.Sprintf("%.1f%%", res.SuccessRate())
	}

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total Chats", value(s.TotalChats), fmt.Sprintf("%s employees", value(s.TotalEmployees))),
		card("Sessions", value(s.TotalSessions), "distinct conversations"),
		card("Total Tokens", value(s.TotalTokens), fmt.Sprintf("%s in / %s out", value(s.PromptTokens), value(s.CompletionTokens))),
		card("Success Rate", rate, "of this page"),
	)
	if d.summaryErr != nil {
		cards += "\n" + errorTextStyle.Render("  Failed to load summary")
	}
	return cards
}

// viewList renders a list screen's table with its loading, error, empty and
// pager states.
func (m Model) viewList(lv *listview.State, t table.Model) string {
	res := lv.Result()
	switch {
	case res == nil && lv.Err() != nil:
		return errorTextStyle.Render("  Failed to load executions. Press r to retry.") + "\n"
	case res == nil:
		return "  " + m.spinner.View() + " Loading executions…\n"
	case len(res.Results) == 0:
		return dimStyle.Render("  No executions found.") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(t.View() + "\n")

	pager := fmt.Sprintf("  Page %d of %d  (%d total)", lv.Page(), lv.TotalPages(), res.Total)
	if lv.Loading() {
		pager += "  " + m.spinner.View()
	}
	sb.WriteString(timeStyle.Render(pager) + "\n")
	return sb.String()
}
