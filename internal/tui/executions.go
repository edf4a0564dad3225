package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/chatwatch/internal/api"
	"github.com/fakeyudi/chatwatch/internal/listview"
	"github.com/fakeyudi/chatwatch/internal/route"
)

const (
	filterEmployee = iota
	filterSession
	filterSearch
	filterFieldCount
)

type executionsScreen struct {
	list  *listview.State
	table table.Model

	inputs  [filterFieldCount]textinput.Model
	editing bool
	focused int
}

func newExecutionsScreen(pageSize int) executionsScreen {
	s := executionsScreen{
		list:  listview.New(pageSize),
		table: newExecutionTable(),
	}
	placeholders := [filterFieldCount]string{"Employee ID", "Session ID", "Prompt or response text"}
	for i := range s.inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 128
		in.Width = 24
		s.inputs[i] = in
	}
	return s
}

func (s *executionsScreen) resize(width, height int) {
	s.table.SetColumns(executionColumns(width))
	h := height - 10
	if h < 3 {
		h = 3
	}
	s.table.SetHeight(h)
	s.syncRows()
}

func (s *executionsScreen) syncRows() {
	cols := s.table.Columns()
	s.table.SetRows(executionRows(s.list.Result(), cols[4].Width))
}

// startEditing loads the active filters into the inputs and focuses the
// first one.
func (s *executionsScreen) startEditing() tea.Cmd {
	f := s.list.Filters()
	s.inputs[filterEmployee].SetValue(f[api.FilterEmployeeID])
	s.inputs[filterSession].SetValue(f[api.FilterSessionID])
	s.inputs[filterSearch].SetValue(f[api.FilterSearch])
	s.editing = true
	s.focused = filterEmployee
	s.table.Blur()
	return s.focusInput()
}

func (s *executionsScreen) focusInput() tea.Cmd {
	for i := range s.inputs {
		s.inputs[i].Blur()
	}
	return s.inputs[s.focused].Focus()
}

func (s *executionsScreen) stopEditing() {
	for i := range s.inputs {
		s.inputs[i].Blur()
	}
	s.editing = false
	s.table.Focus()
}

// applyFilters copies the inputs into the list state, which returns it to
// page 1.
func (s *executionsScreen) applyFilters() {
	s.list.SetFilter(api.FilterEmployeeID, strings.TrimSpace(s.inputs[filterEmployee].Value()))
	s.list.SetFilter(api.FilterSessionID, strings.TrimSpace(s.inputs[filterSession].Value()))
	s.list.SetFilter(api.FilterSearch, strings.TrimSpace(s.inputs[filterSearch].Value()))
}

func (m Model) updateExecutions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &m.executions
	if s.editing {
		switch msg.String() {
		case "esc":
			s.stopEditing()
			return m, nil
		case "tab", "shift+tab", "down", "up":
			s.focused = (s.focused + 1) % filterFieldCount
			cmd := s.focusInput()
			return m, cmd
		case "enter":
			s.applyFilters()
			s.stopEditing()
			return m, m.fetchList(route.KindExecutions)
		}
		var cmd tea.Cmd
		s.inputs[s.focused], cmd = s.inputs[s.focused].Update(msg)
		return m, cmd
	}

	if m2, cmd, ok := m.navKeys(msg.String()); ok {
		return m2, cmd
	}
	switch msg.String() {
	case "/", "f":
		cmd := s.startEditing()
		return m, cmd
	case "c":
		s.list.ClearFilters()
		for i := range s.inputs {
			s.inputs[i].SetValue("")
		}
		return m, m.fetchList(route.KindExecutions)
	case "enter":
		if id, ok := selectedSession(s.table); ok {
			return m.navigate(route.Chat(id).Path)
		}
		return m, nil
	case "]", "right":
		if s.list.NextPage() {
			return m, m.fetchList(route.KindExecutions)
		}
		return m, nil
	case "[", "left":
		if s.list.PrevPage() {
			return m, m.fetchList(route.KindExecutions)
		}
		return m, nil
	case "r":
		return m, m.fetchList(route.KindExecutions)
	}
	var cmd tea.Cmd
	s.table, cmd = s.table.Update(msg)
	return m, cmd
}

func (m Model) viewExecutions() string {
	s := m.executions
	var sb strings.Builder
	sb.WriteString(heading("Executions"))

	labels := [filterFieldCount]string{"Employee", "Session", "Search"}
	if s.editing {
		for i, in := range s.inputs {
			l := dimStyle.Render(fmt.Sprintf("  %-9s", labels[i]))
			if i == s.focused {
				l = labelStyle.Render(fmt.Sprintf("  %-9s", labels[i]))
			}
			sb.WriteString(l + " " + in.View() + "\n")
		}
	} else {
		f := s.list.Filters()
		active := []string{}
		if v := f[api.FilterEmployeeID]; v != "" {
			active = append(active, "employee="+v)
		}
		if v := f[api.FilterSessionID]; v != "" {
			active = append(active, "session="+v)
		}
		if v := f[api.FilterSearch]; v != "" {
			active = append(active, fmt.Sprintf("search=%q", v))
		}
		line := "no filters"
		if len(active) > 0 {
			line = strings.Join(active, "  ")
		}
		sb.WriteString(dimStyle.Render("  Filters: "+line) + "\n\n")
	}
	sb.WriteString("\n")
	sb.WriteString(m.viewList(s.list, s.table))
	return sb.String()
}
