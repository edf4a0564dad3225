package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/chatwatch/internal/api"
	"github.com/fakeyudi/chatwatch/internal/render"
	"github.com/fakeyudi/chatwatch/internal/route"
)

// chatHeaderHeight is the session info block above the transcript.
const chatHeaderHeight = 5

type chatScreen struct {
	sessionID string
	records   []api.ExecutionRecord
	err       error
	loading   bool
	viewport  viewport.Model
	width     int
}

func newChatScreen() chatScreen {
	return chatScreen{viewport: viewport.New(0, 0)}
}

func (c *chatScreen) open(sessionID string) {
	c.sessionID = sessionID
	c.records = nil
	c.err = nil
	c.loading = true
	c.viewport.SetContent("")
	c.viewport.GotoTop()
}

func (c *chatScreen) apply(records []api.ExecutionRecord, err error) {
	c.loading = false
	c.err = err
	if err == nil {
		c.records = records
	}
	c.viewport.SetContent(c.renderTranscript())
	c.viewport.GotoBottom()
}

func (c *chatScreen) resize(width, height int) {
	c.width = width
	h := height - chatHeaderHeight
	if h < 1 {
		h = 1
	}
	c.viewport.Width = width
	c.viewport.Height = h
	c.viewport.SetContent(c.renderTranscript())
}

func (c *chatScreen) renderTranscript() string {
	if len(c.records) == 0 {
		return ""
	}
	bubbleWidth := c.width * 2 / 3
	if bubbleWidth < 20 {
		bubbleWidth = 20
	}

	var sb strings.Builder
	for _, e := range c.records {
		if e.Input != nil {
			meta := timeStyle.Render(render.FormatDate(e.Input.Time))
			body := userStyle.Width(bubbleWidth).Render(labelStyle.Render("User") + "  " + meta + "\n" + e.Input.Text())
			sb.WriteString(body + "\n")
		}
		if e.Output != nil {
			status := successStyle.Render(e.Status)
			if e.Status != api.StatusSuccess {
				status = failureStyle.Render(valueOrNA(e.Status))
			}
			meta := timeStyle.Render(render.FormatDate(e.Output.Time)) + "  " +
				dimStyle.Render(fmt.Sprintf("%d tokens", e.Output.Tokens)) + "  " + status
			body := botStyle.Width(bubbleWidth).Render(sectionHeader.Render("Assistant") + "  " + meta + "\n" + e.Output.Text())
			sb.WriteString(lipgloss.PlaceHorizontal(c.width, lipgloss.Right, body) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) updateChat(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m2, cmd, ok := m.navKeys(msg.String()); ok {
		return m2, cmd
	}
	switch msg.String() {
	case "esc", "backspace":
		return m.navigate(route.Executions.Path)
	case "r":
		m.chat.open(m.chat.sessionID)
		return m, m.fetchSession(m.chat.sessionID)
	}
	var cmd tea.Cmd
	m.chat.viewport, cmd = m.chat.viewport.Update(msg)
	return m, cmd
}

func (m Model) viewChat() string {
	c := m.chat
	var sb strings.Builder

	started, employee := "No data", "N/A"
	if len(c.records) > 0 {
		first := c.records[0]
		if first.Input != nil {
			started = render.FormatDate(first.Input.Time)
		}
		employee = valueOrNA(first.EmployeeID)
	}
	sb.WriteString(heading("Chat Session"))
	sb.WriteString(labelStyle.Render("  Session ID ") + c.sessionID + "   " +
		labelStyle.Render("Employee ") + employee + "   " +
		labelStyle.Render("Started ") + started + "   " +
		labelStyle.Render("Messages ") + fmt.Sprint(len(c.records)) + "\n\n")

	switch {
	case c.loading:
		sb.WriteString("  " + m.spinner.View() + " Loading conversation…\n")
	case c.err != nil:
		sb.WriteString(errorTextStyle.Render("  Failed to load chat") + "\n")
		sb.WriteString(dimStyle.Render("  Please try again later (r to reload)") + "\n")
	case len(c.records) == 0:
		sb.WriteString("  No messages found\n")
		sb.WriteString(dimStyle.Render("  This chat session appears to be empty") + "\n")
	default:
		sb.WriteString(c.viewport.View())
	}
	return sb.String()
}
