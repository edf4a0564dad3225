package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	fieldEmail = iota
	fieldPassword
	loginFieldCount
)

type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focused  int
	failed   bool
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "admin@example.com"
	email.CharLimit = 254
	email.Prompt = ""

	pw := textinput.New()
	pw.Placeholder = "password"
	pw.CharLimit = 128
	pw.Prompt = ""
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'

	return loginForm{email: email, password: pw}
}

func (f *loginForm) reset() {
	f.password.SetValue("")
	f.focused = fieldEmail
	f.failed = false
}

func (f *loginForm) focus() tea.Cmd {
	f.email.Blur()
	f.password.Blur()
	if f.focused == fieldPassword {
		return f.password.Focus()
	}
	return f.email.Focus()
}

func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	switch msg.String() {
	case "tab", "down", "shift+tab", "up":
		f.focused = (f.focused + 1) % loginFieldCount
		cmd := f.focus()
		return m, cmd

	case "enter":
		if f.focused == fieldEmail && f.password.Value() == "" {
			f.focused = fieldPassword
			cmd := f.focus()
			return m, cmd
		}
		email := strings.TrimSpace(f.email.Value())
		if !m.deps.Manager.Login(m.ctx, email, f.password.Value()) {
			f.failed = true
			f.password.SetValue("")
			f.focused = fieldPassword
			cmd := f.focus()
			return m, cmd
		}
		f.reset()
		target := m.afterLogin()
		return m.navigate(target)

	case "esc":
		return m, tea.Quit
	}

	var cmd tea.Cmd
	if f.focused == fieldPassword {
		f.password, cmd = f.password.Update(msg)
	} else {
		f.email, cmd = f.email.Update(msg)
	}
	return m, cmd
}

func (m Model) viewLogin() string {
	f := m.login
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39")).
		Render("Admin Login")

	field := func(label string, in textinput.Model, focused bool) string {
		l := dimStyle.Render(label)
		if focused {
			l = labelStyle.Render(label)
		}
		return l + "\n" + in.View()
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	sb.WriteString(dimStyle.Render("Enter your credentials to access the dashboard") + "\n\n")
	sb.WriteString(field("Email", f.email, f.focused == fieldEmail) + "\n\n")
	sb.WriteString(field("Password", f.password, f.focused == fieldPassword))
	if f.failed {
		sb.WriteString("\n\n" + errorTextStyle.Render("Invalid email or password"))
	}

	box := boxStyle.Render(sb.String())
	h := m.height - chromeHeight
	if h < lipgloss.Height(box) {
		h = lipgloss.Height(box)
	}
	return lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, box)
}
