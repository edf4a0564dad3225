package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	return executeCommandWithInput(root, strings.NewReader(""), args...)
}

func executeCommandWithInput(root *cobra.Command, in io.Reader, args ...string) (string, error) {
	resetFlags(root)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(in)
	root.SetArgs(args)
	_, err := root.ExecuteC()
	cleanup()
	return buf.String(), err
}

// resetFlags restores every flag to its default; cobra keeps values between
// executions of the same command tree.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points config and session state at a fresh temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	for _, k := range []string{"API_BASE_URL", "API_AUTH_KEY", "ADMIN_EMAIL", "ADMIN_PASSWORD",
		"CHATWATCH_SESSION_BACKEND", "CHATWATCH_REDIS_URL", "CHATWATCH_PAGE_SIZE"} {
		t.Setenv(k, "")
	}
	return tmp
}

func login(t *testing.T) {
	t.Helper()
	out, err := executeCommand(rootCmd, "login", "--email", "admin@example.com", "--password", "password123")
	require.NoError(t, err, out)
}

// mockAPI serves the executions endpoints from canned bodies.
func mockAPI(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRootWithoutTerminalPrintsHelp(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands")
	assert.Contains(t, out, "executions")
}

func TestLoginStatusLogout(t *testing.T) {
	isolate(t)

	out, err := executeCommand(rootCmd, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")

	out, err = executeCommand(rootCmd, "login", "--email", "admin@example.com", "--password", "password123")
	require.NoError(t, err)
	assert.Contains(t, out, "Login successful")

	out, err = executeCommand(rootCmd, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in: yes")
	assert.Contains(t, out, "Backend: file")

	out, err = executeCommand(rootCmd, "login", "--email", "admin@example.com", "--password", "password123")
	require.NoError(t, err)
	assert.Contains(t, out, "Already logged in")

	out, err = executeCommand(rootCmd, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = executeCommand(rootCmd, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "not logged in")
}

func TestLoginWrongPassword(t *testing.T) {
	isolate(t)
	out, err := executeCommand(rootCmd, "login", "--email", "admin@example.com", "--password", "guess")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errLoginFailed))
	assert.Contains(t, out, "Invalid email or password")

	out, _ = executeCommand(rootCmd, "status")
	assert.Contains(t, out, "not logged in")
}

func TestLoginPromptsForMissingCredentials(t *testing.T) {
	isolate(t)
	out, err := executeCommandWithInput(rootCmd, strings.NewReader("admin@example.com\npassword123\n"), "login")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "Login successful")
}

func TestLoginUsesConfiguredAdmin(t *testing.T) {
	isolate(t)
	t.Setenv("ADMIN_EMAIL", "ops@example.com")
	t.Setenv("ADMIN_PASSWORD", "s3cret")

	_, err := executeCommand(rootCmd, "login", "--email", "admin@example.com", "--password", "password123")
	require.Error(t, err)
	_, err = executeCommand(rootCmd, "login", "--email", "ops@example.com", "--password", "s3cret")
	require.NoError(t, err)
}

func TestProtectedCommandsRequireLogin(t *testing.T) {
	isolate(t)
	for _, args := range [][]string{{"executions"}, {"summary"}, {"chat", "s-1"}} {
		_, err := executeCommand(rootCmd, args...)
		assert.ErrorIs(t, err, ErrNotLoggedIn, args[0])
	}
}

func TestExecutionsCommand(t *testing.T) {
	isolate(t)
	url := mockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/executions", r.URL.Path)
		assert.Equal(t, "mysecretkey", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "E1", q.Get("employee_id"))
		assert.False(t, q.Has("session_id"))
		w.Write([]byte(`{"total":"6","results":[{"execution_id":1,"employee_id":"E1","session_id":"s-1","status":"success"}]}`))
	})
	login(t)

	out, err := executeCommand(rootCmd, "executions", "--api-url", url, "--page", "2", "--limit", "5", "--employee", "E1", "-o", "json")
	require.NoError(t, err, out)

	var res struct {
		Total   int `json:"total"`
		Page    int `json:"page"`
		Results []struct {
			EmployeeID string `json:"employee_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 2, res.Page)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "E1", res.Results[0].EmployeeID)
}

func TestExecutionsCommandAPIFailure(t *testing.T) {
	isolate(t)
	url := mockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	login(t)

	out, err := executeCommand(rootCmd, "executions", "--api-url", url)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error: 502")
	assert.Contains(t, out, "Error: API error: 502")
}

func TestSummaryCommandYAML(t *testing.T) {
	isolate(t)
	url := mockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/executions/summary", r.URL.Path)
		w.Write([]byte(`{"total_chats":"42","total_employees":"7","total_sessions":"12","total_tokens":"1500","prompt_tokens":"600","completion_tokens":"900"}`))
	})
	login(t)

	out, err := executeCommand(rootCmd, "summary", "--api-url", url, "-o", "yaml")
	require.NoError(t, err, out)

	var s map[string]int
	require.NoError(t, yaml.Unmarshal([]byte(out), &s), out)
	assert.Equal(t, 42, s["total_chats"])
	assert.Equal(t, 900, s["completion_tokens"])
}

func TestChatCommandTable(t *testing.T) {
	isolate(t)
	url := mockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s-1", r.URL.Query().Get("session_id"))
		w.Write([]byte(`{"total":1,"next":null,"results":[{"execution_id":9,"session_id":"s-1","employee_id":"E1",
			"input":{"query":"hello","tokens":2,"time":"2024-01-15T10:30:00Z"},
			"output":{"query":"hi there","tokens":3,"time":"2024-01-15T10:30:01Z"},"status":"success"}]}`))
	})
	login(t)

	out, err := executeCommand(rootCmd, "chat", "s-1", "--api-url", url)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Chat session s-1")
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "hi there")
}

func TestUnknownOutputFormat(t *testing.T) {
	isolate(t)
	url := mockAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	login(t)

	_, err := executeCommand(rootCmd, "summary", "--api-url", url, "-o", "xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	isolate(t)
	t.Setenv("CHATWATCH_SESSION_BACKEND", "etcd")
	_, err := executeCommand(rootCmd, "status")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestSetupWritesGlobalConfig(t *testing.T) {
	tmp := isolate(t)
	answers := "https://n8n.example.com\n\n\n\n20\n\n\n"
	out, err := executeCommandWithInput(rootCmd, strings.NewReader(answers), "setup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Config saved")

	data, err := os.ReadFile(filepath.Join(tmp, ".config", "chatwatch", "config.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"api_base_url": "https://n8n.example.com"`)
	assert.Contains(t, string(data), `"page_size": 20`)
}

func TestLogFileReceivesLogs(t *testing.T) {
	tmp := isolate(t)
	logPath := filepath.Join(tmp, "chatwatch.log")

	_, err := executeCommand(rootCmd, "login", "--email", "admin@example.com", "--password", "password123", "--log-file", logPath)
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "login accepted")
	assert.NotContains(t, string(data), "password123")
}
