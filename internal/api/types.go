package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Count is a non-negative counter the API sends either as a JSON number or
// as a decimal string ("42").
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*c = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid count %s: %w", data, err)
	}
	if n < 0 {
		return fmt.Errorf("invalid count %d: negative", n)
	}
	*c = Count(n)
	return nil
}

// Cursor is an opaque pagination token. The API may send a string or a
// number; null decodes to a nil *Cursor.
type Cursor string

func (c *Cursor) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return fmt.Errorf("invalid cursor: %w", err)
	}
	*c = Cursor(s)
	return nil
}

// ID identifies an execution. Numeric and string identifiers both decode.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := scalarString(data)
	if err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}
	*id = ID(s)
	return nil
}

// scalarString returns a JSON string or number as text. null yields "".
func scalarString(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

// SummaryData holds the dashboard-wide counters.
type SummaryData struct {
	TotalChats       Count `json:"total_chats" yaml:"total_chats"`
	TotalEmployees   Count `json:"total_employees" yaml:"total_employees"`
	TotalSessions    Count `json:"total_sessions" yaml:"total_sessions"`
	TotalTokens      Count `json:"total_tokens" yaml:"total_tokens"`
	PromptTokens     Count `json:"prompt_tokens" yaml:"prompt_tokens"`
	CompletionTokens Count `json:"completion_tokens" yaml:"completion_tokens"`
}

// Message is one side (prompt or response) of an execution.
type Message struct {
	Query  string `json:"query" yaml:"query"`
	Answer string `json:"answer,omitempty" yaml:"answer,omitempty"`
	Tokens int64  `json:"tokens" yaml:"tokens"`
	Time   string `json:"time" yaml:"time"`
}

// Text returns the message body, preferring Answer when the API fills it.
func (m *Message) Text() string {
	if m == nil {
		return ""
	}
	if m.Answer != "" {
		return m.Answer
	}
	return m.Query
}

// Execution statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// ExecutionRecord is one chatbot interaction as stored by the remote system.
type ExecutionRecord struct {
	ExecutionID ID       `json:"execution_id" yaml:"execution_id"`
	SessionID   string   `json:"session_id" yaml:"session_id"`
	EmployeeID  string   `json:"employee_id" yaml:"employee_id"`
	Input       *Message `json:"input" yaml:"input"`
	Output      *Message `json:"output" yaml:"output"`
	Status      string   `json:"status" yaml:"status"`
}

// TotalTokens sums input and output tokens; ok is false when either side is
// missing.
func (e ExecutionRecord) TotalTokens() (total int64, ok bool) {
	if e.Input == nil || e.Output == nil {
		return 0, false
	}
	return e.Input.Tokens + e.Output.Tokens, true
}

// Filter keys understood by the executions endpoint.
const (
	FilterEmployeeID = "employee_id"
	FilterSessionID  = "session_id"
	FilterStatus     = "status"
	FilterSearch     = "search"
)

// FilterKeys lists the supported filters in display order.
var FilterKeys = []string{FilterEmployeeID, FilterSessionID, FilterStatus, FilterSearch}

// ListQuery selects one page of executions. Filters with empty values are
// not sent.
type ListQuery struct {
	Page    int
	Limit   int
	Filters map[string]string
}

// ListResult is one page of executions.
type ListResult struct {
	Page     int               `json:"page" yaml:"page"`
	Limit    int               `json:"limit" yaml:"limit"`
	Total    Count             `json:"total" yaml:"total"`
	Next     *Cursor           `json:"next" yaml:"next"`
	Previous *Cursor           `json:"previous" yaml:"previous"`
	Results  []ExecutionRecord `json:"results" yaml:"results"`
}

// SuccessRate returns the percentage of successful executions on this page.
func (r *ListResult) SuccessRate() float64 {
	if r == nil || len(r.Results) == 0 {
		return 0
	}
	ok := 0
	for _, e := range r.Results {
		if e.Status == StatusSuccess {
			ok++
		}
	}
	return float64(ok) / float64(len(r.Results)) * 100
}
