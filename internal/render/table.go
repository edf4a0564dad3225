package render

import (
	"bytes"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/fakeyudi/chatwatch/internal/api"
)

// cellWidth caps prompt and response columns.
const cellWidth = 40

var (
	successStatus = color.New(color.FgGreen)
	failureStatus = color.New(color.FgRed)
	heading       = color.New(color.Bold)
	userLabel     = color.New(color.FgCyan, color.Bold)
	botLabel      = color.New(color.FgMagenta, color.Bold)
)

// TableRenderer renders aligned, human-readable text.
type TableRenderer struct{}

func (r *TableRenderer) Render(v any) ([]byte, error) {
	var buf bytes.Buffer
	switch v := v.(type) {
	case *api.ListResult:
		renderList(&buf, v)
	case *api.SummaryData:
		renderSummary(&buf, v)
	case *Transcript:
		renderTranscript(&buf, v)
	default:
		return nil, fmt.Errorf("table output does not support %T", v)
	}
	return buf.Bytes(), nil
}

func renderList(buf *bytes.Buffer, res *api.ListResult) {
	if len(res.Results) == 0 {
		buf.WriteString("No executions found.\n")
		return
	}

	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXECUTION\tEMPLOYEE\tSESSION\tSTART\tEND\tINPUT\tOUTPUT\tTOKENS\tSTATUS")
	for _, e := range res.Results {
		start, end := "N/A", "N/A"
		if e.Input != nil {
			start = FormatDate(e.Input.Time)
		}
		if e.Output != nil {
			end = FormatDate(e.Output.Time)
		}
		tokens := "N/A"
		if total, ok := e.TotalTokens(); ok {
			tokens = strconv.FormatInt(total, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ExecutionID,
			orNA(e.EmployeeID),
			orNA(e.SessionID),
			start,
			end,
			orNA(Truncate(e.Input.Text(), cellWidth)),
			orNA(Truncate(e.Output.Text(), cellWidth)),
			tokens,
			Status(e.Status),
		)
	}
	tw.Flush()

	pages := 0
	if res.Limit > 0 {
		pages = (int(res.Total) + res.Limit - 1) / res.Limit
	}
	fmt.Fprintf(buf, "\nPage %d of %d (%d total)\n", res.Page, pages, res.Total)
}

func renderSummary(buf *bytes.Buffer, s *api.SummaryData) {
	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total chats:\t%d\n", s.TotalChats)
	fmt.Fprintf(tw, "Employees:\t%d\n", s.TotalEmployees)
	fmt.Fprintf(tw, "Sessions:\t%d\n", s.TotalSessions)
	fmt.Fprintf(tw, "Total tokens:\t%d\n", s.TotalTokens)
	fmt.Fprintf(tw, "  prompt:\t%d\n", s.PromptTokens)
	fmt.Fprintf(tw, "  completion:\t%d\n", s.CompletionTokens)
	tw.Flush()
}

func renderTranscript(buf *bytes.Buffer, t *Transcript) {
	heading.Fprintf(buf, "Chat session %s\n", t.SessionID)
	if len(t.Records) == 0 {
		buf.WriteString("\nNo messages found. This chat session appears to be empty.\n")
		return
	}
	first := t.Records[0]
	started := "N/A"
	if first.Input != nil {
		started = FormatDate(first.Input.Time)
	}
	fmt.Fprintf(buf, "Employee: %s  Started: %s  Messages: %d\n", orNA(first.EmployeeID), started, len(t.Records))

	for _, e := range t.Records {
		buf.WriteString("\n")
		if e.Input != nil {
			userLabel.Fprint(buf, "User")
			fmt.Fprintf(buf, "  %s\n%s\n", FormatDate(e.Input.Time), e.Input.Text())
		}
		if e.Output != nil {
			botLabel.Fprint(buf, "Assistant")
			fmt.Fprintf(buf, "  %s  %d tokens\n%s\n", FormatDate(e.Output.Time), e.Output.Tokens, e.Output.Text())
		}
	}
}

// Status colours an execution status.
func Status(s string) string {
	switch s {
	case api.StatusSuccess:
		return successStatus.Sprint(s)
	case "":
		return "N/A"
	default:
		return failureStatus.Sprint(s)
	}
}
