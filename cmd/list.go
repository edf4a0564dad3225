package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/chatwatch/internal/api"
	"github.com/fakeyudi/chatwatch/internal/listview"
	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/render"
	"github.com/fakeyudi/chatwatch/internal/route"
)

// outputFormat is shared by every command that prints API data.
var outputFormat string

func addOutputFlag(c *cobra.Command) {
	c.Flags().StringVarP(&outputFormat, "output", "o", "", "output format: table, json or yaml (default from config)")
}

// write renders v in the selected format to the command's output.
func write(cmd *cobra.Command, v any) error {
	format := outputFormat
	if format == "" {
		format = cfg.DefaultFormat
	}
	r, err := render.New(format)
	if err != nil {
		return err
	}
	out, err := r.Render(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show aggregate chat, session and token counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		console := notify.NewConsole(cmd.ErrOrStderr())
		if err := requireRoute(cmd.Context(), newManager(console, nil), route.Dashboard); err != nil {
			return err
		}
		s, err := newClient(console).FetchSummary(cmd.Context())
		if err != nil {
			return err
		}
		return write(cmd, s)
	},
}

var (
	listPage     int
	listLimit    int
	listEmployee string
	listSession  string
	listStatus   string
	listSearch   string
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"ls"},
	Short:   "List chatbot executions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		console := notify.NewConsole(cmd.ErrOrStderr())
		if err := requireRoute(cmd.Context(), newManager(console, nil), route.Executions); err != nil {
			return err
		}

		limit := listLimit
		if limit <= 0 {
			limit = cfg.PageSize
		}
		lv := listview.New(limit)
		lv.SetFilter(api.FilterEmployeeID, listEmployee)
		lv.SetFilter(api.FilterSessionID, listSession)
		lv.SetFilter(api.FilterStatus, listStatus)
		lv.SetFilter(api.FilterSearch, listSearch)
		lv.SetPage(listPage)

		if _, err := lv.Refresh(cmd.Context(), newClient(console)); err != nil {
			return err
		}
		return write(cmd, lv.Result())
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat <sessionId>",
	Short: "Print the transcript of one chat session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		console := notify.NewConsole(cmd.ErrOrStderr())
		r := route.Chat(args[0])
		if err := requireRoute(cmd.Context(), newManager(console, nil), r); err != nil {
			return err
		}
		records, err := newClient(console).FetchSession(cmd.Context(), r.SessionID)
		if err != nil {
			return err
		}
		return write(cmd, &render.Transcript{SessionID: r.SessionID, Records: records})
	},
}

func init() {
	executionsCmd.Flags().IntVar(&listPage, "page", 1, "page to show (1-based)")
	executionsCmd.Flags().IntVar(&listLimit, "limit", 0, "rows per page (default from config)")
	executionsCmd.Flags().StringVar(&listEmployee, "employee", "", "filter by employee id")
	executionsCmd.Flags().StringVar(&listSession, "session", "", "filter by session id")
	executionsCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (success or failure)")
	executionsCmd.Flags().StringVar(&listSearch, "search", "", "free-text search")

	for _, c := range []*cobra.Command{summaryCmd, executionsCmd, chatCmd} {
		addOutputFlag(c)
		rootCmd.AddCommand(c)
	}
}
