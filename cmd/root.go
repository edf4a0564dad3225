package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/chatwatch/internal/api"
	"github.com/fakeyudi/chatwatch/internal/auth"
	"github.com/fakeyudi/chatwatch/internal/config"
	"github.com/fakeyudi/chatwatch/internal/logging"
	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/route"
	"github.com/fakeyudi/chatwatch/internal/session"
)

// ErrNotLoggedIn is returned by protected commands when there is no valid
// admin session.
var ErrNotLoggedIn = errors.New("not logged in: run 'chatwatch login' first")

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

var (
	logger    logr.Logger
	store     session.SessionStore
	closeRun  []func() error
	verbosity int
	logFile   string
	apiURL    string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:          "chatwatch",
	Short:        "Monitor AI chatbot executions from the terminal",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		if apiURL != "" {
			c.APIBaseURL = apiURL
		}
		if apiKey != "" {
			c.APIAuthKey = apiKey
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = c

		if err := setupLogger(cmd.ErrOrStderr()); err != nil {
			return err
		}

		s, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		store = s
		closeRun = append(closeRun, closeStore)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return cleanup()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd()) {
			return runDashboard(cmd, route.Dashboard.Path)
		}
		return cmd.Help()
	},
}

// setupLogger sends logs to --log-file when given, otherwise to w once -v is
// set. Without either the logger is silent.
func setupLogger(w io.Writer) error {
	switch {
	case logFile != "":
		f, err := logging.OpenFile(logFile)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		closeRun = append(closeRun, f.Close)
		logger = logging.New(logging.Options{Writer: f, Verbosity: verbosity})
	case verbosity > 0:
		logger = logging.New(logging.Options{Writer: w, Verbosity: verbosity - 1})
	default:
		logger = logr.Discard()
	}
	return nil
}

// openStore returns the session store selected by c.SessionBackend.
func openStore(c config.Config) (session.SessionStore, func() error, error) {
	if c.SessionBackend == config.BackendRedis {
		rs, err := session.NewRedisStore(session.RedisConfig{
			URL:    c.RedisURL,
			Prefix: c.RedisPrefix,
			TTL:    auth.SessionWindow,
		})
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Close, nil
	}
	ds, err := session.NewSessionStore()
	if err != nil {
		return nil, nil, err
	}
	return ds, func() error { return nil }, nil
}

func cleanup() error {
	var errs []error
	for i := len(closeRun) - 1; i >= 0; i-- {
		errs = append(errs, closeRun[i]())
	}
	closeRun = nil
	return errors.Join(errs...)
}

// newManager builds an auth manager over the configured store.
func newManager(n notify.Notifier, nav auth.Navigator) *auth.Manager {
	return auth.NewManager(auth.Options{
		Admin:     auth.Credentials{Email: cfg.AdminEmail, Password: cfg.AdminPassword},
		Store:     store,
		Notifier:  n,
		Navigator: nav,
		Logger:    logger.WithName("auth"),
	})
}

// newClient builds an API client from the configuration.
func newClient(n notify.Notifier) *api.Client {
	timeout, _ := cfg.Timeout() // checked by Validate
	return api.NewClient(api.ClientConfig{
		BaseURL:           cfg.APIBaseURL,
		AuthKey:           cfg.APIAuthKey,
		Timeout:           timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Notifier:          n,
		Logger:            logger,
	})
}

// requireRoute resolves the stored session and fails with ErrNotLoggedIn
// unless the guard lets r render.
func requireRoute(ctx context.Context, mgr *auth.Manager, r route.Route) error {
	mgr.Initialize(ctx)
	if d := route.Guard(mgr.State(), r); d.Action != route.ActionRender {
		return ErrNotLoggedIn
	}
	return nil
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cleanup()
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "execution log API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API authorization key (overrides config)")
}
