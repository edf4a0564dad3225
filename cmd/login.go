package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/chatwatch/internal/notify"
	"github.com/fakeyudi/chatwatch/internal/route"
)

var errLoginFailed = errors.New("login failed")

var (
	loginEmail    string
	loginPassword string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in as the admin for the next 24 hours",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newManager(notify.NewConsole(cmd.OutOrStdout()), nil)
		mgr.Initialize(cmd.Context())

		if d := route.Guard(mgr.State(), route.Login); d.Action == route.ActionRedirect {
			exp, _ := mgr.ExpiresAt()
			cmd.Printf("Already logged in until %s\n", exp.Local().Format("Jan 2, 2006 3:04 PM"))
			return nil
		}

		email, password, err := promptCredentials(cmd, loginEmail, loginPassword)
		if err != nil {
			return err
		}
		if !mgr.Login(cmd.Context(), email, password) {
			return errLoginFailed
		}
		return nil
	},
}

// promptCredentials fills in whichever of email and password were not given
// as flags. The password is read without echo when stdin is a terminal.
func promptCredentials(cmd *cobra.Command, email, password string) (string, string, error) {
	in := cmd.InOrStdin()
	r := bufio.NewReader(in)
	out := cmd.OutOrStdout()

	if email == "" {
		fmt.Fprint(out, "Email: ")
		line, err := readLine(r)
		if err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}
		email = line
	}
	if password == "" {
		fmt.Fprint(out, "Password: ")
		if f, ok := in.(*os.File); ok && term.IsTerminal(f.Fd()) {
			b, err := term.ReadPassword(f.Fd())
			fmt.Fprintln(out)
			if err != nil {
				return "", "", fmt.Errorf("reading password: %w", err)
			}
			password = string(b)
		} else {
			line, err := readLine(r)
			if err != nil {
				return "", "", fmt.Errorf("reading password: %w", err)
			}
			password = line
		}
	}
	return strings.TrimSpace(email), password, nil
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the admin session",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newManager(notify.NewConsole(cmd.OutOrStdout()), nil)
		mgr.Initialize(cmd.Context())
		mgr.Logout(cmd.Context())
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "admin email")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "admin password (prompted when omitted)")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
