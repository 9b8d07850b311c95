package commands

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"univer-schedule/internal/acquisition"
	"univer-schedule/internal/timetable"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	msgInvalidCredentials = "Неверный логин или пароль (КарТУ)"
	msgAcquisitionFailed  = "Ошибка сервера или парсера, попробуйте позже"
)

var (
	loginUsername string
	loginPassword string
)

// readPassword prompts without echo on a terminal and reads a single line
// when the password is piped in.
func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Пароль: ")
	if file, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		password, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(password), nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// loginMessage is what the student sees when signing in failed.
func loginMessage(err error) string {
	if errors.Is(err, timetable.ErrMissingCredentials) {
		return err.Error()
	}
	if acquisition.Classify(err) == acquisition.KindInvalidCredentials {
		return msgInvalidCredentials
	}
	return msgAcquisitionFailed
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the univer portal and cache your schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			var err error
			password, err = readPassword(cmd)
			if err != nil {
				return err
			}
		}

		snapshot, err := current.policy.Login(cmd.Context(), timetable.Credentials{
			Username: loginUsername,
			Password: password,
		})
		if err != nil {
			current.tel.ReportDebug("login failed", "err", err)
			fmt.Fprintln(cmd.ErrOrStderr(), loginMessage(err))
			return errSilent
		}

		theme, err := current.policy.Theme(cmd.Context())
		if err != nil {
			return err
		}
		cycle := current.policy.SelectedCycle("")
		renderSchedule(cmd.OutOrStdout(), current, theme, snapshot, cycle, -1)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Portal username.")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Portal password, read from stdin when omitted.")
	loginCmd.MarkFlagRequired("username")
	rootCmd.AddCommand(loginCmd)
}
