package commands

import (
	"errors"
	"fmt"
	"univer-schedule/internal/cache"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the schedule again now, regardless of its age.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snapshot, err := current.policy.Refresh(ctx)
		if errors.Is(err, cache.ErrNoSession) {
			return errNotSignedIn
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), loginMessage(err))
			return errSilent
		}
		theme, err := current.policy.Theme(ctx)
		if err != nil {
			return err
		}
		renderSchedule(cmd.OutOrStdout(), current, theme, snapshot, current.policy.SelectedCycle(""), -1)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}
