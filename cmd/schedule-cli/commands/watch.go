package commands

import (
	"errors"
	"fmt"
	"sync"
	"univer-schedule/internal/cache"
	"univer-schedule/internal/components/chrono"

	"github.com/spf13/cobra"
)

const report_watch_theme = "watch.theme"

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the schedule on screen and refresh it on the configured cron spec.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var mutex sync.Mutex
		draw := func(snapshot cache.Snapshot) {
			mutex.Lock()
			defer mutex.Unlock()
			theme, err := current.policy.Theme(ctx)
			if err != nil {
				current.tel.ReportWarning(report_watch_theme, err)
				theme = cache.ThemeLight
			}
			renderSchedule(out, current, theme, snapshot, current.policy.SelectedCycle(""), -1)
		}
		current.onReload = draw

		snapshot, _, err := current.policy.Load(ctx)
		if errors.Is(err, cache.ErrNoSession) {
			return errNotSignedIn
		}
		if err != nil {
			return err
		}
		draw(snapshot)

		cron := chrono.NewStandardCron(current.tel, current.clock)
		defer cron.Stop()
		err = current.policy.Watch(ctx, cron, current.cfg.Cache.WatchSpec)
		if err != nil {
			return fmt.Errorf("watch spec %q: %w", current.cfg.Cache.WatchSpec, err)
		}

		<-ctx.Done()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
