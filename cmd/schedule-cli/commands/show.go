package commands

import (
	"errors"
	"fmt"
	"univer-schedule/internal/cache"
	"univer-schedule/internal/calendar"

	"github.com/spf13/cobra"
)

var (
	showCycle string
	showDay   string
)

func parseCycleFlag(value string) (calendar.Cycle, error) {
	if value == "" {
		return "", nil
	}
	cycle, ok := calendar.ParseCycle(value)
	if !ok {
		return "", fmt.Errorf("unknown cycle %q, use A or B", value)
	}
	return cycle, nil
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the cached schedule, refreshing it when it is stale.",
	RunE: func(cmd *cobra.Command, args []string) error {
		override, err := parseCycleFlag(showCycle)
		if err != nil {
			return err
		}
		day, err := parseDay(showDay)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		snapshot, refresh, err := current.policy.Load(ctx)
		if errors.Is(err, cache.ErrNoSession) {
			return errNotSignedIn
		}
		if err != nil {
			return err
		}
		theme, err := current.policy.Theme(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderSchedule(out, current, theme, snapshot, current.policy.SelectedCycle(override), day)

		if !refresh.Triggered() {
			return nil
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "расписание устарело, обновляю...")
		updated, ok := refresh.Wait(ctx)
		if !ok {
			return nil
		}
		// week and cycle are derived again, the refresh may have crossed
		// into a new week.
		renderSchedule(out, current, theme, updated, current.policy.SelectedCycle(override), day)
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showCycle, "cycle", "", "Show the A (numerator) or B (denominator) week instead of the current one.")
	showCmd.Flags().StringVar(&showDay, "day", "", "Only show one weekday, 1-6 or Пн..Сб.")
	rootCmd.AddCommand(showCmd)
}
