package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Print the current academic week and its cycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := current.clock.Now()
		window := current.calendar.WeekWindow(now)
		info := current.calendar.CycleInfo(now)
		fmt.Fprintf(
			cmd.OutOrStdout(),
			"%s - %s\nнеделя %d, %s (%s)\n",
			window.MondayString(),
			window.SundayString(),
			info.DisplayWeek(),
			info.Cycle.Label(),
			info.Cycle,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(weekCmd)
}
