package commands

import (
	"fmt"
	"univer-schedule/internal/cache"

	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark]",
	Short:     "Show or set the table theme.",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(cache.ThemeLight), string(cache.ThemeDark)},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 0 {
			theme, err := current.policy.Theme(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme)
			return nil
		}
		theme, ok := cache.ParseTheme(args[0])
		if !ok {
			return fmt.Errorf("unknown theme %q, use light or dark", args[0])
		}
		return current.policy.SetTheme(ctx, theme)
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
