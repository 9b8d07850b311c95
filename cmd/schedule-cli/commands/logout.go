package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the credentials, the cached schedule and the settings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := current.policy.Logout(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "signed out")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
