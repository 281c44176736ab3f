package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh every stale followed thread once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(AppConfig, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.feed.RefreshFollowedThreads(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "refreshed %d followed threads\n", n)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all local data and restore the default keywords",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(AppConfig, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.ResetAllData(); err != nil {
			return err
		}
		if err := a.media.ClearCache(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "all local data removed")
		return nil
	},
}
