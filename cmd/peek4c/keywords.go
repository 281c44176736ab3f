package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Manage blocked keywords",
	Long: `Manage the keywords that hide posts from every feed. Matching is a
case insensitive substring match on subject, comment and file name.

Examples:
  peek4c keywords list
  peek4c keywords add spoiler
  peek4c keywords remove spoiler
  peek4c keywords reset`,
}

func init() {
	keywordsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Print the blocked keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(AppConfig, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			kws, err := a.store.ListBlockedKeywords()
			if err != nil {
				return err
			}
			for _, kw := range kws {
				fmt.Fprintln(cmd.OutOrStdout(), kw)
			}
			return nil
		},
	})
	keywordsCmd.AddCommand(&cobra.Command{
		Use:   "add <keyword>...",
		Short: "Block keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(AppConfig, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, kw := range args {
				if err := a.store.AddBlockedKeyword(kw); err != nil {
					return err
				}
			}
			return nil
		},
	})
	keywordsCmd.AddCommand(&cobra.Command{
		Use:   "remove <keyword>...",
		Short: "Unblock keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(AppConfig, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, kw := range args {
				if err := a.store.RemoveBlockedKeyword(kw); err != nil {
					return err
				}
			}
			return nil
		},
	})
	keywordsCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Restore the default keyword list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(AppConfig, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.store.ResetBlockedKeywords()
		},
	})
}
