package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <bookmark-id>...",
	Short: "Remove bookmarks from the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		indexService, _, err := openIndexService(ctx, nil)
		if err != nil {
			return err
		}
		defer indexService.Close()

		removed, err := indexService.DeleteBookmarks(ctx, args...)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d bookmark(s)\n", removed, len(args))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
