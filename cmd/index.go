package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zentala/bookmark-index/service"
	"github.com/zentala/bookmark-index/utils"
)

var indexCmd = &cobra.Command{
	Use:   "index <bookmarks.json>",
	Short: "Index a bookmark tree",
	Long: `Reads a bookmark tree (a JSON array of nodes, a single root node or a
Chrome "Bookmarks" profile file), embeds the bookmarks that are new or have
changed and stores the result.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		tree, err := utils.LoadBookmarkTree(args[0])
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		indexService, _, err := openIndexService(ctx, nil)
		if err != nil {
			return err
		}
		defer indexService.Close()

		result, err := indexService.AddBookmarks(ctx, tree, service.ConfirmWith(cliConfirmer(yes)))
		if err != nil {
			return err
		}

		s := result.Summary
		if s.Declined {
			fmt.Fprintf(cmd.OutOrStdout(), "Aborted: %d new and %d changed bookmark(s) left unindexed\n", s.New, s.Stale)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "New: %d, changed: %d, unchanged: %d, embedded: %d, total: %d\n",
			s.New, s.Stale, s.Unchanged, s.Embedded, s.Total)
		return nil
	},
}

func cliConfirmer(yes bool) service.Confirmer {
	if yes {
		return service.AlwaysConfirm
	}
	return &service.PromptConfirmer{In: os.Stdin, Out: os.Stderr}
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolP("yes", "y", false, "embed without asking for confirmation")
}
