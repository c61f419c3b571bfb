package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zentala/bookmark-index/service"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Discard all embeddings and embed every stored bookmark again",
	Long: `Discards every stored embedding and embeds all known bookmarks again,
for example after switching to another embedding model.

The store is emptied before new embeddings are generated. If the provider
fails part way, bookmarks are lost from the index until the next "index"
run. Back up the store first if that matters.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		yes, _ := cmd.Flags().GetBool("yes")

		ctx := cmd.Context()
		indexService, _, err := openIndexService(ctx, nil)
		if err != nil {
			return err
		}
		defer indexService.Close()

		result, err := indexService.RegenerateEmbeddings(ctx, service.ConfirmWith(cliConfirmer(yes)))
		if err != nil {
			return err
		}
		if result.Summary.Declined {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted: store left unchanged")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Regenerated %d embedding(s)\n", result.Summary.Embedded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regenerateCmd)
	regenerateCmd.Flags().BoolP("yes", "y", false, "regenerate without asking for confirmation")
}
