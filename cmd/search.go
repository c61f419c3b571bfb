package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zentala/bookmark-index/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed bookmarks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("limit")
		lexical, _ := cmd.Flags().GetBool("lexical")
		query := strings.Join(args, " ")

		ctx := cmd.Context()
		indexService, cfg, err := openIndexService(ctx, nil)
		if err != nil {
			return err
		}
		defer indexService.Close()

		if k <= 0 {
			k = cfg.Search.DefaultK
		}

		var results []types.RankedResult
		if lexical {
			results, err = indexService.LexicalSearch(ctx, query, k)
		} else {
			results, err = indexService.SimilaritySearch(ctx, query, k)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintln(out, "No results")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(out, "%2d. %s\n    %s\n", i+1, r.Metadata.Title, r.Metadata.URL)
			if r.Metadata.FolderPath != "" {
				fmt.Fprintf(out, "    in %s\n", r.Metadata.FolderPath)
			}
			if lexical {
				fmt.Fprintf(out, "    score %.3f\n", r.CombinedScore)
				continue
			}
			fmt.Fprintf(out, "    score %.3f (vector %.3f, keyword %.3f)\n", r.CombinedScore, r.VectorScore, r.KeywordScore)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntP("limit", "k", 0, "number of results (default from search.default_k)")
	searchCmd.Flags().Bool("lexical", false, "rank by full-text relevance only")
}
