package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		indexService, _, err := openIndexService(ctx, nil)
		if err != nil {
			return err
		}
		defer indexService.Close()

		stats, err := indexService.Stats(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Provider:          %s\n", stats.Provider)
		fmt.Fprintf(out, "Documents:         %d\n", stats.Count)
		fmt.Fprintf(out, "Missing embedding: %d\n", stats.MissingEmbedding)
		if stats.LastUpdated.IsZero() {
			fmt.Fprintln(out, "Last updated:      never")
		} else {
			fmt.Fprintf(out, "Last updated:      %s\n", stats.LastUpdated.Local().Format(time.RFC1123))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
