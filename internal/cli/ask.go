package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer one query through the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		query, err := cmd.Flags().GetString("query")
		if err != nil {
			return err
		}
		if query == "" {
			return fmt.Errorf("a query is required (use --query)")
		}
		topK, err := cmd.Flags().GetInt("top-k")
		if err != nil {
			return err
		}

		answer := a.gateway().Answer(cmd.Context(), query, topK)
		fmt.Fprintln(cmd.OutOrStdout(), answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringP("query", "q", "", "Question to answer")
	askCmd.Flags().IntP("top-k", "k", 5, "Entry-node breadth for graph retrieval")
}
