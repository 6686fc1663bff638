package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tv7/C-Claw/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [owner] [query]",
		Short: "Search an owner's memories by keyword",
		Long:  "Full-text search with prefix matching, best match first. Searching does not reinforce.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runSearch,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	owner := args[0]
	query := strings.Join(args[1:], " ")

	cfg, _, s := setup()
	defer s.Close()

	keywords := memory.ExtractKeywords(query, cfg.Memory.MaxKeywords, cfg.Memory.MinKeywordLength)
	if len(keywords) == 0 {
		printJSON([]any{})
		return
	}

	results, err := s.SearchByKeywords(cmd.Context(), owner, keywords, limit)
	if err != nil {
		exitErr("search", err)
	}
	printJSON(results)
}
