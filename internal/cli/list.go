package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list [owner]",
		Short: "List an owner's memories",
		Long:  "List memories by salience, then recency. Listing does not reinforce.",
		Args:  cobra.ExactArgs(1),
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "l", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	cfg, logger, s := setup()
	defer s.Close()

	memories, err := newManager(cfg, s, logger).ListMemories(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("list", err)
	}
	printJSON(memories)
}
