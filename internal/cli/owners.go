package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	ownersCmd := &cobra.Command{
		Use:   "owners",
		Short: "Owner management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List owners with live memories",
		Run:   runOwnersList,
	}

	ownersCmd.AddCommand(listCmd)
	RootCmd.AddCommand(ownersCmd)
}

func runOwnersList(cmd *cobra.Command, args []string) {
	cfg, _, s := setup()
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), cfg.DBPath)
	if err != nil {
		exitErr("list owners", err)
	}
	printJSON(stats.Owners)
}
