package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one memory by id",
		Args:  cobra.ExactArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitErr("get", err)
	}

	_, _, s := setup()
	defer s.Close()

	mem, err := s.Get(cmd.Context(), id)
	if err != nil {
		exitErr("get", err)
	}
	printJSON(mem)
}
