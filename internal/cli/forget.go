package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "forget [owner]",
		Short: "Delete every memory of an owner",
		Args:  cobra.ExactArgs(1),
		Run:   runForget,
	}

	RootCmd.AddCommand(cmd)
}

func runForget(cmd *cobra.Command, args []string) {
	owner := args[0]

	cfg, logger, s := setup()
	defer s.Close()

	n, err := newManager(cfg, s, logger).Forget(cmd.Context(), owner)
	if err != nil {
		exitErr("forget", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"owner":%q,"deleted":%d}`+"\n", owner, n)
}
