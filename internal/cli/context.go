package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tv7/C-Claw/internal/memory"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [owner] [message]",
		Short: "Build the memory context for a message",
		Long:  "Retrieve keyword and recent memories for a message, as the relay does before calling the agent. Retrieved memories are reinforced.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runContext,
	}

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	owner := args[0]
	message := strings.Join(args[1:], " ")

	cfg, logger, s := setup()
	defer s.Close()

	mgr := newManager(cfg, s, logger)
	memories, err := mgr.Retrieve(cmd.Context(), owner, message)
	if err != nil {
		exitErr("context", err)
	}

	printJSON(map[string]any{
		"owner":    owner,
		"context":  memory.FormatContext(memories),
		"memories": memories,
	})
}
