package cli

import (
	"github.com/spf13/cobra"

	"github.com/tv7/C-Claw/internal/sweeper"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one decay sweep now",
		Long:  "Decay memories not accessed within the grace window and prune those below the salience floor.",
		Run:   runSweep,
	}

	RootCmd.AddCommand(cmd)
}

func runSweep(cmd *cobra.Command, args []string) {
	cfg, logger, s := setup()
	defer s.Close()

	result, err := sweeper.New(s, cfg.SweepDuration(), logger).RunOnce(cmd.Context())
	if err != nil {
		exitErr("sweep", err)
	}
	printJSON(result)
}
