package cli

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "record [owner]",
		Short: "Record a conversational turn",
		Long:  "Classify a user/assistant exchange and store it if it is worth remembering. The assistant text can be piped via stdin.",
		Args:  cobra.ExactArgs(1),
		Run:   runRecord,
	}

	cmd.Flags().StringP("user", "u", "", "User message (required)")
	cmd.Flags().StringP("assistant", "a", "", "Assistant reply")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runRecord(cmd *cobra.Command, args []string) {
	owner := args[0]
	userText, _ := cmd.Flags().GetString("user")
	assistantText, _ := cmd.Flags().GetString("assistant")

	if assistantText == "" {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			assistantText = strings.TrimSpace(string(b))
		}
	}

	cfg, logger, s := setup()
	defer s.Close()

	mem, err := newManager(cfg, s, logger).RecordTurn(cmd.Context(), owner, userText, assistantText)
	if err != nil {
		exitErr("record", err)
	}
	if mem == nil {
		printJSON(map[string]any{"stored": false})
		return
	}
	printJSON(map[string]any{"stored": true, "memory": mem})
}
