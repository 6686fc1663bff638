package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export memories as JSON",
		Long:  "Export live memories as a JSON array. Filter by owner with -o.",
		Run:   runExport,
	}

	cmd.Flags().StringP("owner", "o", "", "Filter by owner")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	owner, _ := cmd.Flags().GetString("owner")

	_, _, s := setup()
	defer s.Close()

	memories, err := s.ExportAll(cmd.Context(), owner)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(memories)
}
