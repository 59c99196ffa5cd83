package commands

import (
	"github.com/spf13/cobra"

	"github.com/robotalks/lorabadge/pkg/userdata"
)

func newDumpCmd(dir func() string) *cobra.Command {
	return &cobra.Command{
		Use:     "dump",
		Aliases: []string{"ls"},
		Short:   "Print markers and messages with their file offsets",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadExisting(dir())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cyan.Fprintf(out, "%s\n", dir())
			printState(out, store.Name, userdata.StateValid)
			store.Dump(out)
			return nil
		},
	}
}
