package commands

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newSetCmd(dir func() string) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "set SLOT TEXT",
		Short: "Replace the message in SLOT (1-4)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slot, err := strconv.Atoi(args[0])
			if err != nil {
				return err
			}
			store, err := loadExisting(dir())
			if err != nil {
				return err
			}
			if verbose {
				store.DumpTo = cmd.OutOrStdout()
			}
			if err = store.SetMessage(slot, args[1]); err != nil {
				return err
			}
			if err = store.Save(); err != nil {
				return err
			}
			green.Fprintf(cmd.OutOrStdout(), "Message %d saved\n", slot)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the record after saving")
	return cmd
}
