package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInitCmd(dir func() string) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the image with the default messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(dir())
			if err != nil {
				return err
			}
			r, err := store.FS.Open(store.Name)
			if err == nil {
				r.Close()
				if !force {
					return fmt.Errorf("%s exists, use --force to overwrite", store.Name)
				}
				if err = store.FS.Remove(store.Name); err != nil {
					return err
				}
			} else if !os.IsNotExist(err) {
				return err
			}
			state, err := store.Load()
			if err != nil {
				return err
			}
			printState(cmd.OutOrStdout(), store.Name, state)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing image")
	return cmd
}
