// Package commands implements badgectl, an offline tool for the
// USER_FLASH_DATA image of a badge.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/robotalks/lorabadge/pkg/flash"
	"github.com/robotalks/lorabadge/pkg/userdata"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// NewRootCmd creates the command tree.
func NewRootCmd() *cobra.Command {
	dataDir := os.Getenv("BADGE_DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	root := &cobra.Command{
		Use:   "badgectl",
		Short: "Inspect and edit the badge user data image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&dataDir, "dir", "d", dataDir, "Directory holding "+userdata.FileName)
	dir := func() string { return dataDir }
	root.AddCommand(newDumpCmd(dir), newSetCmd(dir), newInitCmd(dir))
	return root
}

// Execute runs badgectl with os.Args.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		red.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func openStore(dir string) (*userdata.Store, error) {
	fs, err := flash.NewDirFS(dir)
	if err != nil {
		return nil, err
	}
	return userdata.NewStore(fs), nil
}

// loadExisting loads the image without creating it.
func loadExisting(dir string) (*userdata.Store, error) {
	store, err := openStore(dir)
	if err != nil {
		return nil, err
	}
	r, err := store.FS.Open(store.Name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found in %s, run init first", store.Name, dir)
		}
		return nil, err
	}
	r.Close()
	state, err := store.Load()
	if err != nil {
		return nil, err
	}
	if state != userdata.StateValid {
		return nil, fmt.Errorf("%s is %s", store.Name, state)
	}
	return store, nil
}

func printState(w io.Writer, name string, state userdata.State) {
	c := green
	if state != userdata.StateValid {
		c = yellow
	}
	fmt.Fprintf(w, "%s: ", name)
	c.Fprintln(w, state)
}
