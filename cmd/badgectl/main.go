package main

import (
	"os"

	"github.com/robotalks/lorabadge/cmd/badgectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
