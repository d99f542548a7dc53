// Command veritas is the host side of the VeriTAS replay system: it talks
// to a connected device over the wire protocol in internal/protocol and
// drives a replay session via internal/hostdriver. Only the replay
// subcommand exercises that core; encode and dump are external-collaborator
// stubs kept here so the command surface matches spec §6 exactly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "veritas",
		Short:         "Stream tool-assisted-speedrun movies to a VeriTAS replay device",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEncodeCmd())
	root.AddCommand(newDumpCmd())
	root.AddCommand(newReplayCmd())
	return root
}
