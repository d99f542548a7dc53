package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newEncodeCmd and newDumpCmd exist so the CLI's three-subcommand surface
// (spec §6) is complete; the movie-format tooling they'd front — TASD/BK2/
// FM2/GMV encoding, ROM/ movie inspection — is an explicit external
// collaborator (spec §1), not part of this core.
func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Encode a movie into the device's native input format (external collaborator, not implemented here)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("encode: movie-format encoding is out of scope for this core; supply a hostdriver.Movie implementation instead")
		},
	}
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Dump a movie's contents for inspection (external collaborator, not implemented here)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("dump: movie-format parsing is out of scope for this core; supply a hostdriver.Movie implementation instead")
		},
	}
}
