package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "vaultd",
		Short: "Encrypted-record vault with oracle-backed reconstruction",
		Long: `vaultd stores opaque encrypted records and brokers their reconstruction
through an asynchronous decryption oracle. Owners register payloads, request
reconstruction, and read back results once a verified oracle callback lands.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the vaultd version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vaultd %s\n", version)
		},
	}
}
