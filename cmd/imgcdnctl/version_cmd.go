package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// version is set at link time with -X main.version=...
var version = "unversioned"

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the imgcdnctl build version and platform",
		Args:  noArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "imgcdnctl %s %s/%s\n", version, runtime.GOOS, runtime.GOARCH)
		},
	}
}
