package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"tunup/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var short bool

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			if short {
				fmt.Println(version.Version())
				return
			}
			fmt.Printf("tunup %s\n", version.Version())
			fmt.Printf("Commit: %s\n", version.Commit())
			fmt.Printf("Built: %s\n", version.BuildDate())
		},
	}

	versionCmd.Flags().BoolVarP(&short, "short", "s", false, "Show only version number")
	return versionCmd
}
