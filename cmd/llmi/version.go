package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/llm-inline/llmi/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of llmi in JSON format.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := version.Get(bridge.APIVersion).JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
