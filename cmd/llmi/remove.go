package main

import (
	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/presenter"
)

var removeCmd = &cobra.Command{
	Use:               "remove <skill>...",
	Aliases:           []string{"rm", "uninstall"},
	Short:             "Remove installed skills",
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSkillNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store := openHistory(ctx)
		defer closeHistory(ctx, store)

		installer, err := newInstaller(store)
		if err != nil {
			return err
		}

		for _, name := range args {
			if err := installer.Remove(ctx, name); err != nil {
				return err
			}
			if store != nil {
				if err := store.ForgetInstall(ctx, name); err != nil {
					logger.G(ctx).WithError(err).Warn("failed to update install history")
				}
			}
			presenter.Success("Removed " + name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
