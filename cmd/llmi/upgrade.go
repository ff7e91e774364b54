package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/history"
	"github.com/llm-inline/llmi/pkg/presenter"
	"github.com/llm-inline/llmi/pkg/skills"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <skill>...",
	Short: "Reinstall skills from the source they were installed from",
	Long: `Fetch each skill again from the URL or path recorded when it was
installed and replace the installed copy. Requires install history.`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSkillNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store := openHistory(ctx)
		if store == nil {
			return errors.New("install history is disabled or unavailable; reinstall with 'llmi install <source>'")
		}
		defer closeHistory(ctx, store)

		installer, err := newInstaller(store)
		if err != nil {
			return err
		}

		for _, name := range args {
			record, err := store.InstallFor(ctx, name)
			if err != nil {
				if errors.Is(err, history.ErrNoInstallRecord) {
					return &skills.NotFoundError{Name: name}
				}
				return err
			}

			result, err := installer.Install(ctx, record.Source)
			if err != nil {
				return errors.Wrapf(err, "failed to upgrade %s", name)
			}
			if result.Name != name {
				presenter.Warning("source of " + name + " now provides skill " + result.Name)
			}
			if result.Version != "" && result.Version == record.Version {
				presenter.Info(name + " is already at version " + result.Version + "; reinstalled")
				continue
			}
			presenter.Success(installMessage(result))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
}
