package main

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/presenter"
	"github.com/llm-inline/llmi/pkg/skills"
)

var installCmd = &cobra.Command{
	Use:   "install <source>...",
	Short: "Install skills from URLs or local paths",
	Long: `Install one or more skills. A source is a URL or a local path to a
skill.json manifest, or a directory containing one. A declared handler is
fetched relative to the manifest. Installing a skill that is already
installed replaces it.

Examples:
  llmi install https://example.com/skills/translate/
  llmi install https://example.com/skills/translate/skill.json
  llmi install ./my-skill`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store := openHistory(ctx)
		defer closeHistory(ctx, store)

		installer, err := newInstaller(store)
		if err != nil {
			return err
		}

		var result *multierror.Error
		for _, source := range args {
			installed, err := installer.Install(ctx, source)
			if err != nil {
				if len(args) == 1 {
					return err
				}
				presenter.Error(err, "failed to install "+source)
				result = multierror.Append(result, err)
				continue
			}
			presenter.Success(installMessage(installed))
		}

		if result != nil {
			return errors.Wrapf(result.Errors[0], "%d of %d installs failed, first error", len(result.Errors), len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func installMessage(r *skills.InstallResult) string {
	verb := "Installed"
	if r.Replaced {
		verb = "Reinstalled"
	}
	name := r.Name
	if r.Version != "" {
		name = fmt.Sprintf("%s %s", r.Name, r.Version)
	}
	return fmt.Sprintf("%s %s to %s", verb, name, r.Directory)
}
