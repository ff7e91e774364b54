package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/presenter"
	"github.com/llm-inline/llmi/pkg/skills"
)

var listCmd = &cobra.Command{
	Use:     "list [pattern]",
	Aliases: []string{"ls"},
	Short:   "List installed skills",
	Long: `List every installed skill with its description. An optional glob
pattern filters skill names. Skills with unreadable manifests are skipped
with a warning.

Examples:
  llmi list
  llmi list 'trans*'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var pattern glob.Glob
		if len(args) == 1 {
			g, err := glob.Compile(args[0])
			if err != nil {
				return newUsageError("invalid pattern %q: %v", args[0], err)
			}
			pattern = g
		}

		registry, err := openRegistry(ctx)
		if err != nil {
			presenter.Warning("cannot read skills: " + err.Error())
			return nil
		}

		var matched []*skills.Manifest
		for name, m := range registry.List(ctx) {
			if pattern == nil || pattern.Match(name) {
				matched = append(matched, m)
			}
		}

		if len(matched) == 0 {
			presenter.Info("No skills installed. Use 'llmi install <source>' to add one.")
			return nil
		}
		return writeSkillTable(cmd.OutOrStdout(), matched)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func writeSkillTable(w io.Writer, manifests []*skills.Manifest) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tVERSION\tDESCRIPTION")
	for _, m := range manifests {
		version := m.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, version, m.Description)
	}
	return tw.Flush()
}
