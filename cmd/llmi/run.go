package main

import (
	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/skills"
)

var runCmd = &cobra.Command{
	Use:   "run <skill> [args...]",
	Short: "Run an installed skill",
	Long: `Run an installed skill with the given arguments. This is the same as
"llmi <skill> [args...]" and is useful when a skill name is hard to type.

Arguments fill the skill's parameters in declaration order. A parameter can
also be set by name with --name=value; "--" ends named arguments.

Examples:
  llmi run translate "bonjour" --target_lang=en
  llmi run summarize ./notes.md`,
	Args:              cobra.MinimumNArgs(1),
	ValidArgsFunction: completeSkillNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSkill(cmd, args[0], args[1:])
	},
}

func init() {
	runCmd.Flags().SetInterspersed(false)
	rootCmd.AddCommand(runCmd)
}

// runSkill resolves name, binds tokens to its parameters and executes its
// handler. The returned error carries the failure kind used for the exit code.
func runSkill(cmd *cobra.Command, name string, tokens []string) error {
	ctx := cmd.Context()

	registry, err := openRegistry(ctx)
	if err != nil {
		return err
	}
	manifest, dir, err := registry.Resolve(ctx, name)
	if err != nil {
		return err
	}

	reader, err := newAttachmentReader()
	if err != nil {
		return err
	}

	args, err := skills.NewBinder(reader).Bind(manifest, tokens)
	if err != nil {
		return err
	}

	store := openHistory(ctx)
	defer closeHistory(ctx, store)

	host := bridge.NewHost(reader, newLLMClient())
	outcome := newEngine(cmd, store).Execute(ctx, manifest, dir, args, host)

	logger.G(ctx).WithField("run_id", outcome.RunID).WithField("success", outcome.Success).Debug("skill finished")
	if !outcome.Success {
		return outcome.Err
	}
	return nil
}
