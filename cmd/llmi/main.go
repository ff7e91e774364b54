package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/llm-inline/llmi/pkg/config"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/presenter"
)

// cfg is loaded once flags are parsed, before any command runs
var cfg config.Config

// setupErr holds a config file error until logging is configured
var setupErr error

var rootCmd = &cobra.Command{
	Use:   "llmi <skill> [args...]",
	Short: "Run LLM-backed skills from the command line",
	Long: `llmi installs and runs skills: small command line tools described by a
skill.json manifest whose handlers can read files and call an LLM through
the llmi runtime bridge.

Examples:
  llmi install https://example.com/skills/translate/
  llmi translate "bonjour" --target_lang=en
  llmi ask "how do I list open ports"`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	ValidArgsFunction: completeSkillNames,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runSkill(cmd, args[0], args[1:])
	},
}

func init() {
	setupErr = config.Setup()

	flags := rootCmd.PersistentFlags()
	flags.String("profile", "", "Configuration profile to use")
	flags.String("model", "", "LLM model to use (overrides config)")
	flags.String("log-level", "", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "", "Log format (text, json, fmt)")
	flags.BoolP("quiet", "q", false, "Suppress informational output")

	viper.BindPFlag("profile", flags.Lookup("profile"))
	viper.BindPFlag("llm.model", flags.Lookup("model"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))

	// skill arguments such as --target_lang=fr belong to the skill
	rootCmd.Flags().SetInterspersed(false)
}

func setup(cmd *cobra.Command, args []string) error {
	if setupErr != nil {
		return setupErr
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
		presenter.SetQuiet(true)
	}

	shutdown, err := initTracing(cmd.Context())
	if err != nil {
		logger.G(cmd.Context()).WithError(err).Warn("failed to initialize tracing")
		return nil
	}
	tracingShutdown = shutdown
	startCommandSpan(cmd, args)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCmd.ExecuteContext(ctx)
	endCommandSpan(err)

	if tracingShutdown != nil {
		if shutdownErr := tracingShutdown(context.Background()); shutdownErr != nil {
			logger.G(ctx).WithError(shutdownErr).Warn("failed to shut down tracing")
		}
	}
	cancel()

	if err != nil {
		presenter.Error(err, "")
		os.Exit(exitCode(err))
	}
}
