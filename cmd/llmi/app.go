package main

import (
	"context"
	"maps"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/attachment"
	"github.com/llm-inline/llmi/pkg/config"
	"github.com/llm-inline/llmi/pkg/engine"
	"github.com/llm-inline/llmi/pkg/history"
	"github.com/llm-inline/llmi/pkg/llm"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/presenter"
	"github.com/llm-inline/llmi/pkg/skills"
	"github.com/llm-inline/llmi/pkg/utils"
)

func openRegistry(ctx context.Context) (*skills.Registry, error) {
	return skills.Open(ctx,
		skills.WithRoot(cfg.Skills.Root),
		skills.WithWarningHandler(func(dir string, err error) {
			presenter.Warning("skipping " + dir + ": " + err.Error())
		}),
	)
}

// openHistory returns nil when history is disabled or unavailable
func openHistory(ctx context.Context) *history.Store {
	if !cfg.History.Enabled {
		return nil
	}

	store, err := history.Open(ctx, cfg.History.Path)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("history is unavailable")
		return nil
	}
	return store
}

func closeHistory(ctx context.Context, store *history.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		logger.G(ctx).WithError(err).Debug("failed to close history")
	}
}

func newInstaller(store *history.Store) (*skills.Installer, error) {
	opts := []skills.InstallerOption{
		skills.WithInstallRoot(cfg.Skills.Root),
		skills.WithFetchTimeout(cfg.Install.Timeout),
		skills.WithReservedNames(reservedNames()...),
	}
	if cfg.Install.MaxSize > 0 {
		opts = append(opts, skills.WithMaxSize(cfg.Install.MaxSize))
	}
	if store != nil {
		opts = append(opts, skills.WithRecorder(store))
	}
	return skills.NewInstaller(opts...)
}

func newAttachmentReader() (*attachment.Reader, error) {
	var opts []attachment.Option
	if cfg.Attachments.MaxSize > 0 {
		opts = append(opts, attachment.WithMaxSize(cfg.Attachments.MaxSize))
	}
	return attachment.NewReader(opts...)
}

func newLLMClient() *llm.Client {
	return llm.NewClient(cfg.LLM)
}

func newEngine(cmd *cobra.Command, store *history.Store) *engine.Engine {
	interpreters := engine.DefaultInterpreters()
	maps.Copy(interpreters, cfg.Skills.Interpreters)

	opts := []engine.Option{
		engine.WithStdout(cmd.OutOrStdout()),
		engine.WithStderr(cmd.ErrOrStderr()),
		engine.WithEnv(handlerEnv()),
		engine.WithInterpreters(interpreters),
	}
	if store != nil {
		opts = append(opts, engine.WithRecorder(store))
	}
	return engine.New(opts...)
}

// handlerEnv is the host environment without LLM credentials
func handlerEnv() []string {
	return utils.FilterEnv(os.Environ(), config.CredentialEnvVars()...)
}

// reservedNames are the built-in command names and aliases, which skills
// may not shadow
func reservedNames() []string {
	names := []string{"help", "completion"}
	for _, cmd := range rootCmd.Commands() {
		names = append(names, cmd.Name())
		names = append(names, cmd.Aliases...)
	}
	return names
}

func completeSkillNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveDefault
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	registry, err := openRegistry(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var names []string
	for name, m := range registry.List(ctx) {
		if strings.HasPrefix(name, toComplete) {
			names = append(names, name+"\t"+m.Description)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
