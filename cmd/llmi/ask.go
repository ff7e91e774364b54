package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/llm-inline/llmi/pkg/ask"
	"github.com/llm-inline/llmi/pkg/attachment"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/presenter"
)

// AskConfig holds the options of the ask command
type AskConfig struct {
	Files     []string
	NoCache   bool
	ShowUsage bool
}

// NewAskConfig returns the default ask options
func NewAskConfig() *AskConfig {
	return &AskConfig{}
}

var askCmd = &cobra.Command{
	Use:   "ask <question>...",
	Short: "Ask the LLM a question about your shell or files",
	Long: `Ask a question. The answer is printed as is; when it contains a suggested
command, the command is also saved so "llmi last" can print it for a shell
key binding.

Examples:
  llmi ask "find files larger than 100MB"
  llmi ask -f main.go "what does this program do"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getAskConfigFromFlags(cmd)
		ctx := cmd.Context()

		reader, err := newAttachmentReader()
		if err != nil {
			return err
		}
		files := make([]*attachment.File, 0, len(config.Files))
		for _, path := range config.Files {
			file, err := reader.Read(path)
			if err != nil {
				return err
			}
			files = append(files, file)
		}

		opts := []ask.Option{ask.WithModel(cfg.LLM.Model)}
		if !config.NoCache {
			if path, err := ask.DefaultCachePath(); err == nil {
				opts = append(opts, ask.WithCache(ask.NewCache(path)))
			} else {
				logger.G(ctx).WithError(err).Warn("command cache is unavailable")
			}
		}

		answer, err := ask.New(newLLMClient(), opts...).Ask(ctx, strings.Join(args, " "), files)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(answer.Text))
		if config.ShowUsage {
			presenter.Usage(answer.Usage)
		}
		return nil
	},
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Print the last command suggested by ask",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := ask.DefaultCachePath()
		if err != nil {
			return err
		}
		command, err := ask.NewCache(path).Read()
		if err != nil {
			return err
		}
		if command != "" {
			fmt.Fprintln(cmd.OutOrStdout(), command)
		}
		return nil
	},
}

func init() {
	defaults := NewAskConfig()
	askCmd.Flags().StringArrayP("file", "f", defaults.Files, "File to include with the question (repeatable)")
	askCmd.Flags().Bool("no-cache", defaults.NoCache, "Do not save the suggested command for 'llmi last'")
	askCmd.Flags().Bool("usage", defaults.ShowUsage, "Print token usage after the answer")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(lastCmd)
}

func getAskConfigFromFlags(cmd *cobra.Command) *AskConfig {
	config := NewAskConfig()
	if files, err := cmd.Flags().GetStringArray("file"); err == nil {
		config.Files = files
	}
	if noCache, err := cmd.Flags().GetBool("no-cache"); err == nil {
		config.NoCache = noCache
	}
	if usage, err := cmd.Flags().GetBool("usage"); err == nil {
		config.ShowUsage = usage
	}
	return config
}
