// Package ask implements the ask command: it frames a question with the
// user's shell context, sends it to the language model and extracts a
// ready-to-run command from a fenced command block in the answer.
package ask

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/llm-inline/llmi/pkg/attachment"
	"github.com/llm-inline/llmi/pkg/logger"
	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
	"github.com/pkg/errors"
)

// Generation settings for ask
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.3
)

var commandBlockPattern = regexp.MustCompile("(?s)```command[ \t]*\r?\n(.*?)\r?\n[ \t]*```")

// ShellInfo is the environment the suggested command will run in
type ShellInfo struct {
	Shell      string
	WorkingDir string
}

// CurrentShell describes the invoking shell from $SHELL and the working directory
func CurrentShell() ShellInfo {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return ShellInfo{Shell: shell, WorkingDir: wd}
}

// Completer is the chat-completion collaborator
type Completer interface {
	Complete(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error)
}

// Answer is the model's reply and the command extracted from it, if any
type Answer struct {
	Text    string
	Command string
	Model   string
	Usage   llmtypes.Usage
}

// HasCommand reports whether the answer carried a command block
func (a *Answer) HasCommand() bool {
	return a.Command != ""
}

// Asker sends questions to the model and caches suggested commands
type Asker struct {
	completer Completer
	cache     *Cache
	shell     ShellInfo
	model     string
}

// Option configures an Asker
type Option func(*Asker)

// WithCache stores every extracted command in cache
func WithCache(cache *Cache) Option {
	return func(a *Asker) {
		a.cache = cache
	}
}

// WithShell overrides the detected shell context
func WithShell(shell ShellInfo) Option {
	return func(a *Asker) {
		a.shell = shell
	}
}

// WithModel overrides the configured model
func WithModel(model string) Option {
	return func(a *Asker) {
		a.model = model
	}
}

// New creates an Asker
func New(completer Completer, opts ...Option) *Asker {
	a := &Asker{completer: completer, shell: CurrentShell()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask sends question, with files inlined, and returns the answer
func (a *Asker) Ask(ctx context.Context, question string, files []*attachment.File) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question cannot be empty")
	}

	system, user := BuildMessages(question, a.shell, files)
	temperature := DefaultTemperature
	resp, err := a.completer.Complete(ctx, llmtypes.Request{
		Prompt:       user,
		SystemPrompt: system,
		Model:        a.model,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  &temperature,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get an answer")
	}

	answer := &Answer{Text: resp.Text, Model: resp.Model, Usage: resp.Usage}
	if command, ok := ExtractCommand(resp.Text); ok {
		answer.Command = command
		if a.cache != nil {
			if err := a.cache.Write(command); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to cache suggested command")
			}
		}
	}
	return answer, nil
}

// BuildMessages returns the system prompt and user message for question
func BuildMessages(question string, shell ShellInfo, files []*attachment.File) (string, string) {
	system := fmt.Sprintf(`You are a command-line assistant that helps users with shell commands.

Current environment:
- Shell: %s
- Working directory: %s

If the question is about which bash/zsh command to type, you must return a command that can be used directly, in this format:
`+"```command"+`
the command
`+"```"+`

If the question is not about a command, answer normally.

Requirements:
1. For questions that need a command, always wrap the command in a `+"```command"+` code block as shown above.

Example:
User: "How do I list every file in the current directory with its extension and size?"

Your answer should be:
`+"```command"+`
ls -l
`+"```"+`
`, shell.Shell, shell.WorkingDir)

	if len(files) == 0 {
		return system, question
	}

	var b strings.Builder
	b.WriteString(question)
	for _, f := range files {
		b.WriteString("\n\n")
		if f.Binary {
			fmt.Fprintf(&b, "Attached file %s (%s, %d bytes, base64):\n%s", f.Name, f.MIMEType, f.Size, f.Content)
			continue
		}
		fmt.Fprintf(&b, "Attached file %s:\n```\n%s\n```", f.Name, strings.TrimRight(f.Content, "\n"))
	}
	return system, b.String()
}

// ExtractCommand returns the contents of the first fenced command block
func ExtractCommand(text string) (string, bool) {
	match := commandBlockPattern.FindStringSubmatch(text)
	if match == nil {
		return "", false
	}
	command := strings.TrimSpace(match[1])
	return command, command != ""
}
