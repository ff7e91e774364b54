// Package presenter writes user-facing CLI messages: errors, successes,
// warnings and section headers, with color and quiet mode control.
package presenter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
)

// ColorEnv overrides color detection: always, never or auto
const ColorEnv = "LLMI_COLOR"

// Presenter defines the interface for consistent CLI output
type Presenter interface {
	Error(err error, context string)
	Success(message string)
	Warning(message string)
	Info(message string)
	Section(title string)
	Usage(usage llmtypes.Usage)
	Separator()
	SetQuiet(quiet bool)
	IsQuiet() bool
}

// ColorMode represents different color output modes
type ColorMode int

const (
	// ColorAuto lets fatih/color detect terminal support
	ColorAuto ColorMode = iota
	// ColorAlways forces colored output
	ColorAlways
	// ColorNever disables colored output
	ColorNever
)

// TerminalPresenter implements Presenter for terminal output. Errors go to
// errorOutput, everything else to output.
type TerminalPresenter struct {
	output      io.Writer
	errorOutput io.Writer
	quiet       bool
}

// New creates a presenter on stdout and stderr with color taken from the environment
func New() *TerminalPresenter {
	return NewWithOptions(os.Stdout, os.Stderr, DetectColorMode())
}

// NewWithOptions creates a TerminalPresenter with custom writers and color mode
func NewWithOptions(output, errorOutput io.Writer, mode ColorMode) *TerminalPresenter {
	switch mode {
	case ColorAlways:
		color.NoColor = false
	case ColorNever:
		color.NoColor = true
	}

	return &TerminalPresenter{
		output:      output,
		errorOutput: errorOutput,
	}
}

// DetectColorMode reads NO_COLOR and LLMI_COLOR
func DetectColorMode() ColorMode {
	if os.Getenv("NO_COLOR") != "" {
		return ColorNever
	}

	switch strings.ToLower(os.Getenv(ColorEnv)) {
	case "always", "force":
		return ColorAlways
	case "never", "off":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Error displays an error message. Errors are shown even in quiet mode.
func (p *TerminalPresenter) Error(err error, context string) {
	if err == nil {
		return
	}

	errorColor := color.New(color.FgRed, color.Bold)
	if context != "" {
		errorColor.Fprintf(p.errorOutput, "[ERROR] %s: %v\n", context, err)
		return
	}
	errorColor.Fprintf(p.errorOutput, "[ERROR] %v\n", err)
}

// Success displays a success message
func (p *TerminalPresenter) Success(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgGreen, color.Bold).Fprintf(p.output, "✓ %s\n", message)
}

// Warning displays a warning message on the error output
func (p *TerminalPresenter) Warning(message string) {
	if p.quiet {
		return
	}
	color.New(color.FgYellow, color.Bold).Fprintf(p.errorOutput, "⚠ %s\n", message)
}

// Info displays an informational message
func (p *TerminalPresenter) Info(message string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.output, "%s\n", message)
}

// Section displays an underlined header
func (p *TerminalPresenter) Section(title string) {
	if p.quiet {
		return
	}

	header := color.New(color.Bold)
	header.Fprintf(p.output, "%s\n", title)
	header.Fprintf(p.output, "%s\n", strings.Repeat("-", len(title)))
}

// Usage displays token usage of a completion on the error output
func (p *TerminalPresenter) Usage(usage llmtypes.Usage) {
	if p.quiet {
		return
	}
	color.New(color.FgCyan).Fprintf(p.errorOutput, "[Usage] Input tokens: %d | Output tokens: %d | Total: %d\n",
		usage.InputTokens, usage.OutputTokens, usage.TotalTokens())
}

// Separator displays a visual separator
func (p *TerminalPresenter) Separator() {
	if p.quiet {
		return
	}
	color.New(color.Faint).Fprintf(p.output, "%s\n", strings.Repeat("-", 60))
}

// SetQuiet enables or disables quiet mode
func (p *TerminalPresenter) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// IsQuiet returns whether quiet mode is enabled
func (p *TerminalPresenter) IsQuiet() bool {
	return p.quiet
}

var defaultPresenter Presenter = New()

// SetDefault replaces the presenter behind the package-level functions
func SetDefault(p Presenter) {
	defaultPresenter = p
}

// Error displays an error message using the default presenter.
func Error(err error, context string) {
	defaultPresenter.Error(err, context)
}

// Success displays a success message using the default presenter.
func Success(message string) {
	defaultPresenter.Success(message)
}

// Warning displays a warning message using the default presenter.
func Warning(message string) {
	defaultPresenter.Warning(message)
}

// Info displays an informational message using the default presenter.
func Info(message string) {
	defaultPresenter.Info(message)
}

// Section displays a section header using the default presenter.
func Section(title string) {
	defaultPresenter.Section(title)
}

// Usage displays token usage using the default presenter.
func Usage(usage llmtypes.Usage) {
	defaultPresenter.Usage(usage)
}

// Separator displays a visual separator using the default presenter.
func Separator() {
	defaultPresenter.Separator()
}

// SetQuiet enables or disables quiet mode for the default presenter.
func SetQuiet(quiet bool) {
	defaultPresenter.SetQuiet(quiet)
}

// IsQuiet returns whether quiet mode is enabled for the default presenter.
func IsQuiet() bool {
	return defaultPresenter.IsQuiet()
}
