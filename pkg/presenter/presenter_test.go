package presenter

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name      string
		noColor   string
		llmiColor string
		expected  ColorMode
	}{
		{"NO_COLOR wins", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "FORCE", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"unset", "", "", ColorAuto},
		{"unknown value", "", "sometimes", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv(ColorEnv, tt.llmiColor)
			assert.Equal(t, tt.expected, DetectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Error(errors.New("skill 'x' not found"), "failed to run skill")
	p.Error(errors.New("bare"), "")
	p.Error(nil, "ignored")

	assert.Empty(t, out.String())
	assert.Equal(t, "[ERROR] failed to run skill: skill 'x' not found\n[ERROR] bare\n", errOut.String())
}

func TestMessages(t *testing.T) {
	p, out, errOut := newTestPresenter()

	p.Success("installed translate")
	p.Info("plain")
	p.Section("Skills")
	p.Warning("careful")

	assert.Equal(t, "✓ installed translate\nplain\nSkills\n------\n", out.String())
	assert.Equal(t, "⚠ careful\n", errOut.String())
}

func TestUsage(t *testing.T) {
	p, _, errOut := newTestPresenter()

	p.Usage(llmtypes.Usage{InputTokens: 10, OutputTokens: 5})
	assert.Equal(t, "[Usage] Input tokens: 10 | Output tokens: 5 | Total: 15\n", errOut.String())
}

func TestQuietMode(t *testing.T) {
	p, out, errOut := newTestPresenter()
	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("s")
	p.Info("i")
	p.Warning("w")
	p.Section("title")
	p.Separator()
	p.Usage(llmtypes.Usage{InputTokens: 1})
	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())

	p.Error(errors.New("still shown"), "")
	assert.Contains(t, errOut.String(), "still shown")
}

func TestSeparator(t *testing.T) {
	p, out, _ := newTestPresenter()
	p.Separator()
	assert.Len(t, out.String(), 61)
}

func TestDefaultPresenter(t *testing.T) {
	p, out, errOut := newTestPresenter()
	previous := defaultPresenter
	SetDefault(p)
	t.Cleanup(func() { SetDefault(previous) })

	Success("done")
	Error(errors.New("bad"), "ctx")
	SetQuiet(true)
	assert.True(t, IsQuiet())
	Info("hidden")

	assert.Equal(t, "✓ done\n", out.String())
	assert.Equal(t, "[ERROR] ctx: bad\n", errOut.String())
}
