package bridge

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/llm-inline/llmi/pkg/attachment"
	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeCompleter struct {
	requests []llmtypes.Request
	text     string
	err      error
	panicMsg string
}

func (f *fakeCompleter) Complete(_ context.Context, req llmtypes.Request) (*llmtypes.Response, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llmtypes.Response{Text: f.text, Model: "test-model"}, nil
}

func newTestReader(t *testing.T, dir string) *attachment.Reader {
	t.Helper()
	reader, err := attachment.NewReader(attachment.WithWorkingDir(dir), attachment.WithMaxSize(64))
	require.NoError(t, err)
	return reader
}

func TestHostGetFileContent(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello bridge"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob.bin"), []byte{0x00, 0x01, 0x02}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte(strings.Repeat("x", 100)), 0o644))

	host := NewHost(newTestReader(t, dir), nil)

	t.Run("text", func(t *testing.T) {
		fc := host.GetFileContent(ctx, "notes.txt")
		require.Nil(t, fc.Error)
		assert.Equal(t, filepath.Join(dir, "notes.txt"), fc.Path)
		assert.Equal(t, "notes.txt", fc.Name)
		assert.False(t, fc.Binary)
		assert.Equal(t, "utf-8", fc.Encoding)
		assert.Equal(t, "hello bridge", fc.Content)
	})

	t.Run("binary", func(t *testing.T) {
		fc := host.GetFileContent(ctx, "blob.bin")
		require.Nil(t, fc.Error)
		assert.True(t, fc.Binary)
		assert.Equal(t, "base64", fc.Encoding)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x00, 0x01, 0x02}), fc.Content)
	})

	t.Run("too large", func(t *testing.T) {
		fc := host.GetFileContent(ctx, "big.txt")
		require.NotNil(t, fc.Error)
		assert.Equal(t, CodeTooLarge, fc.Error.Code)
	})

	t.Run("missing", func(t *testing.T) {
		fc := host.GetFileContent(ctx, "absent.txt")
		require.NotNil(t, fc.Error)
		assert.Equal(t, CodeFileError, fc.Error.Code)
	})

	t.Run("empty path", func(t *testing.T) {
		fc := host.GetFileContent(ctx, "")
		require.NotNil(t, fc.Error)
		assert.Equal(t, CodeInvalidRequest, fc.Error.Code)
	})

	t.Run("no reader", func(t *testing.T) {
		fc := NewHost(nil, nil).GetFileContent(ctx, "notes.txt")
		require.NotNil(t, fc.Error)
		assert.Equal(t, CodeInternal, fc.Error.Code)
	})
}

func TestHostCallLLM(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults applied", func(t *testing.T) {
		completer := &fakeCompleter{text: "bonjour"}
		resp := NewHost(nil, completer).CallLLM(ctx, LLMRequest{Prompt: "hello", SystemPrompt: "translate to French"})
		require.Nil(t, resp.Error)
		assert.Equal(t, "bonjour", resp.Text)
		assert.Equal(t, "test-model", resp.Model)

		require.Len(t, completer.requests, 1)
		req := completer.requests[0]
		assert.Equal(t, "translate to French", req.SystemPrompt)
		assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
		require.NotNil(t, req.Temperature)
		assert.InDelta(t, DefaultTemperature, *req.Temperature, 0.0001)
	})

	t.Run("options forwarded", func(t *testing.T) {
		completer := &fakeCompleter{text: "ok"}
		zero := 0.0
		penalty := 0.4
		seed := 42
		NewHost(nil, completer).CallLLM(ctx, LLMRequest{
			Prompt:  "hello",
			Options: GenerationOptions{Model: "m", MaxTokens: 12, Temperature: &zero, PresencePenalty: &penalty, Seed: &seed, Stop: []string{"END"}},
		})
		req := completer.requests[0]
		assert.Equal(t, &penalty, req.PresencePenalty)
		assert.Equal(t, &seed, req.Seed)
		assert.Nil(t, req.FrequencyPenalty)
		assert.Equal(t, "m", req.Model)
		assert.Equal(t, 12, req.MaxTokens)
		assert.Equal(t, 0.0, *req.Temperature)
		assert.Equal(t, []string{"END"}, req.Stop)
	})

	t.Run("transport failure is a value", func(t *testing.T) {
		resp := NewHost(nil, &fakeCompleter{err: errors.New("401 unauthorized")}).CallLLM(ctx, LLMRequest{Prompt: "hi"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeLLMError, resp.Error.Code)
		assert.Contains(t, resp.Error.Message, "401")
	})

	t.Run("panic is contained", func(t *testing.T) {
		resp := NewHost(nil, &fakeCompleter{panicMsg: "boom"}).CallLLM(ctx, LLMRequest{Prompt: "hi"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInternal, resp.Error.Code)
	})

	t.Run("empty prompt", func(t *testing.T) {
		resp := NewHost(nil, &fakeCompleter{}).CallLLM(ctx, LLMRequest{})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeInvalidRequest, resp.Error.Code)
	})

	t.Run("no completer", func(t *testing.T) {
		resp := NewHost(nil, nil).CallLLM(ctx, LLMRequest{Prompt: "hi"})
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeLLMError, resp.Error.Code)
	})
}

func TestHostSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hello"), 0o644))
	host := NewHost(newTestReader(t, dir), &fakeCompleter{text: "ok"})

	require.Nil(t, host.GetFileContent(ctx, "notes.txt").Error)
	require.NotNil(t, host.GetFileContent(ctx, "absent.txt").Error)
	require.Nil(t, host.CallLLM(ctx, LLMRequest{Prompt: "hi", Options: GenerationOptions{Model: "m"}}).Error)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	assert.Equal(t, "bridge.get_file_content", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String("bridge.file", "notes.txt"))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, "bridge.get_file_content", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	require.Len(t, spans[1].Events(), 1)
	assert.Contains(t, spans[1].Events()[0].Attributes, attribute.String("bridge.error_code", string(CodeFileError)))

	assert.Equal(t, "bridge.call_llm", spans[2].Name())
	assert.Contains(t, spans[2].Attributes(), attribute.String("bridge.llm.model", "m"))
	assert.Equal(t, codes.Unset, spans[2].Status().Code)
}
