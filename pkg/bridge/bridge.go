// Package bridge defines the versioned capability surface that skill
// handlers use to call back into the host: reading a file through the
// host's attachment policy and calling the host's language model. Neither
// operation fails by panicking or returning a Go error; failures are
// described in the result's Error field so that handler authors only need
// to check one value.
package bridge

import (
	"context"
	"fmt"

	"github.com/llm-inline/llmi/pkg/attachment"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/telemetry"
	llmtypes "github.com/llm-inline/llmi/pkg/types/llm"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// APIVersion is the version of the bridge contract. It changes only when
// an existing field or operation changes meaning.
const APIVersion = "1"

// Generation defaults applied when a handler leaves an option unset
const (
	DefaultMaxTokens   = 4000
	DefaultTemperature = 0.3
)

// ErrorCode classifies a bridge failure
type ErrorCode string

// Bridge error codes
const (
	CodeInvalidRequest ErrorCode = "invalid_request"
	CodeFileError      ErrorCode = "file_error"
	CodeTooLarge       ErrorCode = "too_large"
	CodeLLMError       ErrorCode = "llm_error"
	CodeInternal       ErrorCode = "internal"
)

// Error is a structured failure description returned to handlers
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FileContent is the result of GetFileContent
type FileContent struct {
	Path     string `json:"path,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int64  `json:"size,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Binary   bool   `json:"binary"`
	// Encoding is "utf-8" for text and "base64" for binary content
	Encoding string `json:"encoding,omitempty"`
	Content  string `json:"content"`
	Error    *Error `json:"error,omitempty"`
}

// GenerationOptions tune a CallLLM request. Zero values mean host defaults.
// The transport rejects option keys not listed here.
type GenerationOptions struct {
	Model            string   `json:"model,omitempty"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty"`
	Seed             *int     `json:"seed,omitempty"`
	Stop             []string `json:"stop,omitempty"`
}

// LLMRequest is the input of CallLLM
type LLMRequest struct {
	Prompt       string            `json:"prompt"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Options      GenerationOptions `json:"options"`
}

// LLMResponse is the result of CallLLM
type LLMResponse struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Bridge is the capability surface injected into every handler execution
type Bridge interface {
	GetFileContent(ctx context.Context, path string) FileContent
	CallLLM(ctx context.Context, req LLMRequest) LLMResponse
}

// FileReader reads a file under the host's attachment policy
type FileReader interface {
	Read(path string) (*attachment.File, error)
}

// Completer is the host's chat-completion collaborator
type Completer interface {
	Complete(ctx context.Context, req llmtypes.Request) (*llmtypes.Response, error)
}

// Host implements Bridge on top of the host's own collaborators. Handlers
// never see the credentials the completer closes over.
type Host struct {
	reader    FileReader
	completer Completer
}

// NewHost creates a Bridge backed by reader and completer. Either may be
// nil, in which case the matching operation reports an error.
func NewHost(reader FileReader, completer Completer) *Host {
	return &Host{reader: reader, completer: completer}
}

// GetFileContent resolves and reads path exactly as attachments are read
func (h *Host) GetFileContent(ctx context.Context, path string) (result FileContent) {
	telemetry.WithSpanFunc(ctx, "bridge.get_file_content", func(ctx context.Context) {
		result = h.getFileContent(ctx, path)
		if result.Error != nil {
			telemetry.RecordError(ctx, result.Error, trace.WithAttributes(attribute.String("bridge.error_code", string(result.Error.Code))))
		}
	}, attribute.String("bridge.file", path))
	return result
}

func (h *Host) getFileContent(ctx context.Context, path string) (result FileContent) {
	defer func() {
		if r := recover(); r != nil {
			logger.G(ctx).WithField("panic", r).Error("recovered from panic in GetFileContent")
			result = FileContent{Path: path, Error: &Error{Code: CodeInternal, Message: fmt.Sprintf("internal error: %v", r)}}
		}
	}()

	if path == "" {
		return FileContent{Error: &Error{Code: CodeInvalidRequest, Message: "path cannot be empty"}}
	}
	if h.reader == nil {
		return FileContent{Path: path, Error: &Error{Code: CodeInternal, Message: "file access is not available"}}
	}

	file, err := h.reader.Read(path)
	if err != nil {
		code := CodeFileError
		if errors.Is(err, attachment.ErrTooLarge) {
			code = CodeTooLarge
		}
		logger.G(ctx).WithError(err).WithField("path", path).Debug("bridge file read failed")
		return FileContent{Path: path, Error: &Error{Code: code, Message: err.Error()}}
	}

	return FileContent{
		Path:     file.Path,
		Name:     file.Name,
		Size:     file.Size,
		MIMEType: file.MIMEType,
		Binary:   file.Binary,
		Encoding: file.Encoding(),
		Content:  file.Content,
	}
}

// CallLLM forwards the request to the host's completer
func (h *Host) CallLLM(ctx context.Context, req LLMRequest) (result LLMResponse) {
	telemetry.WithSpanFunc(ctx, "bridge.call_llm", func(ctx context.Context) {
		result = h.callLLM(ctx, req)
		if result.Error != nil {
			telemetry.RecordError(ctx, result.Error, trace.WithAttributes(attribute.String("bridge.error_code", string(result.Error.Code))))
		}
	}, attribute.String("bridge.llm.model", req.Options.Model), attribute.Int("bridge.llm.prompt_bytes", len(req.Prompt)))
	return result
}

func (h *Host) callLLM(ctx context.Context, req LLMRequest) (result LLMResponse) {
	defer func() {
		if r := recover(); r != nil {
			logger.G(ctx).WithField("panic", r).Error("recovered from panic in CallLLM")
			result = LLMResponse{Error: &Error{Code: CodeInternal, Message: fmt.Sprintf("internal error: %v", r)}}
		}
	}()

	if req.Prompt == "" {
		return LLMResponse{Error: &Error{Code: CodeInvalidRequest, Message: "prompt cannot be empty"}}
	}
	if h.completer == nil {
		return LLMResponse{Error: &Error{Code: CodeLLMError, Message: "no language model is configured"}}
	}

	resp, err := h.completer.Complete(ctx, toCompletionRequest(req))
	if err != nil {
		logger.G(ctx).WithError(err).Debug("bridge LLM call failed")
		return LLMResponse{Error: &Error{Code: CodeLLMError, Message: err.Error()}}
	}

	return LLMResponse{Text: resp.Text, Model: resp.Model}
}

func toCompletionRequest(req LLMRequest) llmtypes.Request {
	out := llmtypes.Request{
		Prompt:           req.Prompt,
		SystemPrompt:     req.SystemPrompt,
		Model:            req.Options.Model,
		MaxTokens:        req.Options.MaxTokens,
		Temperature:      req.Options.Temperature,
		TopP:             req.Options.TopP,
		FrequencyPenalty: req.Options.FrequencyPenalty,
		PresencePenalty:  req.Options.PresencePenalty,
		Seed:             req.Options.Seed,
		Stop:             req.Options.Stop,
	}
	if out.MaxTokens <= 0 {
		out.MaxTokens = DefaultMaxTokens
	}
	if out.Temperature == nil {
		temp := DefaultTemperature
		out.Temperature = &temp
	}
	return out
}
