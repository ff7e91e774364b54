// Package engine executes skill handlers. It turns every failure inside a
// handler, whether a returned error, a non-zero exit or a panic, into a
// failed Outcome so that a misbehaving skill can never crash the host.
package engine

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/skills"
	"github.com/llm-inline/llmi/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// HandlerFault is any failure inside handler execution
type HandlerFault = skills.HandlerFault

// ErrHandlerReportedFailure is the fault recorded when a handler returns
// false without an error
var ErrHandlerReportedFailure = errors.New("handler reported failure")

// Invocation is everything a handler receives for one execution
type Invocation struct {
	Skill  *skills.Manifest
	Dir    string
	Args   *skills.BoundArguments
	Bridge bridge.Bridge
	Stdout io.Writer
	Stderr io.Writer
}

// Handler is the loaded custom logic of a skill
type Handler interface {
	Run(ctx context.Context, inv Invocation) (bool, error)
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, inv Invocation) (bool, error)

// Run calls f
func (f HandlerFunc) Run(ctx context.Context, inv Invocation) (bool, error) {
	return f(ctx, inv)
}

// Loader turns a manifest's handler reference into a runnable Handler
type Loader interface {
	Load(m *skills.Manifest, dir string) (Handler, error)
}

// Outcome is the result of one execution
type Outcome struct {
	RunID    string
	Success  bool
	Err      error
	Duration time.Duration
}

// Diagnostic returns a one-line description of a failed outcome
func (o Outcome) Diagnostic() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RunEvent describes a finished execution
type RunEvent struct {
	ID         string
	Name       string
	Version    string
	Success    bool
	Diagnostic string
	Duration   time.Duration
	StartedAt  time.Time
}

// RunRecorder persists execution history
type RunRecorder interface {
	RecordRun(ctx context.Context, event RunEvent) error
}

// Engine runs skill handlers one at a time
type Engine struct {
	loader       Loader
	stdout       io.Writer
	stderr       io.Writer
	env          []string
	interpreters map[string]string
	recorder     RunRecorder
}

// Option configures an Engine
type Option func(*Engine)

// WithLoader replaces the default subprocess loader
func WithLoader(loader Loader) Option {
	return func(e *Engine) {
		e.loader = loader
	}
}

// WithStdout sets where handler output goes
func WithStdout(w io.Writer) Option {
	return func(e *Engine) {
		e.stdout = w
	}
}

// WithStderr sets where handler diagnostics go
func WithStderr(w io.Writer) Option {
	return func(e *Engine) {
		e.stderr = w
	}
}

// WithEnv sets the base environment of handler subprocesses
func WithEnv(env []string) Option {
	return func(e *Engine) {
		e.env = env
	}
}

// WithInterpreters overrides interpreters by file extension, e.g. ".py" -> "python3"
func WithInterpreters(interpreters map[string]string) Option {
	return func(e *Engine) {
		for ext, interp := range interpreters {
			e.interpreters[ext] = interp
		}
	}
}

// WithRecorder records every execution
func WithRecorder(recorder RunRecorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// New creates an engine
func New(opts ...Option) *Engine {
	e := &Engine{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		interpreters: DefaultInterpreters(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.loader == nil {
		e.loader = NewExecLoader(e.env, e.interpreters)
	}
	return e
}

// Execute runs the skill's handler with the bound arguments and bridge. A
// skill without a handler succeeds trivially. No timeout is applied; the
// handler stops only when it returns or ctx is cancelled.
func (e *Engine) Execute(ctx context.Context, m *skills.Manifest, dir string, args *skills.BoundArguments, b bridge.Bridge) Outcome {
	start := time.Now()
	runID := uuid.NewString()
	ctx = logger.WithFields(ctx, logrus.Fields{"skill": m.Name, "run_id": runID})

	var outcome Outcome
	if !m.HasHandler() {
		outcome = Outcome{Success: true}
	} else {
		_ = telemetry.WithSpan(ctx, "engine.execute", func(ctx context.Context) error {
			outcome = e.run(ctx, m, dir, args, b)
			return outcome.Err
		}, telemetry.SkillAttributes(m.Name, m.Version)...)
	}

	outcome.RunID = runID
	outcome.Duration = time.Since(start)

	log := logger.G(ctx).WithField("duration", outcome.Duration)
	if outcome.Success {
		log.Debug("skill execution succeeded")
	} else {
		log.WithError(outcome.Err).Info("skill execution failed")
	}

	if e.recorder != nil {
		event := RunEvent{
			ID:         runID,
			Name:       m.Name,
			Version:    m.Version,
			Success:    outcome.Success,
			Diagnostic: outcome.Diagnostic(),
			Duration:   outcome.Duration,
			StartedAt:  start,
		}
		if err := e.recorder.RecordRun(ctx, event); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record skill run")
		}
	}

	return outcome
}

func (e *Engine) run(ctx context.Context, m *skills.Manifest, dir string, args *skills.BoundArguments, b bridge.Bridge) Outcome {
	handler, err := e.loader.Load(m, dir)
	if err != nil {
		return failed(m, errors.Wrap(err, "failed to load handler"))
	}

	inv := Invocation{
		Skill:  m,
		Dir:    dir,
		Args:   args,
		Bridge: b,
		Stdout: e.stdout,
		Stderr: e.stderr,
	}

	ok, err := safeRun(ctx, handler, inv)
	switch {
	case err != nil:
		return failed(m, err)
	case !ok:
		return failed(m, ErrHandlerReportedFailure)
	default:
		return Outcome{Success: true}
	}
}

func safeRun(ctx context.Context, handler Handler, inv Invocation) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.G(ctx).WithField("stack", string(debug.Stack())).Error("recovered from panic in skill handler")
			ok, err = false, errors.Errorf("handler panicked: %s", fmt.Sprint(r))
		}
	}()
	return handler.Run(ctx, inv)
}

func failed(m *skills.Manifest, err error) Outcome {
	return Outcome{Success: false, Err: &HandlerFault{Skill: m.Name, Err: err}}
}
