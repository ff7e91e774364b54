package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/llm-inline/llmi/pkg/skills"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLoader struct {
	handler Handler
	err     error
	loads   int
}

func (l *staticLoader) Load(*skills.Manifest, string) (Handler, error) {
	l.loads++
	return l.handler, l.err
}

type recordedRuns struct {
	events []RunEvent
	err    error
}

func (r *recordedRuns) RecordRun(_ context.Context, event RunEvent) error {
	r.events = append(r.events, event)
	return r.err
}

func manifest(t *testing.T, doc string) *skills.Manifest {
	t.Helper()
	m, err := skills.ParseManifest([]byte(doc))
	require.NoError(t, err)
	return m
}

func TestExecuteWithoutHandler(t *testing.T) {
	m := manifest(t, `{"name":"echo","parameters":[{"name":"msg","type":"string","required":true}]}`)
	args, err := skills.NewBinder(nil).Bind(m, []string{"hello"})
	require.NoError(t, err)

	loader := &staticLoader{}
	recorder := &recordedRuns{}
	outcome := New(WithLoader(loader), WithRecorder(recorder)).Execute(context.Background(), m, t.TempDir(), args, nil)

	assert.True(t, outcome.Success)
	assert.NoError(t, outcome.Err)
	assert.NotEmpty(t, outcome.RunID)
	assert.Zero(t, loader.loads)

	require.Len(t, recorder.events, 1)
	assert.Equal(t, "echo", recorder.events[0].Name)
	assert.True(t, recorder.events[0].Success)
}

func TestExecuteInProcessHandler(t *testing.T) {
	m := manifest(t, `{"name":"greet","handler":"main.go","parameters":[{"name":"who","type":"string"}]}`)
	args, err := skills.NewBinder(nil).Bind(m, []string{"world", "extra"})
	require.NoError(t, err)

	var stdout bytes.Buffer
	host := bridge.NewHost(nil, nil)
	handler := HandlerFunc(func(ctx context.Context, inv Invocation) (bool, error) {
		who, _ := inv.Args.Get("who")
		_, _ = inv.Stdout.Write([]byte("hello " + who.(string)))
		assert.Equal(t, []string{"extra"}, inv.Args.Trailing)
		assert.Same(t, host, inv.Bridge)
		return true, nil
	})

	outcome := New(WithLoader(&staticLoader{handler: handler}), WithStdout(&stdout)).
		Execute(context.Background(), m, t.TempDir(), args, host)

	assert.True(t, outcome.Success)
	assert.Equal(t, "hello world", stdout.String())
}

func TestExecuteFaults(t *testing.T) {
	m := manifest(t, `{"name":"flaky","handler":"main.py"}`)

	tests := []struct {
		name    string
		loader  *staticLoader
		message string
	}{
		{
			name:    "load failure",
			loader:  &staticLoader{err: errors.New("no such file")},
			message: "failed to load handler",
		},
		{
			name: "returned error",
			loader: &staticLoader{handler: HandlerFunc(func(context.Context, Invocation) (bool, error) {
				return false, errors.New("quota exceeded")
			})},
			message: "quota exceeded",
		},
		{
			name: "reported failure",
			loader: &staticLoader{handler: HandlerFunc(func(context.Context, Invocation) (bool, error) {
				return false, nil
			})},
			message: "handler reported failure",
		},
		{
			name: "panic",
			loader: &staticLoader{handler: HandlerFunc(func(context.Context, Invocation) (bool, error) {
				var m map[string]int
				m["boom"]++
				return true, nil
			})},
			message: "handler panicked",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &recordedRuns{err: errors.New("database locked")}
			outcome := New(WithLoader(tt.loader), WithRecorder(recorder)).
				Execute(context.Background(), m, t.TempDir(), nil, nil)

			assert.False(t, outcome.Success)
			require.Error(t, outcome.Err)
			assert.Contains(t, outcome.Diagnostic(), tt.message)
			assert.Equal(t, skills.KindHandlerFault, skills.KindOf(outcome.Err))

			var fault *HandlerFault
			require.True(t, errors.As(outcome.Err, &fault))
			assert.Equal(t, "flaky", fault.Skill)

			require.Len(t, recorder.events, 1)
			assert.False(t, recorder.events[0].Success)
			assert.Contains(t, recorder.events[0].Diagnostic, tt.message)
		})
	}
}

func TestExecuteCancelledContext(t *testing.T) {
	m := manifest(t, `{"name":"slow","handler":"main.py"}`)
	ctx, cancel := context.WithCancel(context.Background())

	handler := HandlerFunc(func(ctx context.Context, _ Invocation) (bool, error) {
		cancel()
		<-ctx.Done()
		return false, ctx.Err()
	})

	outcome := New(WithLoader(&staticLoader{handler: handler})).Execute(ctx, m, t.TempDir(), nil, nil)
	assert.False(t, outcome.Success)
	assert.True(t, errors.Is(outcome.Err, context.Canceled))
}
