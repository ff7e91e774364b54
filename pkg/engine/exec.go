package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/llm-inline/llmi/pkg/bridge"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/skills"
	"github.com/pkg/errors"
)

const (
	// maxDiagnosticBytes is how much trailing stderr is kept for a failed run
	maxDiagnosticBytes = 2048
	// terminateGracePeriod is how long an interrupted handler has to exit
	// before it is killed
	terminateGracePeriod = 2 * time.Second
)

// DefaultInterpreters maps handler file extensions to interpreters.
// Extensions not listed are executed directly.
func DefaultInterpreters() map[string]string {
	return map[string]string{
		".py": "python3",
		".sh": "sh",
		".js": "node",
		".rb": "ruby",
	}
}

// ExecLoader loads handlers as subprocesses
type ExecLoader struct {
	env          []string
	interpreters map[string]string
}

// NewExecLoader creates a loader. A nil env means the host's environment.
func NewExecLoader(env []string, interpreters map[string]string) *ExecLoader {
	if interpreters == nil {
		interpreters = DefaultInterpreters()
	}
	return &ExecLoader{env: env, interpreters: interpreters}
}

// Load checks that the handler artifact exists inside dir
func (l *ExecLoader) Load(m *skills.Manifest, dir string) (Handler, error) {
	if !m.HasHandler() {
		return nil, errors.New("skill declares no handler")
	}

	path := filepath.Join(dir, filepath.FromSlash(m.Handler))
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, errors.Errorf("handler %s escapes the skill directory", m.Handler)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "handler %s is missing", m.Handler)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Errorf("handler %s is not a regular file", m.Handler)
	}

	env := l.env
	if env == nil {
		env = os.Environ()
	}

	return &execHandler{
		path:        path,
		interpreter: l.interpreters[strings.ToLower(filepath.Ext(path))],
		env:         env,
	}, nil
}

type execHandler struct {
	path        string
	interpreter string
	env         []string
}

// Run starts the bridge transport, runs the handler process and waits for it
func (h *execHandler) Run(ctx context.Context, inv Invocation) (bool, error) {
	var endpoint *bridge.Endpoint
	if inv.Bridge != nil {
		server, err := bridge.Serve(ctx, inv.Bridge)
		if err != nil {
			return false, errors.Wrap(err, "failed to start bridge")
		}
		defer func() {
			if err := server.Close(); err != nil {
				logger.G(ctx).WithError(err).Warn("failed to stop bridge")
			}
		}()
		endpoint = &bridge.Endpoint{URL: server.URL(), Token: server.Token()}
	}

	payload, err := json.Marshal(bridge.NewPayload(inv.Skill, inv.Dir, inv.Args, endpoint))
	if err != nil {
		return false, errors.Wrap(err, "failed to marshal handler payload")
	}

	var argv []string
	if inv.Args != nil {
		argv = inv.Args.Raw
	}

	var cmd *exec.Cmd
	if h.interpreter != "" {
		cmd = exec.CommandContext(ctx, h.interpreter, append([]string{h.path}, argv...)...)
	} else {
		cmd = exec.CommandContext(ctx, h.path, argv...)
	}
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = h.environ(inv, endpoint)
	isolateProcessGroup(cmd)

	stderrTail := &tailBuffer{limit: maxDiagnosticBytes}
	cmd.Stdout = writerOr(inv.Stdout, io.Discard)
	cmd.Stderr = io.MultiWriter(writerOr(inv.Stderr, io.Discard), stderrTail)

	logger.G(ctx).WithField("cmd", cmd.String()).Debug("running skill handler")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return false, errors.Wrap(ctx.Err(), "handler interrupted")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if tail := strings.TrimSpace(stderrTail.String()); tail != "" {
				return false, errors.Errorf("handler exited with status %d: %s", exitErr.ExitCode(), lastLine(tail))
			}
			return false, errors.Errorf("handler exited with status %d", exitErr.ExitCode())
		}
		return false, errors.Wrap(err, "failed to run handler")
	}

	return true, nil
}

func (h *execHandler) environ(inv Invocation, endpoint *bridge.Endpoint) []string {
	env := append([]string{}, h.env...)
	env = append(env,
		bridge.EnvBridgeVersion+"="+bridge.APIVersion,
		bridge.EnvSkillName+"="+inv.Skill.Name,
		bridge.EnvSkillDir+"="+inv.Dir,
	)
	if endpoint != nil {
		env = append(env,
			bridge.EnvBridgeURL+"="+endpoint.URL,
			bridge.EnvBridgeToken+"="+endpoint.Token,
		)
	}
	return env
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}
	return w
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// tailBuffer keeps the last limit bytes written to it
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
