package skills

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/pkg/errors"
)

// InstalledSkillSet maps skill names to their install directories
type InstalledSkillSet map[string]string

// Names returns the skill names in sorted order
func (s InstalledSkillSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WarningHandler receives skill directories that were skipped during a scan
type WarningHandler func(dir string, err error)

// Registry enumerates and resolves skills installed under a single root
type Registry struct {
	root     string
	onWarn   WarningHandler
	snapshot InstalledSkillSet
}

// Option is a function that configures a Registry
type Option func(*Registry) error

// WithRoot sets the skills root directory
func WithRoot(dir string) Option {
	return func(r *Registry) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve skills root %s", dir)
		}
		r.root = abs
		return nil
	}
}

// WithDefaultRoot uses ~/.llmi/skills as the skills root
func WithDefaultRoot() Option {
	return func(r *Registry) error {
		root, err := DefaultRoot()
		if err != nil {
			return err
		}
		r.root = root
		return nil
	}
}

// WithWarningHandler registers a callback for skipped skill directories
func WithWarningHandler(fn WarningHandler) Option {
	return func(r *Registry) error {
		r.onWarn = fn
		return nil
	}
}

// DefaultRoot returns the default skills root, ~/.llmi/skills
func DefaultRoot() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(homeDir, ".llmi", "skills"), nil
}

// Open creates a registry and captures the installed skill set. A missing
// root is an empty registry, not an error.
func Open(ctx context.Context, opts ...Option) (*Registry, error) {
	r := &Registry{}

	if len(opts) == 0 {
		opts = []Option{WithDefaultRoot()}
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	if r.root == "" {
		if err := WithDefaultRoot()(r); err != nil {
			return nil, err
		}
	}

	r.snapshot = make(InstalledSkillSet)
	for name, m := range r.List(ctx) {
		r.snapshot[name] = filepath.Join(r.root, m.Name)
	}

	return r, nil
}

// Root returns the absolute skills root
func (r *Registry) Root() string {
	return r.root
}

// Snapshot returns the skill set captured when the registry was opened
func (r *Registry) Snapshot() InstalledSkillSet {
	out := make(InstalledSkillSet, len(r.snapshot))
	for name, dir := range r.snapshot {
		out[name] = dir
	}
	return out
}

// List yields every valid installed skill in directory name order. Each
// iteration rescans the root. Hidden entries and non-directories are
// skipped silently; directories with unreadable or invalid manifests are
// skipped with a warning.
func (r *Registry) List(ctx context.Context) iter.Seq2[string, *Manifest] {
	return func(yield func(string, *Manifest) bool) {
		entries, err := os.ReadDir(r.root)
		if err != nil {
			if !os.IsNotExist(err) {
				r.warn(ctx, r.root, errors.Wrap(err, "failed to read skills root"))
			}
			return
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}

			dir := filepath.Join(r.root, name)
			info, err := os.Stat(dir)
			if err != nil || !info.IsDir() {
				continue
			}

			m, err := LoadManifest(dir)
			if err != nil {
				r.warn(ctx, dir, err)
				continue
			}
			if m.Name != name {
				r.warn(ctx, dir, &ManifestError{
					Field:  "name",
					Reason: "manifest name '" + m.Name + "' does not match directory '" + name + "'",
				})
				continue
			}

			if !yield(name, m) {
				return
			}
		}
	}
}

// Resolve finds the installed skill with exactly the given name and returns
// its manifest and directory. The filesystem is consulted on every call so a
// skill deleted after Open is reported as not found.
func (r *Registry) Resolve(_ context.Context, name string) (*Manifest, string, error) {
	if name == "" || ValidateName(name) != nil {
		return nil, "", &NotFoundError{Name: name}
	}

	dir := filepath.Join(r.root, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, "", &NotFoundError{Name: name}
	}

	m, err := LoadManifest(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", &NotFoundError{Name: name}
		}
		return nil, "", errors.Wrapf(err, "skill '%s' is installed but unusable", name)
	}
	if m.Name != name {
		return nil, "", &NotFoundError{Name: name}
	}

	return m, dir, nil
}

// Names returns the names of all valid installed skills, sorted
func (r *Registry) Names(ctx context.Context) []string {
	var names []string
	for name := range r.List(ctx) {
		names = append(names, name)
	}
	return names
}

// LoadManifest reads and parses the manifest in a skill directory
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", ManifestFileName)
	}
	return ParseManifest(data)
}

func (r *Registry) warn(ctx context.Context, dir string, err error) {
	logger.G(ctx).WithField("dir", dir).WithError(err).Warn("skipping skill directory")
	if r.onWarn != nil {
		r.onWarn(dir, err)
	}
}
