package skills

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/llm-inline/llmi/pkg/logger"
	"github.com/llm-inline/llmi/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultFetchTimeout bounds each network fetch during install
	DefaultFetchTimeout = 30 * time.Second
	// DefaultMaxFetchSize matches the attachment ceiling
	DefaultMaxFetchSize int64 = 5 << 20

	lockFileName  = ".install.lock"
	stagingPrefix = ".staging-"
	trashPrefix   = ".trash-"
)

// InstallEvent describes a completed installation
type InstallEvent struct {
	Name        string
	Version     string
	Source      string
	Directory   string
	InstalledAt time.Time
}

// InstallRecorder persists install provenance
type InstallRecorder interface {
	RecordInstall(ctx context.Context, event InstallEvent) error
}

// InstallResult contains information about an installed skill
type InstallResult struct {
	Name      string
	Version   string
	Directory string
	Handler   string
	Replaced  bool
}

// Installer fetches, validates and persists skills into the skills root
type Installer struct {
	root     string
	maxSize  int64
	client   *http.Client
	timeout  time.Duration
	reserved map[string]bool
	recorder InstallRecorder
}

// InstallerOption configures an Installer instance
type InstallerOption func(*Installer)

// WithInstallRoot sets the skills root to install into
func WithInstallRoot(dir string) InstallerOption {
	return func(i *Installer) {
		i.root = dir
	}
}

// WithMaxSize sets the largest manifest or handler accepted, in bytes
func WithMaxSize(size int64) InstallerOption {
	return func(i *Installer) {
		if size > 0 {
			i.maxSize = size
		}
	}
}

// WithHTTPClient sets the client used for remote sources
func WithHTTPClient(client *http.Client) InstallerOption {
	return func(i *Installer) {
		if client != nil {
			i.client = client
		}
	}
}

// WithFetchTimeout bounds each remote fetch. Zero disables the timeout.
func WithFetchTimeout(timeout time.Duration) InstallerOption {
	return func(i *Installer) {
		i.timeout = timeout
	}
}

// WithReservedNames rejects skills whose names collide with host commands
func WithReservedNames(names ...string) InstallerOption {
	return func(i *Installer) {
		for _, name := range names {
			i.reserved[strings.ToLower(name)] = true
		}
	}
}

// WithRecorder records provenance of successful installs
func WithRecorder(recorder InstallRecorder) InstallerOption {
	return func(i *Installer) {
		i.recorder = recorder
	}
}

// NewInstaller creates a new skill installer
func NewInstaller(opts ...InstallerOption) (*Installer, error) {
	i := &Installer{
		maxSize:  DefaultMaxFetchSize,
		client:   http.DefaultClient,
		timeout:  DefaultFetchTimeout,
		reserved: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(i)
	}

	if i.root == "" {
		root, err := DefaultRoot()
		if err != nil {
			return nil, err
		}
		i.root = root
	}
	abs, err := filepath.Abs(i.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve skills root %s", i.root)
	}
	i.root = abs

	return i, nil
}

// Root returns the skills root the installer writes into
func (i *Installer) Root() string {
	return i.root
}

// Install fetches the manifest at rawSource, validates it, fetches the
// declared handler and persists both under <root>/<name>. Nothing is written
// unless every fetch and validation step succeeds, and a failed write
// leaves any previous installation of the skill in place.
func (i *Installer) Install(ctx context.Context, rawSource string) (*InstallResult, error) {
	var result *InstallResult
	err := telemetry.WithSpan(ctx, "skills.install", func(ctx context.Context) error {
		var err error
		result, err = i.install(ctx, rawSource)
		return err
	}, attribute.String("skill.source", rawSource))
	return result, err
}

func (i *Installer) install(ctx context.Context, rawSource string) (*InstallResult, error) {
	log := logger.G(ctx).WithField("source", rawSource)

	src, err := parseSource(rawSource)
	if err != nil {
		return nil, err
	}

	fetchCtx := ctx
	if i.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	f := &fetcher{client: i.client, maxSize: i.maxSize}

	log.WithField("location", src.String()).Debug("fetching manifest")
	manifestData, err := f.fetch(fetchCtx, src, src.String())
	if err != nil {
		return nil, err
	}

	manifest, err := ParseManifest(manifestData)
	if err != nil {
		return nil, err
	}
	if err := i.checkName(manifest.Name); err != nil {
		return nil, err
	}

	var handlerData []byte
	if manifest.HasHandler() {
		location := src.handlerLocation(manifest.Handler)
		log.WithField("location", location).Debug("fetching handler")
		handlerData, err = f.fetch(fetchCtx, src, location)
		if err != nil {
			return nil, err
		}
	}

	replaced, err := i.persist(ctx, manifest, manifestData, handlerData)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(i.root, manifest.Name)
	result := &InstallResult{
		Name:      manifest.Name,
		Version:   manifest.Version,
		Directory: dir,
		Replaced:  replaced,
	}
	if manifest.HasHandler() {
		result.Handler = filepath.Join(dir, filepath.FromSlash(manifest.Handler))
	}

	if i.recorder != nil {
		event := InstallEvent{
			Name:        manifest.Name,
			Version:     manifest.Version,
			Source:      src.String(),
			Directory:   dir,
			InstalledAt: time.Now(),
		}
		if err := i.recorder.RecordInstall(ctx, event); err != nil {
			log.WithError(err).Warn("failed to record install")
		}
	}

	log.WithField("name", manifest.Name).WithField("replaced", replaced).Info("skill installed")
	return result, nil
}

// checkName rejects host command names and names that differ from an
// installed skill only by case.
func (i *Installer) checkName(name string) error {
	if i.reserved[strings.ToLower(name)] {
		return &ManifestError{Field: "name", Reason: "'" + name + "' is reserved by a built-in command"}
	}

	entries, err := os.ReadDir(i.root)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		existing := entry.Name()
		if existing != name && strings.EqualFold(existing, name) && !strings.HasPrefix(existing, ".") {
			return &ManifestError{Field: "name", Reason: "'" + name + "' differs only by case from installed skill '" + existing + "'"}
		}
	}
	return nil
}

// persist writes the skill into a staging directory and swaps it into
// place while holding the install lock. It reports whether an existing
// installation was replaced.
func (i *Installer) persist(ctx context.Context, m *Manifest, manifestData, handlerData []byte) (replaced bool, err error) {
	if err := os.MkdirAll(i.root, 0o755); err != nil {
		return false, &PersistError{Path: i.root, Err: err}
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(i.root, lockFileName)).Lock()
	if err != nil {
		return false, &PersistError{Path: i.root, Err: errors.Wrap(err, "failed to acquire install lock")}
	}
	defer unlock()

	staging := filepath.Join(i.root, stagingPrefix+uuid.NewString())
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(staging); rmErr != nil {
				logger.G(ctx).WithError(rmErr).WithField("dir", staging).Warn("failed to clean up staging directory")
			}
		}
	}()

	if err := writeSkillFiles(staging, m, manifestData, handlerData); err != nil {
		return false, &PersistError{Path: staging, Err: err}
	}

	target := filepath.Join(i.root, m.Name)
	if _, statErr := os.Lstat(target); statErr == nil {
		trash := filepath.Join(i.root, trashPrefix+uuid.NewString())
		if err := os.Rename(target, trash); err != nil {
			return false, &PersistError{Path: target, Err: errors.Wrap(err, "failed to move existing installation aside")}
		}
		if err := os.Rename(staging, target); err != nil {
			var result error = &PersistError{Path: target, Err: err}
			if restoreErr := os.Rename(trash, target); restoreErr != nil {
				result = multierror.Append(result, errors.Wrap(restoreErr, "failed to restore previous installation"))
			}
			return false, result
		}
		if err := os.RemoveAll(trash); err != nil {
			logger.G(ctx).WithError(err).WithField("dir", trash).Warn("failed to remove previous installation")
		}
		return true, nil
	}

	if err := os.Rename(staging, target); err != nil {
		return false, &PersistError{Path: target, Err: err}
	}
	return false, nil
}

func writeSkillFiles(dir string, m *Manifest, manifestData, handlerData []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create staging directory")
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), manifestData, 0o644); err != nil {
		return errors.Wrap(err, "failed to write manifest")
	}
	if !m.HasHandler() {
		return nil
	}

	handlerPath := filepath.Join(dir, filepath.FromSlash(m.Handler))
	if err := os.MkdirAll(filepath.Dir(handlerPath), 0o755); err != nil {
		return errors.Wrap(err, "failed to create handler directory")
	}
	if err := os.WriteFile(handlerPath, handlerData, 0o755); err != nil {
		return errors.Wrap(err, "failed to write handler")
	}
	return nil
}

// Remove deletes an installed skill
func (i *Installer) Remove(ctx context.Context, name string) error {
	if ValidateName(name) != nil {
		return &NotFoundError{Name: name}
	}

	target := filepath.Join(i.root, name)
	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		return &NotFoundError{Name: name}
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(i.root, lockFileName)).Lock()
	if err != nil {
		return &PersistError{Path: i.root, Err: errors.Wrap(err, "failed to acquire install lock")}
	}
	defer unlock()

	trash := filepath.Join(i.root, trashPrefix+uuid.NewString())
	if err := os.Rename(target, trash); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Name: name}
		}
		return &PersistError{Path: target, Err: err}
	}
	if err := os.RemoveAll(trash); err != nil {
		logger.G(ctx).WithError(err).WithField("dir", trash).Warn("failed to remove skill files")
	}

	logger.G(ctx).WithField("name", name).Info("skill removed")
	return nil
}
