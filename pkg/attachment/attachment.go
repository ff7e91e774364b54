// Package attachment implements the host's file attachment pipeline: path
// resolution relative to the working directory or the home directory, a size
// ceiling, and binary detection with base64 encoding of non-text content.
// The ask command and the skill runtime bridge both read files through it so
// that the same policy applies everywhere.
package attachment

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/llm-inline/llmi/pkg/utils"
	"github.com/pkg/errors"
)

// DefaultMaxSize is the default attachment size ceiling (5 MiB)
const DefaultMaxSize int64 = 5 << 20

var (
	// ErrNotFound is returned when the path does not exist
	ErrNotFound = errors.New("file not found")
	// ErrNotRegular is returned when the path is a directory or a special file
	ErrNotRegular = errors.New("not a regular file")
	// ErrTooLarge is returned when the file exceeds the size ceiling
	ErrTooLarge = errors.New("file exceeds size limit")
)

// Error describes why a path could not be attached
type Error struct {
	Path   string
	Reason error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Reason)
}

// Unwrap returns the underlying reason
func (e *Error) Unwrap() error {
	return e.Reason
}

// File is a resolved and loaded attachment
type File struct {
	Path     string
	Name     string
	Size     int64
	MIMEType string
	Binary   bool
	// Content is the UTF-8 text, or the standard base64 encoding when Binary is set
	Content string
}

// Encoding returns the representation used for Content
func (f *File) Encoding() string {
	if f.Binary {
		return "base64"
	}
	return "utf-8"
}

// Reader resolves and reads attachments under a fixed policy
type Reader struct {
	maxSize int64
	workDir string
	homeDir string
}

// Option configures a Reader
type Option func(*Reader)

// WithMaxSize sets the size ceiling in bytes
func WithMaxSize(size int64) Option {
	return func(r *Reader) {
		if size > 0 {
			r.maxSize = size
		}
	}
}

// WithWorkingDir sets the directory relative paths are resolved against
func WithWorkingDir(dir string) Option {
	return func(r *Reader) {
		r.workDir = dir
	}
}

// WithHomeDir sets the directory ~ expands to
func WithHomeDir(dir string) Option {
	return func(r *Reader) {
		r.homeDir = dir
	}
}

// NewReader creates a Reader. The working and home directories default to
// the process's current directory and the user's home directory.
func NewReader(opts ...Option) (*Reader, error) {
	r := &Reader{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(r)
	}

	if r.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get working directory")
		}
		r.workDir = wd
	}
	if r.homeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get user home directory")
		}
		r.homeDir = home
	}

	return r, nil
}

// MaxSize returns the size ceiling in bytes
func (r *Reader) MaxSize() int64 {
	return r.maxSize
}

// Resolve turns path into a clean absolute path. It does not touch the filesystem.
func (r *Reader) Resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	expanded := utils.ExpandHomePath(path, r.homeDir)
	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(r.workDir, expanded)
	}
	return filepath.Clean(expanded), nil
}

// ResolveFile resolves path and checks that it names a regular file within
// the size ceiling.
func (r *Reader) ResolveFile(path string) (string, error) {
	resolved, _, err := r.stat(path)
	return resolved, err
}

func (r *Reader) stat(path string) (string, os.FileInfo, error) {
	resolved, err := r.Resolve(path)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return resolved, nil, &Error{Path: path, Reason: ErrNotFound}
		}
		return resolved, nil, &Error{Path: path, Reason: err}
	}
	if !info.Mode().IsRegular() {
		return resolved, nil, &Error{Path: path, Reason: ErrNotRegular}
	}
	if info.Size() > r.maxSize {
		return resolved, nil, &Error{Path: path, Reason: errors.Wrapf(ErrTooLarge, "%d bytes, limit is %d", info.Size(), r.maxSize)}
	}

	return resolved, info, nil
}

// Read resolves and loads path. Text content is returned as is; binary
// content is base64 encoded.
func (r *Reader) Read(path string) (*File, error) {
	resolved, _, err := r.stat(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, &Error{Path: path, Reason: err}
	}
	defer f.Close()

	// the file may grow between stat and read
	data, err := io.ReadAll(io.LimitReader(f, r.maxSize+1))
	if err != nil {
		return nil, &Error{Path: path, Reason: err}
	}
	if int64(len(data)) > r.maxSize {
		return nil, &Error{Path: path, Reason: errors.Wrapf(ErrTooLarge, "limit is %d bytes", r.maxSize)}
	}

	file := &File{
		Path:     resolved,
		Name:     filepath.Base(resolved),
		Size:     int64(len(data)),
		MIMEType: http.DetectContentType(data),
		Binary:   utils.IsBinary(data),
	}
	if file.Binary {
		file.Content = base64.StdEncoding.EncodeToString(data)
	} else {
		file.Content = string(data)
	}

	return file, nil
}
