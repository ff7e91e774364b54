package ask

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Cache holds the last suggested command for shell key bindings
type Cache struct {
	path string
}

// NewCache creates a cache backed by path
func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// DefaultCachePath returns ~/.cache/llmi/last_command
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}
	return filepath.Join(home, ".cache", "llmi", "last_command"), nil
}

// Path returns the cache file location
func (c *Cache) Path() string {
	return c.path
}

// Write replaces the cached command
func (c *Cache) Write(command string) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}
	if err := lockedfile.Write(c.path, strings.NewReader(command+"\n"), 0o644); err != nil {
		return errors.Wrap(err, "failed to write command cache")
	}
	return nil
}

// Read returns the cached command, or "" when nothing has been cached
func (c *Cache) Read() (string, error) {
	data, err := lockedfile.Read(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrap(err, "failed to read command cache")
	}
	return strings.TrimRight(string(data), "\n"), nil
}
