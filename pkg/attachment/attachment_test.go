package attachment

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, opts ...Option) (*Reader, string, string) {
	t.Helper()
	workDir := t.TempDir()
	homeDir := t.TempDir()

	opts = append([]Option{WithWorkingDir(workDir), WithHomeDir(homeDir)}, opts...)
	r, err := NewReader(opts...)
	require.NoError(t, err)
	return r, workDir, homeDir
}

func TestNewReader_Defaults(t *testing.T) {
	r, err := NewReader()
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSize, r.MaxSize())
	assert.NotEmpty(t, r.workDir)
	assert.NotEmpty(t, r.homeDir)
}

func TestReader_Resolve(t *testing.T) {
	r, workDir, homeDir := newTestReader(t)

	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{name: "relative", path: "report.txt", expected: filepath.Join(workDir, "report.txt")},
		{name: "relative with dots", path: "./a/../report.txt", expected: filepath.Join(workDir, "report.txt")},
		{name: "home relative", path: "~/notes/todo.md", expected: filepath.Join(homeDir, "notes", "todo.md")},
		{name: "absolute", path: "/etc/hosts", expected: "/etc/hosts"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resolved, err := r.Resolve(tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, resolved)
		})
	}

	_, err := r.Resolve("")
	assert.Error(t, err)
}

func TestReader_ResolveFile(t *testing.T) {
	r, workDir, _ := newTestReader(t, WithMaxSize(8))

	require.NoError(t, os.WriteFile(filepath.Join(workDir, "small.txt"), []byte("tiny"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "big.txt"), []byte("much too large"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(workDir, "dir"), 0o755))

	resolved, err := r.ResolveFile("small.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workDir, "small.txt"), resolved)

	_, err = r.ResolveFile("big.txt")
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = r.ResolveFile("dir")
	assert.True(t, errors.Is(err, ErrNotRegular))

	_, err = r.ResolveFile("missing.txt")
	assert.True(t, errors.Is(err, ErrNotFound))

	var attachErr *Error
	require.True(t, errors.As(err, &attachErr))
	assert.Equal(t, "missing.txt", attachErr.Path)
}

func TestReader_ReadText(t *testing.T) {
	r, workDir, _ := newTestReader(t)
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "hello.txt"), []byte("hello, world\n"), 0o644))

	file, err := r.Read("hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", file.Name)
	assert.Equal(t, filepath.Join(workDir, "hello.txt"), file.Path)
	assert.False(t, file.Binary)
	assert.Equal(t, "utf-8", file.Encoding())
	assert.Equal(t, "hello, world\n", file.Content)
	assert.Equal(t, int64(13), file.Size)
	assert.Contains(t, file.MIMEType, "text/plain")
}

func TestReader_ReadBinary(t *testing.T) {
	r, _, homeDir := newTestReader(t)
	data := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0}
	require.NoError(t, os.WriteFile(filepath.Join(homeDir, "image.png"), data, 0o644))

	file, err := r.Read("~/image.png")
	require.NoError(t, err)
	assert.True(t, file.Binary)
	assert.Equal(t, "base64", file.Encoding())
	assert.Equal(t, base64.StdEncoding.EncodeToString(data), file.Content)
	assert.Equal(t, "image/png", file.MIMEType)
}

func TestReader_ReadTooLarge(t *testing.T) {
	r, workDir, _ := newTestReader(t, WithMaxSize(4))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "big.txt"), []byte("12345"), 0o644))

	_, err := r.Read("big.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
}
