package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/llm-inline/llmi/pkg/attachment"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(doc))
	require.NoError(t, err)
	return m
}

func newTestBinder(t *testing.T, workDir string) *Binder {
	t.Helper()
	reader, err := attachment.NewReader(attachment.WithWorkingDir(workDir), attachment.WithMaxSize(1024))
	require.NoError(t, err)
	return NewBinder(reader)
}

func TestBindEcho(t *testing.T) {
	m := mustParse(t, `{"name":"echo","parameters":[{"name":"msg","type":"string","required":true}]}`)

	args, err := NewBinder(nil).Bind(m, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"msg": "hello"}, args.Map())
	assert.Empty(t, args.Trailing)
	assert.Equal(t, []string{"hello"}, args.Raw)
	assert.Equal(t, SourcePositional, args.Values[0].Source)
}

func TestBindTranslate(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "report.txt"), []byte("quarterly report"), 0o644))
	m := mustParse(t, `{"name":"translate","parameters":[{"name":"file","type":"file","required":true},{"name":"target_lang","type":"string","required":false,"default":"en"}]}`)

	binder := newTestBinder(t, workDir)

	t.Run("default applied", func(t *testing.T) {
		args, err := binder.Bind(m, []string{"report.txt"})
		require.NoError(t, err)

		file, ok := args.Get("file")
		require.True(t, ok)
		assert.Equal(t, filepath.Join(workDir, "report.txt"), file)

		lang, ok := args.Get("target_lang")
		require.True(t, ok)
		assert.Equal(t, "en", lang)
		assert.Equal(t, SourceDefault, args.Values[1].Source)
	})

	t.Run("named overrides positional order", func(t *testing.T) {
		args, err := binder.Bind(m, []string{"--target_lang=fr", "report.txt", "de", "es"})
		require.NoError(t, err)

		lang, _ := args.Get("target_lang")
		assert.Equal(t, "fr", lang)
		assert.Equal(t, SourceNamed, args.Values[1].Source)
		assert.Equal(t, []string{"de", "es"}, args.Trailing)
	})

	t.Run("trailing tokens preserved", func(t *testing.T) {
		args, err := binder.Bind(m, []string{"report.txt", "fr", "de", "es"})
		require.NoError(t, err)
		lang, _ := args.Get("target_lang")
		assert.Equal(t, "fr", lang)
		assert.Equal(t, []string{"de", "es"}, args.Trailing)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := binder.Bind(m, []string{"absent.txt"})
		var bindErr *BindingError
		require.True(t, errors.As(err, &bindErr))
		require.Len(t, bindErr.Invalid, 1)
		assert.Equal(t, "file", bindErr.Invalid[0].Parameter)
		assert.Equal(t, "absent.txt", bindErr.Invalid[0].Token)
	})
}

func TestBindReportsAllMissing(t *testing.T) {
	m := mustParse(t, `{"name":"multi","parameters":[
		{"name":"a","type":"string","required":true},
		{"name":"b","type":"number","required":true},
		{"name":"c","type":"boolean","required":true},
		{"name":"d","type":"string"}
	]}`)

	_, err := NewBinder(nil).Bind(m, nil)
	require.Error(t, err)
	assert.Equal(t, KindBinding, KindOf(err))

	var bindErr *BindingError
	require.True(t, errors.As(err, &bindErr))
	assert.Equal(t, []string{"a", "b", "c"}, bindErr.Missing)
	assert.Contains(t, err.Error(), "a, b, c")
}

func TestBindCoercion(t *testing.T) {
	m := mustParse(t, `{"name":"calc","parameters":[
		{"name":"x","type":"number","required":true},
		{"name":"exact","type":"boolean"}
	]}`)
	binder := NewBinder(nil)

	tests := []struct {
		name  string
		args  []string
		x     any
		exact any
	}{
		{name: "integer", args: []string{"42"}, x: 42.0},
		{name: "decimal and true", args: []string{"3.5", "true"}, x: 3.5, exact: true},
		{name: "negative and no", args: []string{"-1", "No"}, x: -1.0, exact: false},
		{name: "one", args: []string{"0", "1"}, x: 0.0, exact: true},
		{name: "off", args: []string{"1e3", "off"}, x: 1000.0, exact: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := binder.Bind(m, tt.args)
			require.NoError(t, err)
			x, _ := args.Get("x")
			assert.Equal(t, tt.x, x)
			exact, ok := args.Get("exact")
			if tt.exact == nil {
				assert.False(t, ok)
			} else {
				assert.Equal(t, tt.exact, exact)
			}
		})
	}

	t.Run("invalid tokens reported together", func(t *testing.T) {
		_, err := binder.Bind(m, []string{"ten", "maybe"})
		var bindErr *BindingError
		require.True(t, errors.As(err, &bindErr))
		require.Len(t, bindErr.Invalid, 2)
		assert.Equal(t, "x", bindErr.Invalid[0].Parameter)
		assert.Equal(t, "ten", bindErr.Invalid[0].Token)
		assert.Equal(t, "exact", bindErr.Invalid[1].Parameter)
		assert.Equal(t, "maybe", bindErr.Invalid[1].Token)
	})

	t.Run("infinity rejected", func(t *testing.T) {
		_, err := binder.Bind(m, []string{"Inf"})
		assert.Error(t, err)
	})
}

func TestBindDoubleDash(t *testing.T) {
	m := mustParse(t, `{"name":"echo","parameters":[{"name":"msg","type":"string","required":true}]}`)

	args, err := NewBinder(nil).Bind(m, []string{"--", "--msg=literal"})
	require.NoError(t, err)
	msg, _ := args.Get("msg")
	assert.Equal(t, "--msg=literal", msg)

	args, err = NewBinder(nil).Bind(m, []string{"--unknown=1", "--msg=hi"})
	require.NoError(t, err)
	msg, _ = args.Get("msg")
	assert.Equal(t, "hi", msg)
	assert.Equal(t, []string{"--unknown=1"}, args.Trailing)
}
