package skills

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	data := []byte(`{
		"name": "translate",
		"description": "Translate a file",
		"version": "1.2.0",
		"author": "someone",
		"handler": "bin/main.py",
		"homepage": "https://example.com",
		"parameters": [
			{"name": "file", "type": "file", "required": true},
			{"name": "target_lang", "type": "string", "default": "en"},
			{"name": "ratio", "type": "number", "default": "0.5"},
			{"name": "verbose", "type": "boolean", "default": "yes"}
		]
	}`)

	m, err := ParseManifest(data)
	require.NoError(t, err)

	assert.Equal(t, "translate", m.Name)
	assert.Equal(t, "Translate a file", m.Description)
	assert.Equal(t, "1.2.0", m.Version)
	assert.Equal(t, "someone", m.Author)
	assert.Equal(t, "bin/main.py", m.Handler)
	assert.True(t, m.HasHandler())
	require.Len(t, m.Parameters, 4)

	assert.Equal(t, KindFile, m.Parameters[0].Kind)
	assert.True(t, m.Parameters[0].Required)
	assert.Nil(t, m.Parameters[0].Default)
	assert.Equal(t, "en", m.Parameters[1].Default)
	assert.Equal(t, 0.5, m.Parameters[2].Default)
	assert.Equal(t, true, m.Parameters[3].Default)

	require.NotNil(t, m.Parameter("target_lang"))
	assert.Nil(t, m.Parameter("missing"))
}

func TestParseManifestMinimal(t *testing.T) {
	m, err := ParseManifest([]byte(`{"name":"echo","parameters":[]}`))
	require.NoError(t, err)
	assert.Equal(t, "echo", m.Name)
	assert.Nil(t, m.Parameters)
	assert.False(t, m.HasHandler())
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		fields []string
	}{
		{
			name:   "not an object",
			doc:    `[1, 2]`,
			fields: []string{""},
		},
		{
			name:   "invalid json",
			doc:    `{"name":`,
			fields: []string{""},
		},
		{
			name:   "missing name",
			doc:    `{"description":"x"}`,
			fields: []string{"name"},
		},
		{
			name:   "name with slash",
			doc:    `{"name":"../evil"}`,
			fields: []string{"name"},
		},
		{
			name:   "name wrong type",
			doc:    `{"name":42}`,
			fields: []string{"name"},
		},
		{
			name:   "unknown kind",
			doc:    `{"name":"x","parameters":[{"name":"a","type":"date"}]}`,
			fields: []string{"parameters[0].type"},
		},
		{
			name:   "required with default",
			doc:    `{"name":"x","parameters":[{"name":"a","type":"string","required":true,"default":"b"}]}`,
			fields: []string{"parameters[0].default"},
		},
		{
			name:   "default of wrong kind",
			doc:    `{"name":"x","parameters":[{"name":"a","type":"number","default":"many"}]}`,
			fields: []string{"parameters[0].default"},
		},
		{
			name:   "duplicate parameter",
			doc:    `{"name":"x","parameters":[{"name":"a","type":"string"},{"name":"a","type":"number"}]}`,
			fields: []string{"parameters[1].name"},
		},
		{
			name:   "escaping handler",
			doc:    `{"name":"x","handler":"../run.sh"}`,
			fields: []string{"handler"},
		},
		{
			name:   "absolute handler",
			doc:    `{"name":"x","handler":"/bin/sh"}`,
			fields: []string{"handler"},
		},
		{
			name:   "several problems at once",
			doc:    `{"parameters":[{"name":"a","type":"date"},{"type":"string"}]}`,
			fields: []string{"name", "parameters[0].type", "parameters[1].name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest([]byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, m)
			assert.Equal(t, KindManifest, KindOf(err))

			var manifestErr *ManifestError
			require.True(t, errors.As(err, &manifestErr))
			for _, field := range tt.fields {
				assert.Contains(t, manifestFields(err), field)
			}
		})
	}
}

func manifestFields(err error) []string {
	var fields []string
	type multi interface{ WrappedErrors() []error }
	errs := []error{err}
	if m, ok := err.(multi); ok {
		errs = m.WrappedErrors()
	}
	for _, e := range errs {
		var manifestErr *ManifestError
		if errors.As(e, &manifestErr) {
			fields = append(fields, manifestErr.Field)
		}
	}
	return fields
}

func TestManifestRoundTrip(t *testing.T) {
	docs := []string{
		`{"name":"echo","parameters":[{"name":"msg","type":"string","required":true}]}`,
		`{"name":"translate","version":"0.1.0","handler":"main.py","parameters":[{"name":"file","type":"file","required":true},{"name":"target_lang","type":"string","default":"en"}]}`,
		`{"name":"calc","parameters":[{"name":"x","type":"number","default":3},{"name":"exact","type":"boolean","default":false},{"name":"label","type":"string","default":""}]}`,
		`{"name":"bare"}`,
	}

	for _, doc := range docs {
		first, err := ParseManifest([]byte(doc))
		require.NoError(t, err, doc)

		data, err := first.Marshal()
		require.NoError(t, err)

		second, err := ParseManifest(data)
		require.NoError(t, err, string(data))
		assert.Equal(t, first, second)
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("translate"))
	assert.NoError(t, ValidateName("img2txt.v2"))
	assert.NoError(t, ValidateName("My_Skill-1"))

	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName(".hidden"))
	assert.Error(t, ValidateName("a/b"))
	assert.Error(t, ValidateName("has space"))
	assert.Error(t, ValidateName(string(make([]byte, 65))))
}

func TestManifestSchema(t *testing.T) {
	schema := ManifestSchema()
	require.NotNil(t, schema)

	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "object", doc["type"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"name", "description", "version", "author", "parameters", "handler"} {
		assert.Contains(t, props, key)
	}
	assert.Contains(t, string(data), `"boolean"`)
	assert.Contains(t, doc["required"], "name")
}
