package skills

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "manifest", err: &ManifestError{Field: "name", Reason: "bad"}, want: KindManifest},
		{name: "manifest in multierror", err: multierror.Append(nil, &ManifestError{Field: "a"}, &ManifestError{Field: "b"}), want: KindManifest},
		{name: "not found wrapped", err: errors.Wrap(&NotFoundError{Name: "x"}, "resolve"), want: KindNotFound},
		{name: "sentinel", err: errors.Wrap(ErrSkillNotFound, "lookup"), want: KindNotFound},
		{name: "fetch", err: &FetchError{Source: "u", StatusCode: 500}, want: KindFetch},
		{name: "persist", err: &PersistError{Path: "/x", Err: errors.New("disk full")}, want: KindPersist},
		{name: "binding", err: &BindingError{Skill: "s", Missing: []string{"a"}}, want: KindBinding},
		{name: "handler", err: &HandlerFault{Skill: "s", Err: &FetchError{Source: "u"}}, want: KindHandlerFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `invalid manifest field "name": is required`, (&ManifestError{Field: "name", Reason: "is required"}).Error())
	assert.Equal(t, "invalid manifest: not JSON", (&ManifestError{Reason: "not JSON"}).Error())
	assert.Equal(t, "skill 'x' not found", (&NotFoundError{Name: "x"}).Error())

	err := &BindingError{
		Skill:   "calc",
		Missing: []string{"a", "b"},
		Invalid: []InvalidArgument{{Parameter: "x", Token: "ten", Reason: "not a number"}},
	}
	assert.Equal(t, `cannot bind arguments for skill 'calc': missing required parameters: a, b; invalid value "ten" for parameter x: not a number`, err.Error())
}
