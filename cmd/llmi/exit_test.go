package main

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/llm-inline/llmi/pkg/skills"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"generic", errors.New("boom"), exitGeneric},
		{"usage", newUsageError("bad flag %s", "-x"), exitUsage},
		{"binding", &skills.BindingError{Skill: "s", Missing: []string{"p"}}, exitUsage},
		{"not found", &skills.NotFoundError{Name: "s"}, exitNotFound},
		{"wrapped not found", errors.Wrap(&skills.NotFoundError{Name: "s"}, "upgrade"), exitNotFound},
		{"handler", &skills.HandlerFault{Skill: "s", Err: errors.New("exit status 1")}, exitHandler},
		{"manifest", &skills.ManifestError{Field: "name", Reason: "required"}, exitGeneric},
		{"fetch", &skills.FetchError{Source: "x", StatusCode: 404}, exitGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
