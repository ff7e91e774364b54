// Package skills implements the third-party skill subsystem: the manifest
// model, the on-disk registry of installed skills, the installer that fetches
// skills from URLs or local paths, and the binder that maps command-line
// tokens onto a skill's declared parameters.
//
// A skill is a directory under the skills root named after the skill and
// containing a skill.json manifest plus an optional handler artifact.
package skills

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ManifestFileName is the manifest document inside a skill directory
const ManifestFileName = "skill.json"

// maxNameLength bounds skill names since they become directory names
const maxNameLength = 64

var (
	skillNamePattern     = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	parameterNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// Kind is the declared type of a parameter
type Kind string

// Parameter kinds. The set is closed.
const (
	KindFile    Kind = "file"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
)

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case KindFile, KindString, KindNumber, KindBoolean:
		return true
	default:
		return false
	}
}

// ParameterSpec declares one input slot of a skill
type ParameterSpec struct {
	Name     string `json:"name" yaml:"name" jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_-]*$"`
	Kind     Kind   `json:"type" yaml:"type"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty" jsonschema:"description=Whether the parameter must be supplied"`
	// Default is nil when absent, otherwise a string, float64 or bool
	// matching Kind
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Manifest is the identity and contract of one skill
type Manifest struct {
	Name        string          `json:"name" yaml:"name" jsonschema:"pattern=^[A-Za-z0-9][A-Za-z0-9._-]*$,maxLength=64"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string          `json:"version,omitempty" yaml:"version,omitempty"`
	Author      string          `json:"author,omitempty" yaml:"author,omitempty"`
	Parameters  []ParameterSpec `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// Handler is a slash separated path relative to the skill directory
	Handler string `json:"handler,omitempty" yaml:"handler,omitempty" jsonschema:"description=Handler artifact path relative to the skill directory"`
}

// Parameter returns the parameter spec with the given name, or nil
func (m *Manifest) Parameter(name string) *ParameterSpec {
	for i := range m.Parameters {
		if m.Parameters[i].Name == name {
			return &m.Parameters[i]
		}
	}
	return nil
}

// HasHandler reports whether the skill declares custom logic
func (m *Manifest) HasHandler() bool {
	return m.Handler != ""
}

// Marshal serializes the manifest to an indented JSON document
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal manifest")
	}
	return append(data, '\n'), nil
}

// ValidateName checks that name is usable as a skill name and directory name
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("name is required")
	case len(name) > maxNameLength:
		return errors.Errorf("name must be at most %d characters", maxNameLength)
	case !skillNamePattern.MatchString(name):
		return errors.New("name may only contain letters, digits, '.', '_' and '-' and must start with a letter or digit")
	}
	return nil
}

// ParseManifest parses and validates a manifest document. It has no side
// effects. Every problem found is reported; each one is a *ManifestError.
func ParseManifest(data []byte) (*Manifest, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, &ManifestError{Reason: "document must be a JSON object"}
	}

	p := &manifestParser{}
	m := &Manifest{
		Name:        p.stringField(doc, "name", "name"),
		Description: p.stringField(doc, "description", "description"),
		Version:     p.stringField(doc, "version", "version"),
		Author:      p.stringField(doc, "author", "author"),
		Handler:     p.stringField(doc, "handler", "handler"),
	}

	if !p.failed("name") {
		if err := ValidateName(m.Name); err != nil {
			p.fail("name", err.Error())
		}
	}

	if m.Handler != "" {
		if err := validateHandlerPath(m.Handler); err != nil {
			p.fail("handler", err.Error())
		}
	}

	m.Parameters = p.parameters(doc["parameters"])

	if err := p.result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

type manifestParser struct {
	result *multierror.Error
}

func (p *manifestParser) fail(field, reason string) {
	if p.result == nil {
		p.result = &multierror.Error{ErrorFormat: formatManifestErrors}
	}
	p.result = multierror.Append(p.result, &ManifestError{Field: field, Reason: reason})
}

func (p *manifestParser) failed(field string) bool {
	if p.result == nil {
		return false
	}
	for _, err := range p.result.Errors {
		var manifestErr *ManifestError
		if errors.As(err, &manifestErr) && manifestErr.Field == field {
			return true
		}
	}
	return false
}

func (p *manifestParser) stringField(doc map[string]json.RawMessage, key, field string) string {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		p.fail(field, "must be a string")
		return ""
	}
	return s
}

func (p *manifestParser) boolField(doc map[string]json.RawMessage, key, field string) bool {
	raw, ok := doc[key]
	if !ok || isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		p.fail(field, "must be a boolean")
		return false
	}
	return b
}

func (p *manifestParser) parameters(raw json.RawMessage) []ParameterSpec {
	if len(raw) == 0 || isNull(raw) {
		return nil
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		p.fail("parameters", "must be an array of objects")
		return nil
	}
	if len(entries) == 0 {
		return nil
	}

	params := make([]ParameterSpec, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for i, entry := range entries {
		prefix := fmt.Sprintf("parameters[%d]", i)

		var doc map[string]json.RawMessage
		if err := json.Unmarshal(entry, &doc); err != nil || doc == nil {
			p.fail(prefix, "must be an object")
			continue
		}

		spec := ParameterSpec{
			Name:        p.stringField(doc, "name", prefix+".name"),
			Kind:        Kind(p.stringField(doc, "type", prefix+".type")),
			Required:    p.boolField(doc, "required", prefix+".required"),
			Description: p.stringField(doc, "description", prefix+".description"),
		}

		switch {
		case p.failed(prefix + ".name"):
		case spec.Name == "":
			p.fail(prefix+".name", "name is required")
		case !parameterNamePattern.MatchString(spec.Name):
			p.fail(prefix+".name", fmt.Sprintf("invalid parameter name %q", spec.Name))
		case seen[spec.Name]:
			p.fail(prefix+".name", fmt.Sprintf("duplicate parameter name %q", spec.Name))
		}
		seen[spec.Name] = true

		switch {
		case p.failed(prefix + ".type"):
		case spec.Kind == "":
			p.fail(prefix+".type", "type is required")
		case !spec.Kind.Valid():
			p.fail(prefix+".type", fmt.Sprintf("unrecognized type %q (expected file, string, number or boolean)", spec.Kind))
		}

		if rawDefault, ok := doc["default"]; ok && !isNull(rawDefault) {
			switch {
			case spec.Required:
				p.fail(prefix+".default", "a required parameter must not declare a default")
			case spec.Kind.Valid():
				value, err := decodeDefault(spec.Kind, rawDefault)
				if err != nil {
					p.fail(prefix+".default", err.Error())
				} else {
					spec.Default = value
				}
			}
		}

		params = append(params, spec)
	}

	return params
}

func decodeDefault(kind Kind, raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "invalid default value")
	}
	return normalizeValue(kind, v)
}

// normalizeValue checks that v satisfies kind and converts it to the
// canonical Go representation used in BoundArguments.
func normalizeValue(kind Kind, v any) (any, error) {
	switch kind {
	case KindNumber:
		switch n := v.(type) {
		case json.Number:
			return parseNumber(n.String())
		case float64:
			return n, nil
		case string:
			return parseNumber(n)
		}
	case KindBoolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return parseBool(b)
		}
	case KindString, KindFile:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, errors.Errorf("default %v does not satisfy type %s", v, kind)
}

func validateHandlerPath(handler string) error {
	if strings.Contains(handler, "\\") {
		return errors.New("handler must use forward slashes")
	}
	if path.IsAbs(handler) {
		return errors.New("handler must be a relative path")
	}
	cleaned := path.Clean(handler)
	if cleaned != handler {
		return errors.Errorf("handler path must be clean (did you mean %q?)", cleaned)
	}
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return errors.New("handler must stay inside the skill directory")
	}
	if cleaned == ManifestFileName {
		return errors.New("handler cannot be the manifest itself")
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func formatManifestErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
