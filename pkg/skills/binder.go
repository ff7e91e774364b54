package skills

import (
	"strings"
)

// Source records where a bound value came from
type Source string

// Binding sources
const (
	SourcePositional Source = "positional"
	SourceNamed      Source = "named"
	SourceDefault    Source = "default"
)

// PathResolver turns a file token into an absolute path of a readable
// regular file, applying the host's attachment rules.
type PathResolver interface {
	ResolveFile(path string) (string, error)
}

// BoundValue is one parameter after coercion
type BoundValue struct {
	Name   string `json:"name"`
	Kind   Kind   `json:"type"`
	Value  any    `json:"value"`
	Source Source `json:"source"`
}

// BoundArguments is the result of binding tokens against a manifest. It
// lives for a single execution.
type BoundArguments struct {
	Values   []BoundValue `json:"values"`
	Trailing []string     `json:"trailing"`
	Raw      []string     `json:"raw"`
}

// Get returns the value bound to name
func (b *BoundArguments) Get(name string) (any, bool) {
	for _, v := range b.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return nil, false
}

// Map returns the bound values keyed by parameter name
func (b *BoundArguments) Map() map[string]any {
	out := make(map[string]any, len(b.Values))
	for _, v := range b.Values {
		out[v.Name] = v.Value
	}
	return out
}

// Binder maps raw command-line tokens onto declared parameters
type Binder struct {
	resolver PathResolver
}

// NewBinder creates a binder that resolves file parameters with resolver
func NewBinder(resolver PathResolver) *Binder {
	return &Binder{resolver: resolver}
}

// Bind assigns args to the manifest's parameters. Tokens of the form
// --<param>=<value> naming a declared parameter bind by name until a bare
// "--" is seen; everything else fills the remaining parameters in declared
// order. Leftover tokens are kept as trailing arguments. Every missing
// required parameter and every invalid token is reported in one
// BindingError.
func (b *Binder) Bind(m *Manifest, args []string) (*BoundArguments, error) {
	named := make(map[string]string)
	var positional []string

	namedParsing := true
	for _, token := range args {
		if namedParsing {
			if token == "--" {
				namedParsing = false
				continue
			}
			if name, value, ok := splitNamedToken(token); ok && m.Parameter(name) != nil {
				named[name] = value
				continue
			}
		}
		positional = append(positional, token)
	}

	result := &BoundArguments{
		Raw:      append([]string{}, args...),
		Trailing: []string{},
	}
	bindErr := &BindingError{Skill: m.Name}

	next := 0
	for _, spec := range m.Parameters {
		var (
			token  string
			source Source
		)
		if value, ok := named[spec.Name]; ok {
			token, source = value, SourceNamed
		} else if next < len(positional) {
			token, source = positional[next], SourcePositional
			next++
		}

		if source == "" {
			if spec.Default != nil {
				value, err := b.bindDefault(spec)
				if err != nil {
					bindErr.Invalid = append(bindErr.Invalid, InvalidArgument{
						Parameter: spec.Name,
						Token:     defaultToken(spec.Default),
						Reason:    err.Error(),
					})
					continue
				}
				result.Values = append(result.Values, BoundValue{Name: spec.Name, Kind: spec.Kind, Value: value, Source: SourceDefault})
				continue
			}
			if spec.Required {
				bindErr.Missing = append(bindErr.Missing, spec.Name)
			}
			continue
		}

		value, err := b.coerce(spec.Kind, token)
		if err != nil {
			bindErr.Invalid = append(bindErr.Invalid, InvalidArgument{Parameter: spec.Name, Token: token, Reason: err.Error()})
			continue
		}
		result.Values = append(result.Values, BoundValue{Name: spec.Name, Kind: spec.Kind, Value: value, Source: source})
	}

	if next < len(positional) {
		result.Trailing = append(result.Trailing, positional[next:]...)
	}

	if len(bindErr.Missing) > 0 || len(bindErr.Invalid) > 0 {
		return nil, bindErr
	}
	return result, nil
}

func (b *Binder) coerce(kind Kind, token string) (any, error) {
	switch kind {
	case KindNumber:
		return parseNumber(token)
	case KindBoolean:
		return parseBool(token)
	case KindFile:
		return b.resolveFile(token)
	default:
		return token, nil
	}
}

func (b *Binder) bindDefault(spec ParameterSpec) (any, error) {
	if spec.Kind != KindFile {
		return normalizeValue(spec.Kind, spec.Default)
	}
	path, ok := spec.Default.(string)
	if !ok {
		return nil, &ManifestError{Field: "parameters." + spec.Name + ".default", Reason: "file default must be a path"}
	}
	return b.resolveFile(path)
}

func (b *Binder) resolveFile(token string) (string, error) {
	if b.resolver == nil {
		return token, nil
	}
	return b.resolver.ResolveFile(token)
}

func splitNamedToken(token string) (string, string, bool) {
	if !strings.HasPrefix(token, "--") {
		return "", "", false
	}
	return strings.Cut(token[2:], "=")
}

func defaultToken(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
