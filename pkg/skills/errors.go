package skills

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures of the skill subsystem
type ErrorKind string

// Error kinds reported to the CLI layer
const (
	KindUnknown      ErrorKind = ""
	KindManifest     ErrorKind = "manifest_error"
	KindNotFound     ErrorKind = "skill_not_found"
	KindFetch        ErrorKind = "fetch_error"
	KindPersist      ErrorKind = "persist_error"
	KindBinding      ErrorKind = "binding_error"
	KindHandlerFault ErrorKind = "handler_fault"
)

// ErrSkillNotFound matches every NotFoundError via errors.Is
var ErrSkillNotFound = errors.New("skill not found")

// ManifestError reports one malformed or semantically invalid manifest field.
// An empty Field refers to the document as a whole.
type ManifestError struct {
	Field  string
	Reason string
}

func (e *ManifestError) Error() string {
	if e.Field == "" {
		return "invalid manifest: " + e.Reason
	}
	return fmt.Sprintf("invalid manifest field %q: %s", e.Field, e.Reason)
}

// NotFoundError is returned when no installed skill has the requested name
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("skill '%s' not found", e.Name)
}

// Is makes errors.Is(err, ErrSkillNotFound) true
func (e *NotFoundError) Is(target error) bool {
	return target == ErrSkillNotFound
}

// FetchError is a network or filesystem failure while fetching a source
type FetchError struct {
	Source     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d (check the source location and retry)", e.Source, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v (check the source location and retry)", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// PersistError is a filesystem write failure while installing or removing a skill
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist skill at %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// InvalidArgument is a token that could not be coerced to its parameter's kind
type InvalidArgument struct {
	Parameter string
	Token     string
	Reason    string
}

// BindingError lists every missing required parameter and every invalid token
type BindingError struct {
	Skill   string
	Missing []string
	Invalid []InvalidArgument
}

func (e *BindingError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required parameters: "+strings.Join(e.Missing, ", "))
	}
	for _, inv := range e.Invalid {
		parts = append(parts, fmt.Sprintf("invalid value %q for parameter %s: %s", inv.Token, inv.Parameter, inv.Reason))
	}
	return fmt.Sprintf("cannot bind arguments for skill '%s': %s", e.Skill, strings.Join(parts, "; "))
}

// HandlerFault is any failure inside handler execution, expected or not
type HandlerFault struct {
	Skill string
	Err   error
}

func (e *HandlerFault) Error() string {
	return fmt.Sprintf("skill '%s' handler failed: %v", e.Skill, e.Err)
}

func (e *HandlerFault) Unwrap() error {
	return e.Err
}

// KindOf classifies err by the first taxonomy error found in its chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var (
		manifestErr *ManifestError
		notFoundErr *NotFoundError
		fetchErr    *FetchError
		persistErr  *PersistError
		bindingErr  *BindingError
		handlerErr  *HandlerFault
	)

	switch {
	case errors.As(err, &handlerErr):
		return KindHandlerFault
	case errors.As(err, &bindingErr):
		return KindBinding
	case errors.As(err, &fetchErr):
		return KindFetch
	case errors.As(err, &persistErr):
		return KindPersist
	case errors.As(err, &manifestErr):
		return KindManifest
	case errors.As(err, &notFoundErr), errors.Is(err, ErrSkillNotFound):
		return KindNotFound
	default:
		return KindUnknown
	}
}
