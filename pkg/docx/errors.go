package docx

import (
	"errors"
	"fmt"
	"strings"
)

// TemplateError reports anchors the template does not provide. It is raised
// before any mutation happens.
type TemplateError struct {
	Part       string
	Missing    []string
	Duplicates []string
}

func (e *TemplateError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing ids: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("duplicate ids: %s", strings.Join(e.Duplicates, ", ")))
	}
	if len(parts) == 0 {
		parts = append(parts, "inconsistent anchors")
	}
	if e.Part != "" {
		return fmt.Sprintf("template error in %s: %s", e.Part, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("template error: %s", strings.Join(parts, "; "))
}

// StructureError represents a growth target that does not have the shape
// the engine expects (wrong row count, anchor without parent, ...).
type StructureError struct {
	Anchor  string
	Message string
}

func (e *StructureError) Error() string {
	if e.Anchor != "" {
		return fmt.Sprintf("structure error at '%s': %s", e.Anchor, e.Message)
	}
	return fmt.Sprintf("structure error: %s", e.Message)
}

// NewStructureError creates a new structure error
func NewStructureError(anchor, message string) error {
	return &StructureError{Anchor: anchor, Message: message}
}

// ReferenceError represents a relationship id that cannot be used.
type ReferenceError struct {
	ID      string
	Message string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference error for '%s': %s", e.ID, e.Message)
}

// DocumentError represents an error during document operations
type DocumentError struct {
	Operation string
	Path      string
	Cause     error
}

func (e *DocumentError) Error() string {
	if e.Path != "" && e.Cause != nil {
		return fmt.Sprintf("document error during %s of '%s': %v", e.Operation, e.Path, e.Cause)
	} else if e.Path != "" {
		return fmt.Sprintf("document error during %s of '%s'", e.Operation, e.Path)
	} else if e.Cause != nil {
		return fmt.Sprintf("document error during %s: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("document error during %s", e.Operation)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}

// NewDocumentError creates a new document error
func NewDocumentError(operation, path string, cause error) error {
	return &DocumentError{
		Operation: operation,
		Path:      path,
		Cause:     cause,
	}
}

// MultiError collects multiple errors, such as every problem found in a
// report manifest.
type MultiError struct {
	errors []error
}

// NewMultiError creates a new multi-error collector
func NewMultiError() *MultiError {
	return &MultiError{
		errors: make([]error, 0),
	}
}

// Add adds an error to the collection (ignores nil errors)
func (m *MultiError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

// Len returns the number of errors
func (m *MultiError) Len() int {
	return len(m.errors)
}

// Err returns the multi-error or nil if empty
func (m *MultiError) Err() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func (m *MultiError) Error() string {
	if len(m.errors) == 0 {
		return "no errors"
	}
	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("%d errors occurred:", len(m.errors)))
	for i, err := range m.errors {
		parts = append(parts, fmt.Sprintf("  [%d] %v", i+1, err))
	}
	return strings.Join(parts, "\n")
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.errors
}

// IsTemplateError checks if an error is a template error
func IsTemplateError(err error) bool {
	var target *TemplateError
	return errors.As(err, &target)
}

// IsStructureError checks if an error is a structure error
func IsStructureError(err error) bool {
	var target *StructureError
	return errors.As(err, &target)
}

// IsReferenceError checks if an error is a reference error
func IsReferenceError(err error) bool {
	var target *ReferenceError
	return errors.As(err, &target)
}

// IsDocumentError checks if an error is a document error
func IsDocumentError(err error) bool {
	var target *DocumentError
	return errors.As(err, &target)
}
