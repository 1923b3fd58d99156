package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldError names one field that failed validation and why.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every failed field so callers can surface them
// all at once instead of fixing one and resubmitting.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// Error renders "validation failed: field: message" pairs joined by "; ".
// Handlers pass this string through to API clients, so the format is part of
// the response contract.
func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString("validation failed: ")
	for i, fe := range e.Errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Field)
		b.WriteString(": ")
		b.WriteString(fe.Message)
	}
	return b.String()
}

// ValidateBan checks a ban entry before it is stored or forwarded.
func ValidateBan(b *BannedVersion) error {
	var ve ValidationError

	// 214 runes is npm's package name limit, the longest of the supported
	// ecosystems.
	switch pkg := strings.TrimSpace(b.Package); {
	case pkg == "":
		ve.add("package", "is required")
	case len([]rune(pkg)) > 214:
		ve.add("package", "must be 214 characters or fewer")
	}

	// Ecosystem and range stay optional: empty matches every ecosystem or
	// every version. Constraint syntax is ecosystem-specific and checked
	// upstream.

	if !b.Action.IsValid() {
		ve.add("action", fmt.Sprintf("invalid value %q", b.Action))
	}

	if len(ve.Errors) == 0 {
		return nil
	}
	return &ve
}

// ValidateSavedView checks a saved view before it is persisted.
func ValidateSavedView(v *SavedView) error {
	var ve ValidationError

	switch name := strings.TrimSpace(v.Name); {
	case name == "":
		ve.add("name", "is required")
	case len([]rune(name)) > 100:
		ve.add("name", "must be 100 characters or fewer")
	}

	if strings.TrimSpace(v.Scope) == "" {
		ve.add("scope", "is required")
	}

	// Filters and layout are opaque to the gateway but must at least parse,
	// or the dashboard chokes restoring the view.
	if len(v.Filters) > 0 && !json.Valid(v.Filters) {
		ve.add("filters", "contains invalid JSON")
	}
	if len(v.Layout) > 0 && !json.Valid(v.Layout) {
		ve.add("layout", "contains invalid JSON")
	}

	if len(ve.Errors) == 0 {
		return nil
	}
	return &ve
}
