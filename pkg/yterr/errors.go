package yterr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure surfaced by a product operation.
type Kind string

const (
	KindValidation       Kind = "ValidationError"
	KindNotFound         Kind = "NotFound"
	KindNoResultsFound   Kind = "NoResultsFound"
	KindInvalidUsage     Kind = "InvalidUsage"
	KindExtractionFailed Kind = "ExtractionFailed"
	KindFormatNotFound   Kind = "FormatNotFound"
	KindNetworkDegraded  Kind = "NetworkDegraded"
	KindTranscodeError   Kind = "TranscodeError"
)

// Sentinels for errors.Is checks against a Kind.
var (
	ErrValidation       = &Error{Kind: KindValidation}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrNoResultsFound   = &Error{Kind: KindNoResultsFound}
	ErrInvalidUsage     = &Error{Kind: KindInvalidUsage}
	ErrExtractionFailed = &Error{Kind: KindExtractionFailed}
	ErrFormatNotFound   = &Error{Kind: KindFormatNotFound}
	ErrNetworkDegraded  = &Error{Kind: KindNetworkDegraded}
	ErrTranscode        = &Error{Kind: KindTranscodeError}
)

// FieldIssue is a single schema violation.
type FieldIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is the typed failure carried by the "error" lifecycle event.
type Error struct {
	Kind    Kind         `json:"kind"`
	Message string       `json:"message"`
	Hint    string       `json:"hint,omitempty"`
	Issues  []FieldIssue `json:"issues,omitempty"`
	Err     error        `json:"-"`
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Issues) > 0 {
		parts := make([]string, 0, len(e.Issues))
		for _, issue := range e.Issues {
			parts = append(parts, issue.Field+": "+issue.Message)
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Hint != "" {
		b.WriteString(". ")
		b.WriteString(e.Hint)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// MarshalJSON adds the wrapped cause as "cause" so transports keep the failure reason.
func (e *Error) MarshalJSON() ([]byte, error) {
	type plain Error
	out := struct {
		plain
		Cause string `json:"cause,omitempty"`
	}{plain: plain(*e)}
	if e.Err != nil {
		out.Cause = e.Err.Error()
	}
	return json.Marshal(out)
}

// Is matches any *Error with the same Kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithHint returns the error with a corrective hint attached.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Validation builds a validation error from field issues.
func Validation(issues []FieldIssue) *Error {
	return &Error{Kind: KindValidation, Message: "invalid options", Issues: issues}
}

// KindOf returns the kind of err, or "" when err is not a typed error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsValidation reports whether err is a schema violation rather than a runtime failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}
