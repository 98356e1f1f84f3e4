// Package errs defines the closed error-kind taxonomy of SPEC_FULL §7.
// Every kind maps to a fixed recovery policy enforced by the orchestrator
// (fatal at startup, or absorbed into a Direct reply at query time); the
// taxonomy itself is plain typed errors usable with errors.As/errors.Is,
// not a third-party error-modeling library — the pack has no precedent
// for one and the fixed, closed set here needs nothing beyond that.
package errs

import "fmt"

// Kind is one of the closed set of error kinds named in §7.
type Kind string

const (
	ConfigInvalid      Kind = "ConfigInvalid"
	CatalogUnavailable Kind = "CatalogUnavailable"
	VectorUnavailable  Kind = "VectorUnavailable"
	LLMUnavailable     Kind = "LLMUnavailable"
	LLMTimeout         Kind = "LLMTimeout"
	LLMEmpty           Kind = "LLMEmpty"
	ParseFailure       Kind = "ParseFailure"
	TableShapeError    Kind = "TableShapeError"
	DataUnavailable    Kind = "DataUnavailable"
	SessionNotFound    Kind = "SessionNotFound"
	SessionExpired     Kind = "SessionExpired"
	InvalidAnswer      Kind = "InvalidAnswer"
	UnknownSeries      Kind = "UnknownSeries"
)

// Error wraps a Kind with a human-readable message. The transport layer
// surfaces Kind/Message directly as the Error{kind, message} reply (§6);
// it never sees a raw Go error for this taxonomy.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}
