package convert

import (
	"errors"
	"fmt"
)

// Outcome is the recorded result of one conversion attempt.
type Outcome string

const (
	// OutcomeSuccess means the query converted and regenerated cleanly.
	OutcomeSuccess Outcome = "success"

	// Entity positions (subject, object).
	OutcomeUnknownEntity       Outcome = "UnknownEntity"
	OutcomeNoEntityMapping     Outcome = "NoEntityMapping"
	OutcomeUnsupportedNodeType Outcome = "UnsupportedNodeType"

	// Relation positions (predicate).
	OutcomeUnknownProperty         Outcome = "UnknownProperty"
	OutcomeNoPropertyMapping       Outcome = "NoPropertyMapping"
	OutcomeUnsupportedPropertyType Outcome = "UnsupportedPropertyType"

	// OutcomeUnsupported means the WHERE clause holds something other than
	// basic graph patterns.
	OutcomeUnsupported Outcome = "Unsupported"

	// OutcomeUnknown covers parse and generate failures and anything else
	// unanticipated, including recovered panics.
	OutcomeUnknown Outcome = "Unknown"
)

// Outcomes lists every outcome in report order.
var Outcomes = []Outcome{
	OutcomeSuccess,
	OutcomeUnknownEntity,
	OutcomeNoEntityMapping,
	OutcomeUnsupportedNodeType,
	OutcomeUnknownProperty,
	OutcomeNoPropertyMapping,
	OutcomeUnsupportedPropertyType,
	OutcomeUnsupported,
	OutcomeUnknown,
}

// Error is a failed conversion. Code is never OutcomeSuccess.
type Error struct {
	// Code identifies the failure category.
	Code Outcome

	// Term is the offending IRI or term, or the clause kind for Unsupported.
	Term string

	// Message is a human-readable description.
	Message string

	// Err is the underlying parse or generate error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Term != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Term)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// OutcomeOf maps an error to its outcome: nil is success, a *Error reports
// its own code, and anything else is Unknown.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return OutcomeUnknown
}

// IsMappingGap returns true if the error is a missing table entry.
func IsMappingGap(err error) bool {
	code := OutcomeOf(err)
	return code == OutcomeNoEntityMapping || code == OutcomeNoPropertyMapping
}

// IsUnsupported returns true if the error rejects a query shape or term kind
// rather than an identifier.
func IsUnsupported(err error) bool {
	switch OutcomeOf(err) {
	case OutcomeUnsupported, OutcomeUnsupportedNodeType, OutcomeUnsupportedPropertyType:
		return true
	}
	return false
}

func newUnknownError(stage string, err error) *Error {
	return &Error{
		Code:    OutcomeUnknown,
		Message: stage + " failed",
		Err:     err,
	}
}
