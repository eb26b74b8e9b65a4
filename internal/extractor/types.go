package extractor

import "errors"

var (
	// ErrExtraction means the model could not produce a usable object: the
	// call failed, or the reply was unparseable even after the retry.
	ErrExtraction = errors.New("extraction failed")

	// ErrInvalidExisting means the caller's partial object does not pass the
	// schema's field checks.
	ErrInvalidExisting = errors.New("existing partial object is invalid")
)

// Status reports whether the merged object satisfies the schema.
type Status string

const (
	StatusComplete Status = "complete"
	StatusPartial  Status = "partial"
)

// Request is one extraction call.
type Request[T any] struct {
	// Text is the latest user message.
	Text string
	// Existing is the partial object accumulated so far. Nil means none.
	Existing *T
	// Context is extra background for the model, e.g. today's date.
	Context string
}

// Outcome is the result of an extraction. Value is always a superset of
// Existing unless the message explicitly cleared a field.
type Outcome[T any] struct {
	Status Status
	// Value is Existing merged with the newly extracted fields.
	Value T
	// Candidate holds only what this message produced.
	Candidate T
	// Fields names the fields set in Candidate.
	Fields []string
	// Cleared lists fields the message explicitly removed.
	Cleared []string
	// Violations that survived the corrective retry. Their values were
	// dropped.
	Violations []Violation
	// LowConfidence lists fields the model would not commit to. They are
	// left unset.
	LowConfidence []string
	// Calls is the number of model calls made (1 or 2).
	Calls int
}

// Changed reports whether the message set or cleared anything.
func (o *Outcome[T]) Changed() bool {
	return len(o.Fields) > 0 || len(o.Cleared) > 0
}
