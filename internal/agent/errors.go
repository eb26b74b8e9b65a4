package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ISL270/multi-agent-ai-realtor/internal/extractor"
)

var (
	// ErrRoutingAmbiguity means no worker matched the message. It is
	// answered with a clarification, never surfaced as a failure.
	ErrRoutingAmbiguity = errors.New("no worker matches the message")

	// ErrLoopBoundExceeded means the turn hit the delegation cap.
	ErrLoopBoundExceeded = errors.New("delegation limit exceeded for this turn")
)

// ValidationError carries field-level violations of an extracted or
// requested object.
type ValidationError struct {
	Object     string
	Violations []extractor.Violation
	Err        error
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	msg := "invalid " + e.Object
	if len(parts) > 0 {
		msg += ": " + strings.Join(parts, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CollaboratorError is a failure of an external system: database, calendar
// or model.
type CollaboratorError struct {
	System    string
	Operation string
	Err       error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.System, e.Operation, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}
