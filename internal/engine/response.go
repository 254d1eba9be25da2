package engine

import (
	"errors"

	"github.com/danielpatrickdp/session-reasoner/internal/graph"
)

// PublicError is the failure envelope shown to end users. It never carries
// internal detail.
type PublicError struct {
	Message string `json:"message"`
	Retry   string `json:"retry"`
}

const unableToProcess = "Unable to process request at this time"

// Public maps any engine error onto the user-facing envelope.
func Public(err error) PublicError {
	pe := PublicError{Message: unableToProcess, Retry: "Please try again in a moment."}
	var (
		efe *graph.ExportFailureError
		ise *InvalidSessionError
	)
	switch {
	case errors.As(err, &efe):
		pe.Retry = "Your message was not saved. Please send it again."
	case errors.As(err, &ise):
		pe.Retry = "Please start a new session and try again."
	}
	return pe
}
