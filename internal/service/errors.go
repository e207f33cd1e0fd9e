package service

import "fmt"

// ErrorKind classifies analysis failures at the point they occur. Downstream
// code switches on the kind, never on error text.
type ErrorKind int

const (
	// KindTransient covers timeouts, rate limits and network failures that
	// the dispatcher recovers from by retrying or falling back.
	KindTransient ErrorKind = iota
	// KindModelUnavailable means every candidate model was exhausted.
	KindModelUnavailable
	// KindMalformedResponse means no JSON-like structure could be located
	// in the model output, even after repair.
	KindMalformedResponse
	// KindMissingField means a required field was absent from an otherwise
	// parseable response object.
	KindMissingField
	// KindValidation means no usable result could be constructed at all.
	KindValidation
)

// AnalysisError is the error type produced by the vision pipeline.
type AnalysisError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *AnalysisError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

func newAnalysisError(kind ErrorKind, msg string) *AnalysisError {
	return &AnalysisError{Kind: kind, Msg: msg}
}

func wrapAnalysisError(kind ErrorKind, msg string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Msg: msg, Err: err}
}

// ErrorKindOf extracts the kind from an analysis error, defaulting to
// KindValidation for foreign errors.
func ErrorKindOf(err error) ErrorKind {
	if ae, ok := err.(*AnalysisError); ok {
		return ae.Kind
	}
	return KindValidation
}

// UserMessageForKind maps an error kind to the short message the chat layer
// shows the user. Raw error text is never surfaced.
func UserMessageForKind(kind ErrorKind) string {
	switch kind {
	case KindTransient, KindModelUnavailable:
		return "The analysis service is busy right now. Please try again in a moment."
	case KindMalformedResponse:
		return "I couldn't read the analysis result. Please send the photo again."
	case KindMissingField, KindValidation:
		return "I couldn't identify the food in this photo. Try a clearer, well-lit photo taken from above."
	default:
		return "Something went wrong analyzing your meal. Please try again."
	}
}
