package appointments

// Kind classifies operation failures the way callers need to react to
// them: NotFound and BadRequest are surfaced as-is and never retried;
// Conflict carries the evaluator's human-readable reason and callers may
// retry with different parameters. The core never retries on its own.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindBadRequest
	KindConflict
)

// Error is the typed failure returned by every orchestrator operation.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func notFound(msg string) *Error   { return &Error{Kind: KindNotFound, Message: msg} }
func badRequest(msg string) *Error { return &Error{Kind: KindBadRequest, Message: msg} }
func conflict(msg string) *Error   { return &Error{Kind: KindConflict, Message: msg} }

// KindOf returns the failure kind, or 0 when err is not an operation
// failure (internal errors, storage errors).
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return 0
}
