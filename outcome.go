package authflow

// OutcomeStatus tags an [Outcome].
type OutcomeStatus uint8

const (
	// Succeeded carries a value.
	Succeeded OutcomeStatus = iota + 1
	// Failed carries a *Failure.
	Failed
	// Skipped means the call was a no-op and nothing was sent: another request
	// was in flight, the cooldown was counting, or the flow already finished.
	Skipped
	// Discarded means a response arrived after the controller was disposed and
	// was not acted upon.
	Discarded
)

func (s OutcomeStatus) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of every controller operation. Controllers never
// return a bare error: failures arrive as Failed outcomes with a *Failure.
type Outcome[T any] struct {
	status  OutcomeStatus
	value   T
	failure *Failure
}

func success[T any](v T) Outcome[T] {
	return Outcome[T]{status: Succeeded, value: v}
}

func failed[T any](f *Failure) Outcome[T] {
	if f == nil {
		f = NewFailure(KindServer, msgServer)
	}
	return Outcome[T]{status: Failed, failure: f}
}

func skipped[T any]() Outcome[T] {
	return Outcome[T]{status: Skipped}
}

func discarded[T any]() Outcome[T] {
	return Outcome[T]{status: Discarded}
}

// Status returns the outcome tag.
func (o Outcome[T]) Status() OutcomeStatus { return o.status }

// OK reports whether the outcome succeeded.
func (o Outcome[T]) OK() bool { return o.status == Succeeded }

// Value returns the success payload; it is the zero value for other statuses.
func (o Outcome[T]) Value() T { return o.value }

// Failure returns the failure of a Failed outcome and nil otherwise.
func (o Outcome[T]) Failure() *Failure { return o.failure }

// Kind returns the failure kind, or 0 when the outcome did not fail.
func (o Outcome[T]) Kind() Kind {
	if o.failure == nil {
		return 0
	}
	return o.failure.Kind
}

// Message returns the display message of a Failed outcome.
func (o Outcome[T]) Message() string {
	if o.failure == nil {
		return ""
	}
	return o.failure.Message
}

// Err returns the failure as an error, or nil when the outcome did not fail.
func (o Outcome[T]) Err() error {
	if o.failure == nil {
		return nil
	}
	return o.failure
}
