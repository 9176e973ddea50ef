package ccl

import "context"

// Request mirrors the host request object. One Request serves exactly one
// call and is never reused.
type Request interface {
	// Open prepares the call. target is the program identifier.
	Open(method, target string, async bool) error
	// Send starts the call with the serialized argument list.
	Send(body string) error
	// OnReadyStateChange registers the observer called on every state
	// change. It may be called from any goroutine and more than once per
	// state.
	OnReadyStateChange(fn func())

	ReadyState() ReadyState
	Status() StatusCode
	StatusText() string
	ResponseText() string
}

// Facility creates request objects. Name is used in error messages.
type Facility interface {
	Name() string
	NewRequest() Request
}

// Fetcher executes one program call. ok is false when no facility is
// available; that case is never an error.
type Fetcher interface {
	Fetch(ctx context.Context, args, program string) (text string, ok bool, err error)
}
