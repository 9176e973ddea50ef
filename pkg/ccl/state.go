package ccl

import "strconv"

// ReadyState is the lifecycle state reported by a host request object
type ReadyState int

const (
	ReadyStateUninitialized ReadyState = 0
	ReadyStateLoading       ReadyState = 1
	ReadyStateLoaded        ReadyState = 2
	ReadyStateInteractive   ReadyState = 3
	ReadyStateCompleted     ReadyState = 4
)

// String returns the host name of the state
func (s ReadyState) String() string {
	switch s {
	case ReadyStateUninitialized:
		return "uninitialized"
	case ReadyStateLoading:
		return "loading"
	case ReadyStateLoaded:
		return "loaded"
	case ReadyStateInteractive:
		return "interactive"
	case ReadyStateCompleted:
		return "completed"
	default:
		return "ReadyState(" + strconv.Itoa(int(s)) + ")"
	}
}

// StatusCode is the terminal status reported by a host request object.
// Values outside the named set can still occur and are failures.
type StatusCode int

const (
	StatusSuccess                 StatusCode = 200
	StatusMethodNotAllowed        StatusCode = 405
	StatusInvalidState            StatusCode = 409
	StatusNonFatalError           StatusCode = 492
	StatusMemoryError             StatusCode = 493
	StatusInternalServerException StatusCode = 500
)

// String returns the host name of the status
func (c StatusCode) String() string {
	switch c {
	case StatusSuccess:
		return "success"
	case StatusMethodNotAllowed:
		return "methodNotAllowed"
	case StatusInvalidState:
		return "invalidState"
	case StatusNonFatalError:
		return "nonFatalError"
	case StatusMemoryError:
		return "memoryError"
	case StatusInternalServerException:
		return "internalServerException"
	default:
		return "StatusCode(" + strconv.Itoa(int(c)) + ")"
	}
}

// Known reports whether c is one of the host-defined statuses
func (c StatusCode) Known() bool {
	switch c {
	case StatusSuccess, StatusMethodNotAllowed, StatusInvalidState,
		StatusNonFatalError, StatusMemoryError, StatusInternalServerException:
		return true
	}
	return false
}

// OK reports whether c is the only success status
func (c StatusCode) OK() bool {
	return c == StatusSuccess
}
