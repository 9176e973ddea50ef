package ccl

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	coreerror "github.com/msto63/cclbridge/pkg/core/error"
	"github.com/msto63/cclbridge/pkg/core/logging"
)

// Fixed first positional argument of every call.
const mineArgument = `"MINE"`

// Adapter turns the callback driven host request object into a blocking
// call. It holds no per-call state and is safe for concurrent use.
type Adapter struct {
	facility Facility
	logger   *logging.Logger
}

// Option configures an Adapter
type Option func(*Adapter)

// WithLogger sets the logger used for request lifecycle tracing
func WithLogger(logger *logging.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter creates an adapter over facility. facility may be nil.
func NewAdapter(facility Facility, opts ...Option) *Adapter {
	a := &Adapter{
		facility: facility,
		logger:   logging.New("ccl"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether a facility is present
func (a *Adapter) Available() bool {
	return a != nil && a.facility != nil
}

// SendBody returns the payload sent for args: the fixed "MINE" argument
// followed by args, without escaping.
func SendBody(args string) string {
	return mineArgument + ", " + args
}

type outcome struct {
	text string
	err  error
}

// Fetch runs program with args and returns the raw response text.
//
// Without a facility it returns ("", false, nil). On status 200 the body is
// returned unmodified, whatever it contains. Any other terminal status yields
// a *StatusError. Cancelling ctx stops the wait only; the host request
// itself cannot be aborted.
func (a *Adapter) Fetch(ctx context.Context, args, program string) (string, bool, error) {
	if !a.Available() {
		return "", false, nil
	}

	req := a.facility.NewRequest()
	if req == nil {
		return "", false, nil
	}

	requestID := uuid.NewString()
	log := a.logger.With("request_id", requestID, "program", program)
	start := time.Now()

	done := make(chan outcome, 1)
	var once sync.Once
	req.OnReadyStateChange(func() {
		if req.ReadyState() != ReadyStateCompleted {
			return
		}
		once.Do(func() {
			status := req.Status()
			log.Debug("ccl request completed", "status", int(status), "duration", time.Since(start))
			if status.OK() {
				done <- outcome{text: req.ResponseText()}
				return
			}
			done <- outcome{err: &StatusError{
				Facility:   a.facility.Name(),
				Status:     status,
				StatusText: req.StatusText(),
			}}
		})
	})

	if err := req.Open("GET", program, true); err != nil {
		return "", true, coreerror.Wrap(err, "open request").
			WithCode(coreerror.CodeExternalServiceError).
			WithOperation("ccl.Fetch").
			WithDetail("program", program)
	}

	log.Debug("ccl request started")
	if err := req.Send(SendBody(args)); err != nil {
		return "", true, coreerror.Wrap(err, "send request").
			WithCode(coreerror.CodeExternalServiceError).
			WithOperation("ccl.Fetch").
			WithDetail("program", program)
	}

	select {
	case o := <-done:
		return o.text, true, o.err
	case <-ctx.Done():
		log.Debug("ccl request abandoned", "error", ctx.Err())
		return "", true, ctx.Err()
	}
}
