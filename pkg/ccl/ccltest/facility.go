// Package ccltest provides a scripted in-memory facility for testing code
// that talks to a host request facility.
package ccltest

import (
	"errors"
	"sync"

	"github.com/msto63/cclbridge/pkg/ccl"
)

var errSendBeforeOpen = errors.New("ccltest: send before open")

// Response is a canned terminal result for a program
type Response struct {
	Status     ccl.StatusCode
	StatusText string
	Body       string
}

// OK returns a status 200 response with body
func OK(body string) Response {
	return Response{Status: ccl.StatusSuccess, StatusText: "OK", Body: body}
}

// Failure returns a non-success response
func Failure(status ccl.StatusCode, statusText string) Response {
	return Response{Status: status, StatusText: statusText}
}

// Call is one recorded request
type Call struct {
	Method string
	Target string
	Async  bool
	Body   string
}

// Facility is a scripted ccl.Facility
type Facility struct {
	mu        sync.Mutex
	name      string
	responses map[string]Response
	fallback  *Response
	calls     []Call

	async     bool
	duplicate bool
	hang      bool
	openErr   error
	sendErr   error
}

// Option configures a Facility
type Option func(*Facility)

// WithName sets the facility name used in error messages
func WithName(name string) Option {
	return func(f *Facility) { f.name = name }
}

// Async delivers state changes from a separate goroutine
func Async() Option {
	return func(f *Facility) { f.async = true }
}

// DuplicateCompletion fires the completed state a second time with a
// different status after the first.
func DuplicateCompletion() Option {
	return func(f *Facility) { f.duplicate = true }
}

// Hang stops every request at the interactive state
func Hang() Option {
	return func(f *Facility) { f.hang = true }
}

// FailOpen makes Open return err
func FailOpen(err error) Option {
	return func(f *Facility) { f.openErr = err }
}

// FailSend makes Send return err
func FailSend(err error) Option {
	return func(f *Facility) { f.sendErr = err }
}

// NewFacility creates a facility named XMLCclRequest
func NewFacility(opts ...Option) *Facility {
	f := &Facility{
		name:      "XMLCclRequest",
		responses: make(map[string]Response),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name implements ccl.Facility
func (f *Facility) Name() string {
	return f.name
}

// Respond scripts the response for program
func (f *Facility) Respond(program string, r Response) *Facility {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[program] = r
	return f
}

// RespondDefault scripts the response for programs without their own entry
func (f *Facility) RespondDefault(r Response) *Facility {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fallback = &r
	return f
}

// Calls returns the recorded calls in send order
func (f *Facility) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// LastCall returns the most recent call
func (f *Facility) LastCall() (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}, false
	}
	return f.calls[len(f.calls)-1], true
}

// NewRequest implements ccl.Facility
func (f *Facility) NewRequest() ccl.Request {
	return &request{facility: f}
}

func (f *Facility) record(c Call) Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if r, ok := f.responses[c.Target]; ok {
		return r
	}
	if f.fallback != nil {
		return *f.fallback
	}
	return Failure(ccl.StatusInternalServerException, "no response scripted for "+c.Target)
}

type request struct {
	facility *Facility

	mu       sync.Mutex
	method   string
	target   string
	async    bool
	opened   bool
	state    ccl.ReadyState
	status   ccl.StatusCode
	text     string
	body     string
	observer func()
}

func (r *request) Open(method, target string, async bool) error {
	if r.facility.openErr != nil {
		return r.facility.openErr
	}
	r.mu.Lock()
	r.method, r.target, r.async, r.opened = method, target, async, true
	r.mu.Unlock()
	return nil
}

func (r *request) Send(body string) error {
	if r.facility.sendErr != nil {
		return r.facility.sendErr
	}

	r.mu.Lock()
	if !r.opened {
		r.mu.Unlock()
		return errSendBeforeOpen
	}
	call := Call{Method: r.method, Target: r.target, Async: r.async, Body: body}
	r.mu.Unlock()

	resp := r.facility.record(call)
	if r.facility.async {
		go r.run(resp)
	} else {
		r.run(resp)
	}
	return nil
}

func (r *request) run(resp Response) {
	for _, s := range []ccl.ReadyState{ccl.ReadyStateLoading, ccl.ReadyStateLoaded, ccl.ReadyStateInteractive} {
		r.transition(s, nil)
	}
	if r.facility.hang {
		return
	}
	r.transition(ccl.ReadyStateCompleted, &resp)

	if r.facility.duplicate {
		second := Failure(ccl.StatusNonFatalError, "duplicate completion")
		if !resp.Status.OK() {
			second = OK("duplicate completion")
		}
		r.transition(ccl.ReadyStateCompleted, &second)
	}
}

func (r *request) transition(state ccl.ReadyState, resp *Response) {
	r.mu.Lock()
	r.state = state
	if resp != nil {
		r.status, r.text, r.body = resp.Status, resp.StatusText, resp.Body
	}
	observer := r.observer
	r.mu.Unlock()

	if observer != nil {
		observer()
	}
}

func (r *request) OnReadyStateChange(fn func()) {
	r.mu.Lock()
	r.observer = fn
	r.mu.Unlock()
}

func (r *request) ReadyState() ccl.ReadyState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *request) Status() ccl.StatusCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *request) StatusText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text
}

func (r *request) ResponseText() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}
