package ccl

import (
	"bytes"
	"context"
	"encoding/json"
)

const (
	// HelperProgram is the helper program targeted by Client
	HelperProgram = "ASD_SMART_ON_FHIR_UTILITIES:dba"

	// UserSubroutine selects the current user lookup in the helper program
	UserSubroutine = "USER"

	replyStatusSuccess = "SUCCESS"
)

// Client calls subroutines of the helper program and unwraps its
// {"REPLY": {"STATUS": ..., "VALUE": ...}} envelope.
type Client struct {
	fetcher Fetcher
	program string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithProgram overrides the helper program identifier
func WithProgram(program string) ClientOption {
	return func(c *Client) {
		if program != "" {
			c.program = program
		}
	}
}

// NewClient creates a client that sends its calls through fetcher
func NewClient(fetcher Fetcher, opts ...ClientOption) *Client {
	c := &Client{
		fetcher: fetcher,
		program: HelperProgram,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Program returns the helper program identifier in use
func (c *Client) Program() string {
	return c.program
}

// Call invokes subroutine without an argument.
//
// The subroutine is wrapped in double quotes without escaping: a value
// containing a double quote corrupts the call.
func (c *Client) Call(ctx context.Context, subroutine string) (string, error) {
	return c.call(ctx, callArgs(subroutine, nil))
}

// CallWithArgument invokes subroutine with a single argument, which may be
// empty. The same quoting limitation as Call applies to argument.
func (c *Client) CallWithArgument(ctx context.Context, subroutine, argument string) (string, error) {
	return c.call(ctx, callArgs(subroutine, &argument))
}

func callArgs(subroutine string, argument *string) string {
	if argument == nil {
		return `"` + subroutine + `"`
	}
	return `"` + subroutine + `", "` + *argument + `"`
}

func (c *Client) call(ctx context.Context, args string) (string, error) {
	text, ok, err := c.fetcher.Fetch(ctx, args, c.program)
	if err != nil {
		return "", err
	}
	if !ok || text == "" {
		return "", nil
	}
	return unwrapValue([]byte(text))
}

// unwrapValue returns REPLY.VALUE when REPLY.STATUS is SUCCESS and "" for
// any other status. JSON errors are returned as produced by encoding/json.
func unwrapValue(body []byte) (string, error) {
	var env struct {
		Reply json.RawMessage `json:"REPLY"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return "", err
	}
	if isNull(env.Reply) {
		return "", ErrMissingReply
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal(env.Reply, &reply); err != nil {
		// REPLY is a scalar or array: it has no STATUS, so no success.
		return "", nil
	}

	var status string
	if err := json.Unmarshal(reply["STATUS"], &status); err != nil || status != replyStatusSuccess {
		return "", nil
	}

	value := reply["VALUE"]
	if isNull(value) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, nil
	}
	// Non-string VALUE is handed on as its JSON text.
	return string(value), nil
}

// GetUser returns the current user's REPLY object from the USER subroutine.
//
// The VALUE of the USER subroutine is itself a JSON document with its own
// REPLY object; that inner REPLY is returned with all its fields. An empty
// result yields an empty Reply.
func (c *Client) GetUser(ctx context.Context) (Reply, error) {
	value, err := c.Call(ctx, UserSubroutine)
	if err != nil {
		return nil, err
	}
	if value == "" {
		return Reply{}, nil
	}

	var inner struct {
		Reply Reply `json:"REPLY"`
	}
	if err := json.Unmarshal([]byte(value), &inner); err != nil {
		return nil, err
	}
	if inner.Reply == nil {
		return Reply{}, nil
	}
	return inner.Reply, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
