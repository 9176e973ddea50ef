package relay

import (
	"context"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/msto63/cclbridge/pkg/ccl"
	coreGrpc "github.com/msto63/cclbridge/pkg/core/grpc"
	coreerror "github.com/msto63/cclbridge/pkg/core/error"
)

// Client talks to a relay. It implements ccl.Fetcher, so a ccl.Client can
// run over it unchanged.
type Client struct {
	conn  *grpc.ClientConn
	owned bool
}

var _ ccl.Fetcher = (*Client)(nil)

// Dial connects to the relay at target
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	conn, err := coreGrpc.DialSimple(target, opts...)
	if err != nil {
		return nil, coreerror.Wrap(err, "dial relay").
			WithCode(coreerror.CodeConnectionFailed).
			WithOperation("relay.Dial").
			WithDetail("target", target)
	}
	return &Client{conn: conn, owned: true}, nil
}

// NewClient wraps an existing connection; Close leaves it open
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection if the client dialed it
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	var trailer metadata.MD
	err := c.conn.Invoke(ctx, method, in, out, grpc.Trailer(&trailer))
	return fromStatus(ctx, err, trailer)
}

// Fetch runs program with args on the relay's facility
func (c *Client) Fetch(ctx context.Context, args, program string) (string, bool, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldArgs:    structpb.NewStringValue(args),
		fieldProgram: structpb.NewStringValue(program),
	}}
	out := new(structpb.Struct)
	if err := c.invoke(ctx, fetchMethod, in, out); err != nil {
		return "", true, err
	}
	fields := out.GetFields()
	return fields[fieldText].GetStringValue(), fields[fieldAvailable].GetBoolValue(), nil
}

// Call invokes subroutine of the relay's helper program
func (c *Client) Call(ctx context.Context, subroutine string) (string, error) {
	return c.call(ctx, map[string]*structpb.Value{
		fieldSubroutine: structpb.NewStringValue(subroutine),
	})
}

// CallWithArgument invokes subroutine with a single argument
func (c *Client) CallWithArgument(ctx context.Context, subroutine, argument string) (string, error) {
	return c.call(ctx, map[string]*structpb.Value{
		fieldSubroutine: structpb.NewStringValue(subroutine),
		fieldArgument:   structpb.NewStringValue(argument),
	})
}

func (c *Client) call(ctx context.Context, fields map[string]*structpb.Value) (string, error) {
	out := new(wrapperspb.StringValue)
	if err := c.invoke(ctx, callMethod, &structpb.Struct{Fields: fields}, out); err != nil {
		return "", err
	}
	return out.GetValue(), nil
}

// GetUser returns the current user's REPLY object
func (c *Client) GetUser(ctx context.Context) (ccl.Reply, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, getUserMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return ccl.Reply(out.AsMap()), nil
}

// Health queries the relay's gRPC health service
func (c *Client) Health(ctx context.Context) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fromStatus(ctx, err, nil)
	}
	return resp.GetStatus(), nil
}
