package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/msto63/cclbridge/pkg/ccl"
	"github.com/msto63/cclbridge/pkg/ccl/ccltest"
	coreerror "github.com/msto63/cclbridge/pkg/core/error"
	"github.com/msto63/cclbridge/pkg/core/logging"
)

const userBody = `{"REPLY":{"STATUS":"SUCCESS","VALUE":"{\"REPLY\":{\"NAME\":\"Jane\",\"ID\":42}}"}}`

// startRelay serves a relay for facility over bufconn and returns a client
func startRelay(t *testing.T, cfg Config, facility ccl.Facility) (*Server, *Client) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := New(cfg, ccl.NewAdapter(facility, ccl.WithLogger(logging.Nop())))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	client, err := Dial("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetch_PassesThrough(t *testing.T) {
	facility := ccltest.NewFacility().Respond("PROG", ccltest.OK(`raw "body"`))
	_, client := startRelay(t, DefaultConfig(), facility)

	text, ok, err := client.Fetch(testContext(t), `"A", "B"`, "PROG")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !ok || text != `raw "body"` {
		t.Errorf("Fetch() = %q, %v", text, ok)
	}

	call, _ := facility.LastCall()
	if call.Body != `"MINE", "A", "B"` || call.Target != "PROG" {
		t.Errorf("facility saw %+v", call)
	}
}

func TestFetch_NoFacility(t *testing.T) {
	_, client := startRelay(t, DefaultConfig(), nil)

	text, ok, err := client.Fetch(testContext(t), `"X"`, "PROG")
	if err != nil || ok || text != "" {
		t.Errorf("Fetch() = %q, %v, %v; want \"\", false, nil", text, ok, err)
	}
}

func TestFetch_StatusErrorSurvivesHop(t *testing.T) {
	facility := ccltest.NewFacility(ccltest.WithName("Remote")).
		Respond("PROG", ccltest.Failure(ccl.StatusNonFatalError, "script failed"))
	_, client := startRelay(t, DefaultConfig(), facility)

	_, _, err := client.Fetch(testContext(t), `"X"`, "PROG")
	var se *ccl.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Fetch() error = %T %v, want *ccl.StatusError", err, err)
	}
	if se.Status != ccl.StatusNonFatalError || se.Facility != "Remote" || se.StatusText != "script failed" {
		t.Errorf("StatusError = %+v", se)
	}
	if err.Error() != "A 492 error occurred in Remote: script failed" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestCall(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		argument *string
		wantArgs string
		want     string
	}{
		{
			name:     "no argument",
			body:     `{"REPLY":{"STATUS":"SUCCESS","VALUE":"v1"}}`,
			wantArgs: `"MINE", "SUB"`,
			want:     "v1",
		},
		{
			name:     "with argument",
			body:     `{"REPLY":{"STATUS":"SUCCESS","VALUE":"v2"}}`,
			argument: strPtr("arg"),
			wantArgs: `"MINE", "SUB", "arg"`,
			want:     "v2",
		},
		{
			name:     "empty argument",
			body:     `{"REPLY":{"STATUS":"SUCCESS","VALUE":"v3"}}`,
			argument: strPtr(""),
			wantArgs: `"MINE", "SUB", ""`,
			want:     "v3",
		},
		{
			name:     "failed status",
			body:     `{"REPLY":{"STATUS":"FAILURE","VALUE":"ignored"}}`,
			wantArgs: `"MINE", "SUB"`,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facility := ccltest.NewFacility().Respond(ccl.HelperProgram, ccltest.OK(tt.body))
			_, client := startRelay(t, DefaultConfig(), facility)

			var got string
			var err error
			if tt.argument == nil {
				got, err = client.Call(testContext(t), "SUB")
			} else {
				got, err = client.CallWithArgument(testContext(t), "SUB", *tt.argument)
			}
			if err != nil {
				t.Fatalf("Call() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Call() = %q, want %q", got, tt.want)
			}
			call, _ := facility.LastCall()
			if call.Body != tt.wantArgs {
				t.Errorf("body = %q, want %q", call.Body, tt.wantArgs)
			}
		})
	}
}

func TestCall_ConfiguredProgram(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Program = "OTHER:dba"
	facility := ccltest.NewFacility().Respond("OTHER:dba", ccltest.OK(`{"REPLY":{"STATUS":"SUCCESS","VALUE":"ok"}}`))
	_, client := startRelay(t, cfg, facility)

	got, err := client.Call(testContext(t), "SUB")
	if err != nil || got != "ok" {
		t.Errorf("Call() = %q, %v", got, err)
	}
}

func TestCall_MissingReply(t *testing.T) {
	facility := ccltest.NewFacility().RespondDefault(ccltest.OK(`{"OTHER":1}`))
	_, client := startRelay(t, DefaultConfig(), facility)

	_, err := client.Call(testContext(t), "SUB")
	if !errors.Is(err, ccl.ErrMissingReply) {
		t.Errorf("Call() error = %v, want ErrMissingReply", err)
	}
}

func TestCall_InvalidJSON(t *testing.T) {
	facility := ccltest.NewFacility().RespondDefault(ccltest.OK(`not json`))
	_, client := startRelay(t, DefaultConfig(), facility)

	_, err := client.Call(testContext(t), "SUB")
	if err == nil {
		t.Fatal("Call() error = nil")
	}
	if !coreerror.HasCode(err, coreerror.CodeExternalServiceError) {
		t.Errorf("Call() error = %v, want external service code", err)
	}
	if status.Code(errors.Unwrap(err)) != codes.DataLoss {
		t.Errorf("status = %v, want DataLoss", status.Code(errors.Unwrap(err)))
	}
}

func TestGetUser(t *testing.T) {
	facility := ccltest.NewFacility().Respond(ccl.HelperProgram, ccltest.OK(userBody))
	_, client := startRelay(t, DefaultConfig(), facility)

	reply, err := client.GetUser(testContext(t))
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if reply.String("NAME") != "Jane" || reply.String("ID") != "42" {
		t.Errorf("GetUser() = %v", reply)
	}
}

func TestGetUser_Empty(t *testing.T) {
	_, client := startRelay(t, DefaultConfig(), nil)

	reply, err := client.GetUser(testContext(t))
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if reply == nil || len(reply) != 0 {
		t.Errorf("GetUser() = %#v, want empty reply", reply)
	}
}

func TestClient_AsFetcher(t *testing.T) {
	facility := ccltest.NewFacility().Respond(ccl.HelperProgram, ccltest.OK(userBody))
	_, relayClient := startRelay(t, DefaultConfig(), facility)

	reply, err := ccl.NewClient(relayClient).GetUser(testContext(t))
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if reply.String("NAME") != "Jane" {
		t.Errorf("GetUser() = %v", reply)
	}
}

func TestInvalidArgument(t *testing.T) {
	_, client := startRelay(t, DefaultConfig(), ccltest.NewFacility())
	ctx := testContext(t)

	tests := []struct {
		name   string
		method string
		fields map[string]*structpb.Value
	}{
		{"fetch without program", fetchMethod, map[string]*structpb.Value{
			fieldArgs: structpb.NewStringValue(`"X"`),
		}},
		{"fetch with numeric args", fetchMethod, map[string]*structpb.Value{
			fieldArgs:    structpb.NewNumberValue(1),
			fieldProgram: structpb.NewStringValue("P"),
		}},
		{"call without subroutine", callMethod, map[string]*structpb.Value{}},
		{"call with bool argument", callMethod, map[string]*structpb.Value{
			fieldSubroutine: structpb.NewStringValue("SUB"),
			fieldArgument:   structpb.NewBoolValue(true),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.conn.Invoke(ctx, tt.method, &structpb.Struct{Fields: tt.fields}, new(structpb.Struct))
			if status.Code(err) != codes.InvalidArgument {
				t.Errorf("code = %v, want InvalidArgument", status.Code(err))
			}
		})
	}
}

func TestDeadlineExceeded(t *testing.T) {
	facility := ccltest.NewFacility(ccltest.Hang())
	_, client := startRelay(t, DefaultConfig(), facility)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err := client.Fetch(ctx, `"X"`, "PROG")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Fetch() error = %v, want deadline exceeded", err)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	facility := ccltest.NewFacility().RespondDefault(ccltest.OK("x"))
	_, client := startRelay(t, cfg, facility)
	ctx := testContext(t)

	if _, _, err := client.Fetch(ctx, `"X"`, "PROG"); err != nil {
		t.Fatalf("first Fetch() error = %v", err)
	}
	_, _, err := client.Fetch(ctx, `"X"`, "PROG")
	if status.Code(errors.Unwrap(err)) != codes.ResourceExhausted {
		t.Errorf("second Fetch() error = %v, want ResourceExhausted", err)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		facility ccl.Facility
	}{
		{"with facility", ccltest.NewFacility()},
		{"without facility", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := startRelay(t, DefaultConfig(), tt.facility)

			got, err := client.Health(testContext(t))
			if err != nil {
				t.Fatalf("Health() error = %v", err)
			}
			// Degraded still serves.
			if got != healthpb.HealthCheckResponse_SERVING {
				t.Errorf("Health() = %v, want SERVING", got)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	facility := ccltest.NewFacility().
		Respond("OK", ccltest.OK("x")).
		Respond("BAD", ccltest.Failure(ccl.StatusInternalServerException, "boom"))
	srv, client := startRelay(t, DefaultConfig(), facility)
	ctx := testContext(t)

	_, _, _ = client.Fetch(ctx, `"X"`, "OK")
	_, _, _ = client.Fetch(ctx, `"X"`, "OK")
	_, _, _ = client.Fetch(ctx, `"X"`, "BAD")

	m := srv.Metrics()
	if got := testutil.ToFloat64(m.requests.WithLabelValues(fetchMethod, codes.OK.String())); got != 2 {
		t.Errorf("OK count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues(fetchMethod, codes.Unavailable.String())); got != 1 {
		t.Errorf("Unavailable count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.inFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "ccl_relay_requests_total") {
		t.Error("exposition missing ccl_relay_requests_total")
	}
}

func TestToStatus(t *testing.T) {
	var syntaxErr error
	var v any
	syntaxErr = json.Unmarshal([]byte("{"), &v)

	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"status error", &ccl.StatusError{Facility: "F", Status: ccl.StatusMethodNotAllowed}, codes.Unavailable},
		{"missing reply", ccl.ErrMissingReply, codes.DataLoss},
		{"json", syntaxErr, codes.DataLoss},
		{"canceled", context.Canceled, codes.Canceled},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"open failure", coreerror.Wrap(errors.New("x"), "open").WithCode(coreerror.CodeExternalServiceError), codes.Unavailable},
		{"other", errors.New("x"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status.Code(toStatus(context.Background(), tt.err)); got != tt.want {
				t.Errorf("toStatus() code = %v, want %v", got, tt.want)
			}
		})
	}
	if toStatus(context.Background(), nil) != nil {
		t.Error("toStatus(nil) != nil")
	}
}

func strPtr(s string) *string { return &s }
