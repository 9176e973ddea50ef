package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/msto63/cclbridge/pkg/ccl"
	coreGrpc "github.com/msto63/cclbridge/pkg/core/grpc"
	"github.com/msto63/cclbridge/pkg/core/health"
	"github.com/msto63/cclbridge/pkg/core/logging"
	"github.com/msto63/cclbridge/pkg/core/version"
)

// Config holds relay server configuration
type Config struct {
	Host             string
	Port             int
	MetricsAddress   string // empty disables the HTTP listener
	RateLimit        float64
	RateBurst        int
	EnableReflection bool
	Program          string
}

// DefaultConfig returns default relay configuration
func DefaultConfig() Config {
	return Config{
		Host:      "0.0.0.0",
		Port:      9310,
		RateBurst: 10,
		Program:   ccl.HelperProgram,
	}
}

// Server is the relay gRPC server
type Server struct {
	adapter *ccl.Adapter
	client  *ccl.Client
	grpc    *coreGrpc.Server
	health  *health.Registry
	probe   *grpchealth.Server
	metrics *Metrics
	http    *http.Server
	logger  *logging.Logger
	config  Config
}

// New creates a relay serving adapter. A relay over an adapter without a
// facility reports degraded health and answers every call with an empty
// result.
func New(cfg Config, adapter *ccl.Adapter) *Server {
	logger := logging.New("relay")
	metrics := NewMetrics()

	grpcCfg := coreGrpc.DefaultServerConfig()
	grpcCfg.Host = cfg.Host
	grpcCfg.Port = cfg.Port
	grpcCfg.RateLimit = cfg.RateLimit
	grpcCfg.RateBurst = cfg.RateBurst
	grpcCfg.EnableReflection = cfg.EnableReflection
	grpcCfg.Observe = metrics.Observe

	registry := health.NewRegistry(version.Relay, version.Version)
	registry.Register(health.FacilityCheck(adapter.Available))

	s := &Server{
		adapter: adapter,
		client:  ccl.NewClient(adapter, ccl.WithProgram(cfg.Program)),
		grpc:    coreGrpc.NewServer(grpcCfg),
		health:  registry,
		probe:   grpchealth.NewServer(),
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}

	s.grpc.GRPCServer().RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(s.grpc.GRPCServer(), s.probe)
	s.refreshHealth(context.Background())

	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/healthz", registry.Handler())
		s.http = &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	return s
}

// refreshHealth publishes the registry state to the gRPC health service
func (s *Server) refreshHealth(ctx context.Context) {
	report := s.health.Check(ctx)
	serving := healthpb.HealthCheckResponse_SERVING
	if !report.Serving() {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.probe.SetServingStatus("", serving)
	s.probe.SetServingStatus(ServiceName, serving)
	if report.Status != health.StatusHealthy {
		s.logger.Warn("relay health", "status", string(report.Status))
	}
}

// Metrics returns the server's collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens on the configured address and serves until stopped
func (s *Server) Start() error {
	s.startMetrics()
	s.logger.Info("relay listening", "address", s.grpc.Address(), "program", s.config.Program)
	return s.grpc.Start()
}

// StartAsync starts serving in the background
func (s *Server) StartAsync() error {
	if err := s.grpc.StartAsync(); err != nil {
		return err
	}
	s.startMetrics()
	s.logger.Info("relay listening", "address", s.grpc.Address(), "program", s.config.Program)
	return nil
}

// Serve serves on an existing listener
func (s *Server) Serve(listener net.Listener) error {
	return s.grpc.Serve(listener)
}

func (s *Server) startMetrics() {
	if s.http == nil {
		return
	}
	go func() {
		s.logger.Info("metrics listening", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Address returns the gRPC listen address
func (s *Server) Address() string {
	return s.grpc.Address()
}

// Stop shuts the server down, forcing close when ctx ends first
func (s *Server) Stop(ctx context.Context) error {
	s.probe.Shutdown()
	s.grpc.StopWithTimeout(ctx)
	if s.http != nil {
		return s.http.Shutdown(ctx)
	}
	return nil
}

// Fetch runs one program call on the local facility
func (s *Server) Fetch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	defer s.metrics.track()()

	args, err := stringField(req, fieldArgs)
	if err != nil {
		return nil, err
	}
	program, err := stringField(req, fieldProgram)
	if err != nil {
		return nil, err
	}

	text, ok, err := s.adapter.Fetch(ctx, args, program)
	if err != nil {
		s.logger.Debug("fetch failed", "request_id", coreGrpc.GetRequestID(ctx), "program", program, "error", err)
		return nil, toStatus(ctx, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldAvailable: structpb.NewBoolValue(ok),
		fieldText:      structpb.NewStringValue(text),
	}}, nil
}

// Call invokes a helper program subroutine. The argument field is optional.
func (s *Server) Call(ctx context.Context, req *structpb.Struct) (*wrapperspb.StringValue, error) {
	defer s.metrics.track()()

	subroutine, err := stringField(req, fieldSubroutine)
	if err != nil {
		return nil, err
	}

	var value string
	if arg, ok := req.GetFields()[fieldArgument]; ok {
		argument, isString := arg.GetKind().(*structpb.Value_StringValue)
		if !isString {
			return nil, status.Errorf(codes.InvalidArgument, "field %q must be a string", fieldArgument)
		}
		value, err = s.client.CallWithArgument(ctx, subroutine, argument.StringValue)
	} else {
		value, err = s.client.Call(ctx, subroutine)
	}
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return wrapperspb.String(value), nil
}

// GetUser returns the current user's REPLY object
func (s *Server) GetUser(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	defer s.metrics.track()()

	reply, err := s.client.GetUser(ctx)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	out, err := structpb.NewStruct(reply)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

func stringField(req *structpb.Struct, name string) (string, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "missing field %q", name)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "field %q must be a string", name)
	}
	return s.StringValue, nil
}
