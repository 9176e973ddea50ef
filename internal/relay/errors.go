package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/msto63/cclbridge/pkg/ccl"
	coreerror "github.com/msto63/cclbridge/pkg/core/error"
)

// Trailer keys carrying facility failures across the hop
const (
	trailerStatus     = "x-ccl-status"
	trailerStatusText = "x-ccl-status-text"
	trailerFacility   = "x-ccl-facility"
	trailerReason     = "x-ccl-reason"

	reasonMissingReply = "missing-reply"
)

// toStatus converts a ccl error into a gRPC status, attaching trailers so
// the client can restore it
func toStatus(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	var se *ccl.StatusError
	switch {
	case errors.As(err, &se):
		_ = grpc.SetTrailer(ctx, metadata.Pairs(
			trailerStatus, strconv.Itoa(int(se.Status)),
			trailerStatusText, se.StatusText,
			trailerFacility, se.Facility,
		))
		return status.Error(codes.Unavailable, se.Error())
	case errors.Is(err, ccl.ErrMissingReply):
		_ = grpc.SetTrailer(ctx, metadata.Pairs(trailerReason, reasonMissingReply))
		return status.Error(codes.DataLoss, err.Error())
	case isJSONError(err):
		return status.Error(codes.DataLoss, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case coreerror.HasCode(err, coreerror.CodeExternalServiceError):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func isJSONError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// fromStatus restores a ccl error from a gRPC error and its trailers
func fromStatus(ctx context.Context, err error, trailer metadata.MD) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unavailable:
		if code := first(trailer, trailerStatus); code != "" {
			n, convErr := strconv.Atoi(code)
			if convErr == nil {
				return &ccl.StatusError{
					Facility:   first(trailer, trailerFacility),
					Status:     ccl.StatusCode(n),
					StatusText: first(trailer, trailerStatusText),
				}
			}
		}
	case codes.DataLoss:
		if first(trailer, trailerReason) == reasonMissingReply {
			return ccl.ErrMissingReply
		}
	case codes.Canceled, codes.DeadlineExceeded:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}

	return coreerror.Wrap(err, "relay call failed").
		WithCode(relayCode(st.Code())).
		WithOperation("relay.Client")
}

func relayCode(c codes.Code) coreerror.Code {
	switch c {
	case codes.Unavailable:
		return coreerror.CodeServiceUnavailable
	case codes.InvalidArgument:
		return coreerror.CodeInvalidInput
	case codes.DataLoss, codes.Internal:
		return coreerror.CodeExternalServiceError
	default:
		return coreerror.CodeUnknown
	}
}

func first(md metadata.MD, key string) string {
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
