package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/linewarden/internal/types"
)

// toStatus maps pipeline errors that abort a request onto gRPC status codes.
// Per-subscriber lookup failures never reach here; they travel as error
// envelopes in a successful response.
func toStatus(err error) error {
	switch {
	case errors.Is(err, types.ErrInvalidConfig):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
