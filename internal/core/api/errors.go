package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/approvalgate/internal/types"
)

// Auth errors are mapped in the auth interceptor.
// Rule store errors map to UNAVAILABLE, bad requests to INVALID_ARGUMENT.

var errMissingTenant = status.Error(codes.Unauthenticated, "missing tenant_id in context")

func invalidArgument(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// statusFromError converts engine and store errors to gRPC status.
func statusFromError(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, types.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, types.ErrInvalidCondition), errors.Is(err, types.ErrInvalidRule):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Errorf(codes.Unavailable, "rule store unavailable: %v", err)
	}
}
