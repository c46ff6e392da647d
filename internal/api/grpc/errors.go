package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/logger"
)

// ErrorKindTrailer names the trailer that carries the workflow error kind.
const ErrorKindTrailer = "x-error-kind"

var kindCodes = map[domain.ErrorKind]codes.Code{
	domain.ErrInvalidInput:          codes.InvalidArgument,
	domain.ErrReasonRequired:        codes.InvalidArgument,
	domain.ErrNotFound:              codes.NotFound,
	domain.ErrForbidden:             codes.PermissionDenied,
	domain.ErrInvalidState:          codes.FailedPrecondition,
	domain.ErrAlreadyDecided:        codes.FailedPrecondition,
	domain.ErrIllegalTransition:     codes.FailedPrecondition,
	domain.ErrRequestNotApproved:    codes.FailedPrecondition,
	domain.ErrEquipmentNotAvailable: codes.FailedPrecondition,
	domain.ErrAlreadyAssigned:       codes.FailedPrecondition,
	domain.ErrConcurrencyConflict:   codes.Aborted,
	domain.ErrLedgerWriteFailed:     codes.Internal,
}

// statusFor maps a service error to a gRPC status. Faults keep their detail
// out of the response.
func statusFor(err error) (*status.Status, domain.ErrorKind) {
	if s, ok := status.FromError(err); ok {
		return s, ""
	}
	if errors.Is(err, context.Canceled) {
		return status.New(codes.Canceled, "request canceled"), ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.New(codes.DeadlineExceeded, "deadline exceeded"), ""
	}

	kind := domain.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok || code == codes.Internal {
		return status.New(codes.Internal, "internal error"), kind
	}
	return status.New(code, err.Error()), kind
}

// toStatus converts err for a unary call and records the kind trailer.
func toStatus(ctx context.Context, err error) error {
	s, kind := statusFor(err)
	if s.Code() == codes.Internal {
		logger.Error("Workflow call failed", "error", err)
	}
	if kind != "" {
		_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindTrailer, string(kind)))
	}
	return s.Err()
}

// toStreamStatus is toStatus for server streams.
func toStreamStatus(stream grpc.ServerStream, err error) error {
	s, kind := statusFor(err)
	if s.Code() == codes.Internal {
		logger.Error("Workflow stream failed", "error", err)
	}
	if kind != "" {
		stream.SetTrailer(metadata.Pairs(ErrorKindTrailer, string(kind)))
	}
	return s.Err()
}
