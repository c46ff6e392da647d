package grpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"equiptrack-backend/internal/domain"
	"equiptrack-backend/internal/service"
)

// Metadata keys set by the auth interceptor from verified token claims.
const (
	MetadataUserID   = "user-id"
	MetadataUserRole = "user-role"
)

// ActorFromContext builds the caller from the interceptor-populated metadata.
func ActorFromContext(ctx context.Context) (service.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return service.Actor{}, status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	userIDs := md.Get(MetadataUserID)
	if len(userIDs) == 0 {
		return service.Actor{}, status.Errorf(codes.Unauthenticated, "user_id is not provided in metadata")
	}
	userID, err := strconv.ParseInt(userIDs[0], 10, 64)
	if err != nil {
		return service.Actor{}, status.Errorf(codes.InvalidArgument, "invalid user_id format: %v", err)
	}

	roles := md.Get(MetadataUserRole)
	if len(roles) == 0 {
		return service.Actor{}, status.Errorf(codes.Unauthenticated, "role is not provided in metadata")
	}
	role, err := domain.ParseRole(roles[0])
	if err != nil {
		return service.Actor{}, status.Errorf(codes.PermissionDenied, "%v", err)
	}

	return service.Actor{ID: userID, Role: role}, nil
}
