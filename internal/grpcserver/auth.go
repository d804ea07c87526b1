package grpcserver

import (
	"context"
	"crypto/subtle"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	metadataAuthorization = "authorization"
	bearerPrefix          = "Bearer "
	errorUnauthenticated  = "unauthenticated"
)

// TokenInterceptor rejects calls that do not carry "authorization: Bearer <token>".
// An empty token rejects every call.
func TokenInterceptor(token string) grpc.UnaryServerInterceptor {
	expected := []byte(token)
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !authorized(ctx, expected) {
			return nil, status.Error(codes.Unauthenticated, errorUnauthenticated)
		}
		return handler(ctx, request)
	}
}

func authorized(ctx context.Context, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	incoming, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return false
	}
	for _, value := range incoming.Get(metadataAuthorization) {
		if !strings.HasPrefix(value, bearerPrefix) {
			continue
		}
		presented := []byte(strings.TrimPrefix(value, bearerPrefix))
		if subtle.ConstantTimeCompare(presented, expected) == 1 {
			return true
		}
	}
	return false
}
