package grpc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"room-chat/internal/chat"
	"room-chat/internal/observability"
)

// ValidateTokenMethod is the auth-service RPC. It takes the raw token as a
// StringValue and answers with a Struct holding "valid" and "user_id".
const ValidateTokenMethod = "/auth.AuthService/ValidateToken"

// AuthClient validates session tokens against the auth service.
type AuthClient struct {
	conn grpc.ClientConnInterface
}

// NewAuthClient constructs the wrapper around an established connection.
func NewAuthClient(conn grpc.ClientConnInterface) *AuthClient {
	return &AuthClient{conn: conn}
}

// Dial opens an instrumented connection to the auth service.
func Dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(observability.GRPCClientMetricsUnaryInterceptor()),
	)
}

// ValidateToken verifies the JWT and returns the authenticated user id.
func (a *AuthClient) ValidateToken(ctx context.Context, token string) (uuid.UUID, error) {
	resp := &structpb.Struct{}
	if err := a.conn.Invoke(ctx, ValidateTokenMethod, wrapperspb.String(token), resp); err != nil {
		if status.Code(err) == codes.Unauthenticated || status.Code(err) == codes.InvalidArgument {
			return uuid.Nil, fmt.Errorf("%w: %v", chat.ErrUnauthenticated, err)
		}
		return uuid.Nil, err
	}

	fields := resp.GetFields()
	if !fields["valid"].GetBoolValue() {
		return uuid.Nil, fmt.Errorf("%w: invalid token", chat.ErrUnauthenticated)
	}
	id, err := uuid.Parse(fields["user_id"].GetStringValue())
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: token carries no user id", chat.ErrUnauthenticated)
	}
	return id, nil
}
