package grpc

import (
	"context"
	"net"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"room-chat/internal/chat"
)

// startAuthServer serves ValidateTokenMethod through the unknown service
// handler and answers with tokens[token].
func startAuthServer(t *testing.T, tokens map[string]uuid.UUID) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		if method != ValidateTokenMethod {
			return status.Error(codes.Unimplemented, method)
		}
		req := &wrapperspb.StringValue{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		if req.GetValue() == "" {
			return status.Error(codes.InvalidArgument, "empty token")
		}
		fields := map[string]any{"valid": false}
		if id, ok := tokens[req.GetValue()]; ok {
			fields = map[string]any{"valid": true, "user_id": id.String()}
		}
		resp, err := structpb.NewStruct(fields)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestAuthClientValidateToken(t *testing.T) {
	userID := uuid.New()
	client := NewAuthClient(startAuthServer(t, map[string]uuid.UUID{"good": userID}))

	got, err := client.ValidateToken(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAuthClientRejectsUnknownToken(t *testing.T) {
	client := NewAuthClient(startAuthServer(t, map[string]uuid.UUID{}))

	_, err := client.ValidateToken(context.Background(), "bad")
	assert.ErrorIs(t, err, chat.ErrUnauthenticated)

	_, err = client.ValidateToken(context.Background(), "")
	assert.ErrorIs(t, err, chat.ErrUnauthenticated)
}
