package grpcx

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/cwrk-planet/collab-service/internal/auth"
	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/room"
	"github.com/cwrk-planet/collab-service/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func startServer(t *testing.T, v *auth.Verifier, required bool) *RoomAdminClient {
	t.Helper()
	reg := room.NewRegistry(nil, nil)
	ctx := context.Background()
	_, err := reg.Join(ctx, "r1", domain.Participant{ConnID: "c1", DisplayName: "alice"})
	require.NoError(t, err)
	_, err = reg.Join(ctx, "r1", domain.Participant{ConnID: "c2", DisplayName: "bob"})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(
		UnaryServerInterceptor(time.Second),
		AuthUnaryInterceptor(v, required),
	))
	Register(gs, NewServer(service.NewRoomService(reg)))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return NewRoomAdminClient(cc)
}

func TestRoomAdmin_List(t *testing.T) {
	c := startServer(t, nil, false)
	ctx := context.Background()

	rooms, err := c.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms.GetValues(), 1)
	r := rooms.GetValues()[0].GetStructValue().AsMap()
	assert.Equal(t, "r1", r["id"])
	assert.EqualValues(t, 2, r["participants"])
	assert.EqualValues(t, 1, r["hosts"])

	ps, err := c.ListParticipants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, ps.GetValues(), 2)
	first := ps.GetValues()[0].GetStructValue().AsMap()
	assert.Equal(t, "c1", first["id"])
	assert.Equal(t, "host", first["role"])

	_, err = c.ListParticipants(ctx, "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = c.ListParticipants(ctx, " ")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRoomAdmin_Auth(t *testing.T) {
	const secret = "s3cret"
	c := startServer(t, auth.NewVerifier(secret, "", ""), true)

	_, err := c.ListRooms(context.Background())
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	tok, err := auth.Sign(secret, "", "", auth.Identity{UserID: "admin"}, time.Minute, time.Now())
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+tok)
	_, err = c.ListRooms(ctx)
	assert.NoError(t, err)
}
