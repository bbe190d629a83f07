package grpcx

import (
	"context"
	"errors"
	"strings"

	"github.com/cwrk-planet/collab-service/internal/domain"
	"github.com/cwrk-planet/collab-service/internal/room"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "collab.admin.v1.RoomAdmin"

const (
	methodListRooms        = "/" + ServiceName + "/ListRooms"
	methodListParticipants = "/" + ServiceName + "/ListParticipants"
)

// RoomAdminServer — read-only admin API живых комнат.
// Сообщения — well-known types, поэтому .proto и codegen не нужны.
type RoomAdminServer interface {
	ListRooms(ctx context.Context, in *emptypb.Empty) (*structpb.ListValue, error)
	ListParticipants(ctx context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error)
}

type RoomReader interface {
	ListRooms() []room.RoomSummary
	Participants(roomID string) ([]domain.Participant, error)
}

type Server struct {
	rooms RoomReader
}

func NewServer(rooms RoomReader) *Server {
	return &Server{rooms: rooms}
}

func Register(grpcServer grpc.ServiceRegistrar, s RoomAdminServer) {
	grpcServer.RegisterService(&roomAdminDesc, s)
}

func (s *Server) ListRooms(_ context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	rooms := s.rooms.ListRooms()
	items := make([]any, 0, len(rooms))
	for _, r := range rooms {
		items = append(items, map[string]any{
			"id":           r.ID,
			"participants": r.Participants,
			"hosts":        r.Hosts,
		})
	}
	return toList(items)
}

func (s *Server) ListParticipants(_ context.Context, in *wrapperspb.StringValue) (*structpb.ListValue, error) {
	roomID := strings.TrimSpace(in.GetValue())
	if roomID == "" {
		return nil, status.Error(codes.InvalidArgument, "room id is required")
	}
	ps, err := s.rooms.Participants(roomID)
	if err != nil {
		return nil, mapErr(err)
	}
	items := make([]any, 0, len(ps))
	for _, p := range ps {
		items = append(items, map[string]any{
			"id":       p.ConnID,
			"username": p.DisplayName,
			"role":     string(p.Role),
			"userId":   p.DurableUserID,
		})
	}
	return toList(items)
}

func toList(items []any) (*structpb.ListValue, error) {
	lv, err := structpb.NewList(items)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return lv, nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrRoomNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// -------- service descriptor --------

func listRoomsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomAdminServer).ListRooms(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListRooms}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomAdminServer).ListRooms(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listParticipantsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RoomAdminServer).ListParticipants(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListParticipants}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RoomAdminServer).ListParticipants(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

var roomAdminDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RoomAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListRooms", Handler: listRoomsHandler},
		{MethodName: "ListParticipants", Handler: listParticipantsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "collab/admin/v1/room_admin.proto",
}

// -------- client --------

type RoomAdminClient struct {
	cc grpc.ClientConnInterface
}

func NewRoomAdminClient(cc grpc.ClientConnInterface) *RoomAdminClient {
	return &RoomAdminClient{cc: cc}
}

func (c *RoomAdminClient) ListRooms(ctx context.Context, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodListRooms, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RoomAdminClient) ListParticipants(ctx context.Context, roomID string, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, methodListParticipants, wrapperspb.String(roomID), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
