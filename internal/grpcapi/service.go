// Package grpcapi serves the attendance API over gRPC.
//
// Messages are google.protobuf.Struct values carrying the same fields as the
// JSON API, so readers and tools need no generated stubs.
package grpcapi

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/timecard/internal/timecard/attendance"
	"github.com/BrandonDHaskell/timecard/internal/timecard/service"
	"github.com/BrandonDHaskell/timecard/internal/timecard/store"
	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

const ServiceName = "timecard.v1.Attendance"

const (
	methodSubmitSwipe = "/" + ServiceName + "/SubmitSwipe"
	methodGetStatus   = "/" + ServiceName + "/GetStatus"
	methodHeartbeat   = "/" + ServiceName + "/Heartbeat"
	methodListReaders = "/" + ServiceName + "/ListReaders"
)

// AttendanceServer is the server side of timecard.v1.Attendance.
type AttendanceServer interface {
	SubmitSwipe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Heartbeat(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListReaders(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AttendanceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SubmitSwipe", Handler: unaryHandler(methodSubmitSwipe, AttendanceServer.SubmitSwipe)},
		{MethodName: "GetStatus", Handler: unaryHandler(methodGetStatus, AttendanceServer.GetStatus)},
		{MethodName: "Heartbeat", Handler: unaryHandler(methodHeartbeat, AttendanceServer.Heartbeat)},
		{MethodName: "ListReaders", Handler: unaryHandler(methodListReaders, AttendanceServer.ListReaders)},
	},
	Metadata: "timecard/v1/attendance.proto",
}

type unaryMethod func(AttendanceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AttendanceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AttendanceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type Dependencies struct {
	Logger           *log.Logger
	SwipeService     *service.SwipeService
	HeartbeatService *service.HeartbeatService
	Engine           *attendance.Engine
}

// Server implements AttendanceServer over the services.
type Server struct {
	logger    *log.Logger
	swipes    *service.SwipeService
	heartbeat *service.HeartbeatService
	engine    *attendance.Engine
}

func NewServer(d Dependencies) *Server {
	return &Server{logger: d.Logger, swipes: d.SwipeService, heartbeat: d.HeartbeatService, engine: d.Engine}
}

// Register adds the attendance and health services to gs.
func (s *Server) Register(gs *grpc.Server) *health.Server {
	gs.RegisterService(&ServiceDesc, s)
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(gs, hs)
	return hs
}

// NewGRPCServer returns a grpc.Server with the attendance service, health
// service and request logging installed.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(loggingInterceptor(s.logger)))
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs
}

func (s *Server) SubmitSwipe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req types.SwipeRequest
	if err := types.FromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	resp, err := s.swipes.Handle(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	if !resp.Known {
		return nil, status.Errorf(codes.PermissionDenied, "reader %q is not commissioned", resp.ReaderID)
	}
	return types.ToStruct(resp)
}

func (s *Server) GetStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	badgeID := in.GetFields()["badge_id"].GetStringValue()
	snap, err := s.engine.Status(ctx, badgeID)
	if err != nil {
		return nil, toStatus(err)
	}
	return types.ToStruct(types.StatusResponse{
		BadgeID:    snap.BadgeID,
		State:      string(snap.State),
		Holder:     snap.HolderName,
		AsOf:       formatTime(snap.AsOf),
		Pending:    snap.Pending,
		ServerTime: formatTime(timeNow()),
	})
}

func (s *Server) Heartbeat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req types.HeartbeatRequest
	if err := types.FromStruct(in, &req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	resp, err := s.heartbeat.Record(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	return types.ToStruct(resp)
}

func (s *Server) ListReaders(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	readers, err := s.heartbeat.Readers(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return types.ToStruct(types.ReadersResponse{Readers: readers, ServerTime: formatTime(timeNow())})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidReaderID),
		errors.Is(err, service.ErrInvalidCardID),
		errors.Is(err, attendance.ErrInvalidBadgeID),
		errors.Is(err, attendance.ErrInvalidAction):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, attendance.ErrStatusPending):
		return status.Error(codes.Unavailable, service.ReasonStatusPending+": "+err.Error())
	case errors.Is(err, store.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
