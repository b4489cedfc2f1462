// Package grpcapi exposes the snapshot query over gRPC. Messages are
// google.protobuf.Struct values shaped like the HTTP JSON bodies, so no
// generated code is needed on either side.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "bidboard.v1.Snapshots"

const (
	queryMethod = "/" + ServiceName + "/Query"
	datesMethod = "/" + ServiceName + "/Dates"
)

// SnapshotsServer is the server API for the Snapshots service.
type SnapshotsServer interface {
	// Query takes {"date","start","end"} and returns
	// {"timestamps":[...],"data":{...}}.
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)

	// Dates returns {"dates":[...]}.
	Dates(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// ServiceDesc describes the Snapshots service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: queryHandler},
		{MethodName: "Dates", Handler: datesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bidboard/v1/snapshots.proto",
}

// RegisterSnapshotsServer registers srv on gs.
func RegisterSnapshotsServer(gs grpc.ServiceRegistrar, srv SnapshotsServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

func queryHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotsServer).Query(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: queryMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotsServer).Query(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func datesHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotsServer).Dates(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: datesMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SnapshotsServer).Dates(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
