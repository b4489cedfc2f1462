package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"bidboard/internal/snapshot"
)

// Server implements SnapshotsServer on top of a snapshot.Service.
type Server struct {
	snapshots *snapshot.Service
	index     *snapshot.Index
	log       *slog.Logger
}

var _ SnapshotsServer = (*Server)(nil)

// NewServer creates a gRPC server backed by svc. idx may be nil, in which
// case Dates scans the directory on every call.
func NewServer(svc *snapshot.Service, idx *snapshot.Index, log *slog.Logger) *Server {
	return &Server{snapshots: svc, index: idx, log: log}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	RegisterSnapshotsServer(gs, s)
}

// NewGRPCServer returns a grpc.Server with request logging and the
// Snapshots service registered.
func (s *Server) NewGRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.logUnary))
	gs := grpc.NewServer(opts...)
	s.RegisterGRPC(gs)
	return gs
}

// Query implements SnapshotsServer.
func (s *Server) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	date := f["date"].GetStringValue()
	start := f["start"].GetStringValue()
	end := f["end"].GetStringValue()

	res, err := s.snapshots.Query(ctx, date, start, end)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := resultToStruct(res)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding result: %v", err)
	}
	return out, nil
}

// Dates implements SnapshotsServer.
func (s *Server) Dates(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var dates []string
	if s.index != nil {
		dates = s.index.Dates()
	} else {
		var err error
		dates, err = snapshot.ListDates(s.snapshots.Dir())
		if err != nil {
			return nil, status.Errorf(codes.Internal, "listing dates: %v", err)
		}
	}
	list := make([]any, len(dates))
	for i, d := range dates {
		list[i] = d
	}
	return structpb.NewStruct(map[string]any{"dates": list})
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Info("grpc request",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start))
	return resp, err
}

// toStatus maps snapshot errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, snapshot.ErrMissingParameter):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, snapshot.ErrNoDataForDate), errors.Is(err, snapshot.ErrNoDataInRange):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

func resultToStruct(res *snapshot.Result) (*structpb.Struct, error) {
	timestamps := make([]any, len(res.Timestamps))
	for i, ts := range res.Timestamps {
		timestamps[i] = ts
	}

	data := make(map[string]any, len(res.Data))
	for ts, table := range res.Data {
		rows := make([]any, len(table))
		for r, row := range table {
			cells := make([]any, len(row))
			for c, cell := range row {
				if cell != nil {
					cells[c] = *cell
				}
			}
			rows[r] = cells
		}
		data[ts] = rows
	}

	return structpb.NewStruct(map[string]any{
		"timestamps": timestamps,
		"data":       data,
	})
}
