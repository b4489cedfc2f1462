package grpcapi

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"bidboard/internal/snapshot"
)

// Client calls the Snapshots service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to addr without transport security.
func Dial(addr string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return NewClient(conn), conn, nil
}

// Query runs a snapshot query on the server.
func (c *Client) Query(ctx context.Context, date, start, end string) (*snapshot.Result, error) {
	req, err := structpb.NewStruct(map[string]any{"date": date, "start": start, "end": end})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, queryMethod, req, out); err != nil {
		return nil, err
	}

	var res snapshot.Result
	if err := fromStruct(out, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Dates lists the dates the server has snapshots for.
func (c *Client) Dates(ctx context.Context) ([]string, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, datesMethod, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	var body struct {
		Dates []string `json:"dates"`
	}
	if err := fromStruct(out, &body); err != nil {
		return nil, err
	}
	return body.Dates, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding struct: %w", err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding struct: %w", err)
	}
	return nil
}
