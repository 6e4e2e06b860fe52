package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/timecard/internal/timecard/types"
)

// Client calls a remote timecard.v1.Attendance service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) SubmitSwipe(ctx context.Context, req types.SwipeRequest) (types.SwipeResponse, error) {
	var resp types.SwipeResponse
	err := c.call(ctx, methodSubmitSwipe, req, &resp)
	return resp, err
}

func (c *Client) GetStatus(ctx context.Context, badgeID string) (types.StatusResponse, error) {
	var resp types.StatusResponse
	err := c.call(ctx, methodGetStatus, map[string]any{"badge_id": badgeID}, &resp)
	return resp, err
}

func (c *Client) Heartbeat(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	var resp types.HeartbeatResponse
	err := c.call(ctx, methodHeartbeat, req, &resp)
	return resp, err
}

func (c *Client) ListReaders(ctx context.Context) (types.ReadersResponse, error) {
	var resp types.ReadersResponse
	err := c.call(ctx, methodListReaders, map[string]any{}, &resp)
	return resp, err
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req, err := types.ToStruct(in)
	if err != nil {
		return err
	}
	reply := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, reply); err != nil {
		return err
	}
	return types.FromStruct(reply, out)
}
