package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/solatis/linewarden/internal/types"
	"github.com/solatis/linewarden/internal/verdict"
)

// Client calls a remote Validator service.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for target. Extra options are appended after the
// defaults (plaintext transport, JSON content subtype).
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	defaults := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}
	conn, err := grpc.NewClient(target, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// NewClient wraps an existing connection.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Validate implements bulk.Validator over gRPC.
func (c *Client) Validate(ctx context.Context, msisdn string, order *types.ClassifiedOrder) (verdict.Result, error) {
	var out verdict.Result
	req := &ValidateRequest{MSISDN: msisdn, Order: order}
	if err := c.conn.Invoke(ctx, ValidateMethod, req, &out, grpc.CallContentSubtype(CodecName)); err != nil {
		return verdict.Result{}, err
	}
	return out, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
