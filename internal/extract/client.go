package extract

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/session-reasoner/internal/evidence"
)

// extractMethod is the unary RPC exposed by the extractor service. Request
// and response are both google.protobuf.Struct.
const extractMethod = "/reasoner.extractor.v1.Extractor/Extract"

// #region types
// Extractor turns free text into ontology signals.
type Extractor interface {
	Extract(ctx context.Context, text string) (Result, error)
}

// Service is the extractor RPC surface.
type Service interface {
	Extract(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// Result holds the mapped output of one extraction call.
type Result struct {
	Signals   []evidence.Signal
	Intensity string
	Unmapped  []string // extractor concepts with no ontology label
}

// #endregion types

// #region client-struct
// Client wraps the gRPC connection to the external extractor.
type Client struct {
	conn    *grpc.ClientConn
	svc     Service
	timeout time.Duration
}

type grpcService struct{ conn *grpc.ClientConn }

func (g grpcService) Extract(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := g.conn.Invoke(ctx, extractMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client-struct

// #region constructor
// NewClient connects to the extractor. A zero timeout leaves deadlines to
// the caller's context.
func NewClient(addr string, timeout time.Duration) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, svc: grpcService{conn: conn}, timeout: timeout}, nil
}

// NewClientWithService creates a Client over an injected service.
// Used for testing without a real gRPC connection.
func NewClientWithService(svc Service) *Client {
	return &Client{svc: svc}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region extract
// Extract sends free text to the extractor and maps the returned concepts
// onto ontology signals. Concepts without a label are reported in
// Result.Unmapped rather than failing the call.
func (c *Client) Extract(ctx context.Context, text string) (Result, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	req, err := structpb.NewStruct(map[string]any{"text": text})
	if err != nil {
		return Result{}, fmt.Errorf("extract request: %w", err)
	}
	resp, err := c.svc.Extract(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("extract rpc: %w", err)
	}
	return mapResponse(resp), nil
}

func mapResponse(resp *structpb.Struct) Result {
	fields := resp.GetFields()
	concepts := make(map[string][]string, len(groups))
	for _, group := range groups {
		for _, v := range fields[group.field].GetListValue().GetValues() {
			concepts[group.field] = append(concepts[group.field], v.GetStringValue())
		}
	}
	return mapConcepts(concepts, fields["intensity"].GetStringValue())
}

// #endregion extract
