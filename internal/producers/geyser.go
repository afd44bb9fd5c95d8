package producers

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
)

// TransactionStream is the receive side of a per-program subscription.
type TransactionStream interface {
	Recv() (*TransactionUpdate, error)
}

// GeyserClient subscribes to confirmed transactions touching a single
// program id. Decoupling this as an interface (rather than a concrete
// *grpc.ClientConn type throughout the package) is what lets tests drive
// the producer loop against an in-process fake instead of a live node.
type GeyserClient interface {
	SubscribeTransactions(ctx context.Context, programID string, commitment string) (TransactionStream, error)
}

const subscribeMethod = "/solflow.geyser.Geyser/SubscribeTransactionUpdates"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// grpcGeyserClient implements GeyserClient over a real gRPC connection,
// using a JSON wire codec registered as a content-subtype rather than
// generated protobuf stubs — the decoding contract lives entirely in
// TransactionUpdate, so no .proto toolchain is required to exercise the
// transport.
type grpcGeyserClient struct {
	conn *grpc.ClientConn
}

// Dial connects to a Geyser-compatible endpoint. The caller owns the
// returned connection's lifetime via Close.
func Dial(ctx context.Context, target string) (*grpcGeyserClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial geyser endpoint %s: %w", target, err)
	}
	return &grpcGeyserClient{conn: conn}, nil
}

func (c *grpcGeyserClient) Close() error { return c.conn.Close() }

func (c *grpcGeyserClient) SubscribeTransactions(ctx context.Context, programID, commitment string) (TransactionStream, error) {
	stream, err := c.conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true}, subscribeMethod, grpc.CallContentSubtype("json"))
	if err != nil {
		return nil, fmt.Errorf("subscribe to program %s: %w", programID, err)
	}
	req := subscribeRequest{ProgramID: programID, Commitment: commitment}
	if err := stream.SendMsg(&req); err != nil {
		return nil, fmt.Errorf("send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &grpcTransactionStream{stream: stream}, nil
}

type subscribeRequest struct {
	ProgramID  string `json:"program_id"`
	Commitment string `json:"commitment"`
}

type grpcTransactionStream struct {
	stream grpc.ClientStream
}

func (s *grpcTransactionStream) Recv() (*TransactionUpdate, error) {
	var update TransactionUpdate
	if err := s.stream.RecvMsg(&update); err != nil {
		return nil, err
	}
	return &update, nil
}
