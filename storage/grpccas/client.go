package grpccas

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/collapse/cert"
	"xdao.co/collapse/digest"
	"xdao.co/collapse/storage"
	"xdao.co/collapse/storage/certstore"
)

// Client implements storage.CAS over the CAS gRPC service and adds remote
// chain verification. Every reply is re-checked against the CID asked for.
type Client struct {
	cc *grpc.ClientConn

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	// Timeout bounds the initial dial when non-zero.
	Timeout time.Duration
	// MaxMsgBytes caps both directions when non-zero.
	MaxMsgBytes int
	// Extra is appended last, e.g. a context dialer in tests.
	Extra []grpc.DialOption
}

func (o DialOptions) grpcOptions() []grpc.DialOption {
	out := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if o.MaxMsgBytes > 0 {
		out = append(out, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(o.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(o.MaxMsgBytes),
		))
	}
	return append(out, o.Extra...)
}

func Dial(target string, opts DialOptions) (*Client, error) {
	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	cc, err := grpc.DialContext(ctx, target, opts.grpcOptions()...)
	if err != nil {
		return nil, err
	}
	return NewClient(cc), nil
}

// NewClient wraps an existing connection. Close closes cc.
func NewClient(cc *grpc.ClientConn) *Client { return &Client{cc: cc} }

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// call runs fn under the per-RPC timeout. A nil client or connection fails
// with storage.ErrNoBackends.
func (c *Client) call(ctx context.Context, fn func(context.Context) error) error {
	if c == nil || c.cc == nil {
		return storage.ErrNoBackends
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return mapRPC(fn(ctx))
}

func (c *Client) Put(data []byte) (cid.Cid, error) {
	return c.PutContext(context.Background(), data)
}

// PutContext is Put bounded by ctx as well as Timeout.
func (c *Client) PutContext(ctx context.Context, data []byte) (cid.Cid, error) {
	expected, err := digest.CIDOf(data)
	if err != nil {
		return cid.Undef, err
	}
	var reply *wrapperspb.StringValue
	err = c.call(ctx, func(ctx context.Context) (err error) {
		reply, err = invoke[wrapperspb.StringValue](ctx, c.cc, "Put", wrapperspb.Bytes(data))
		return err
	})
	if err != nil {
		return cid.Undef, err
	}
	id, err := cid.Decode(reply.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	if id != expected {
		return cid.Undef, storage.ErrCIDMismatch
	}
	return id, nil
}

func (c *Client) Get(id cid.Cid) ([]byte, error) {
	return c.GetContext(context.Background(), id)
}

// GetContext is Get bounded by ctx as well as Timeout.
func (c *Client) GetContext(ctx context.Context, id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	var reply *wrapperspb.BytesValue
	err := c.call(ctx, func(ctx context.Context) (err error) {
		reply, err = invoke[wrapperspb.BytesValue](ctx, c.cc, "Get", wrapperspb.String(id.String()))
		return err
	})
	if err != nil {
		return nil, err
	}
	b := reply.GetValue()
	got, err := digest.CIDOf(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

// Has reports false on any transport error.
func (c *Client) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	var reply *wrapperspb.BoolValue
	err := c.call(context.Background(), func(ctx context.Context) (err error) {
		reply, err = invoke[wrapperspb.BoolValue](ctx, c.cc, "Has", wrapperspb.String(id.String()))
		return err
	})
	return err == nil && reply.GetValue()
}

// VerifyChain asks the server to verify the chain stored at id. The reply is
// not trusted: the chain hash is rebuilt from the returned items and must
// match both the server's claim and the digest id carries.
func (c *Client) VerifyChain(ctx context.Context, id cid.Cid) (*certstore.ChainReport, error) {
	want, err := digest.FromCID(id)
	if err != nil {
		return nil, storage.ErrInvalidCID
	}
	var reply *structpb.Struct
	err = c.call(ctx, func(ctx context.Context) (err error) {
		reply, err = invoke[structpb.Struct](ctx, c.cc, "VerifyChain", wrapperspb.String(id.String()))
		return err
	})
	if err != nil {
		return nil, err
	}
	return reportFromStruct(want, reply)
}

func reportFromStruct(want digest.Digest, st *structpb.Struct) (*certstore.ChainReport, error) {
	fields := st.GetFields()
	var items, missing []cert.Item
	for _, v := range fields["items"].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		it := cert.Item{Name: f["name"].GetStringValue(), HashHex: f["hash"].GetStringValue()}
		items = append(items, it)
		if !f["present"].GetBoolValue() {
			missing = append(missing, it)
		}
	}
	ch := cert.BuildChain(items)
	if ch.Hash != want || ch.HashHex() != fields["chain_hash"].GetStringValue() {
		return nil, storage.ErrCIDMismatch
	}
	return &certstore.ChainReport{Chain: ch, Missing: missing}, nil
}
