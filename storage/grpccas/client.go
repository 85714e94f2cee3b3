package grpccas

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
)

// DefaultTimeout bounds each mirror RPC. The mirror sits in front of the
// gateway, so a slow daemon must fail fast and let resolution fall through.
const DefaultTimeout = 5 * time.Second

// Client is a storage.CAS backed by a gridstore-casd daemon.
type Client struct {
	cc     *grpc.ClientConn
	client MirrorClient
	maxMsg int

	// Timeout applies per RPC. Dial sets DefaultTimeout; zero disables it.
	Timeout time.Duration
}

var _ storage.CAS = (*Client)(nil)

type DialOptions struct {
	// MaxMsgBytes caps documents in both directions when non-zero. Larger
	// documents are refused locally instead of by the daemon.
	MaxMsgBytes int

	// Extra is appended to the default dial options.
	Extra []grpc.DialOption
}

// Dial creates a client for target. The connection is established lazily on
// the first RPC.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUserAgent("gridstore-mirror"),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts, grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
			grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
		))
	}
	dialOpts = append(dialOpts, opts.Extra...)

	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{
		cc:      cc,
		client:  NewMirrorClient(cc),
		maxMsg:  opts.MaxMsgBytes,
		Timeout: DefaultTimeout,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

// Put stores doc remotely and checks the daemon derived the same CID.
func (c *Client) Put(doc []byte) (cid.Cid, error) {
	if c == nil || c.client == nil {
		return cid.Undef, storage.ErrNoBackends
	}
	if c.maxMsg > 0 && len(doc) > c.maxMsg {
		return cid.Undef, fmt.Errorf("grpccas: document of %d bytes exceeds max_msg_bytes %d", len(doc), c.maxMsg)
	}
	want, err := cidutil.CIDv1RawSHA256CID(doc)
	if err != nil {
		return cid.Undef, err
	}

	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Put(ctx, wrapperspb.Bytes(doc))
	if err != nil {
		return cid.Undef, mapRPC(err)
	}
	id, err := cid.Decode(reply.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	if !id.Equals(want) {
		return cid.Undef, fmt.Errorf("%w: daemon stored %s, want %s", storage.ErrCIDMismatch, id, want)
	}
	return id, nil
}

// Get fetches and re-verifies a document; the daemon is not trusted.
func (c *Client) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, mapRPC(err)
	}
	doc := reply.GetValue()
	if !cidutil.Matches(id, doc) {
		return nil, storage.ErrCIDMismatch
	}
	return doc, nil
}

// Has reports false when the daemon is unreachable.
func (c *Client) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	ctx, cancel := c.ctx()
	defer cancel()
	reply, err := c.client.Has(ctx, wrapperspb.String(id.String()))
	return err == nil && reply.GetValue()
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), c.Timeout)
}
