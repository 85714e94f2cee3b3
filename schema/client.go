// Package schema gives typed access to the two ERC725Y keys a grid
// marketplace cares about: the LSP28 grid pointer and LSP3 profile metadata.
//
// Read* methods surface every error. Lookup* methods are for passive display
// paths (search, previews) and collapse failures to nil after logging them.
// The write path never collapses anything.
package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"xdao.co/gridstore/chain"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/resolver"
)

// Backend is the key-value store transport. *chain.RPCStore implements it.
type Backend interface {
	GetData(ctx context.Context, n chain.Network, profile common.Address, key common.Hash) ([]byte, error)
	WaitReceipt(ctx context.Context, n chain.Network, tx common.Hash) (*types.Receipt, error)
}

// Ledger submits a state-changing call on behalf of the profile owner and
// returns the transaction hash. Signing happens behind this interface.
type Ledger interface {
	Submit(ctx context.Context, n chain.Network, to common.Address, data []byte) (common.Hash, error)
}

var _ Backend = (*chain.RPCStore)(nil)
var _ Ledger = chain.Presigned{}

type Client struct {
	backend  Backend
	resolver *resolver.Resolver
	log      *zap.Logger
}

func NewClient(backend Backend, r *resolver.Resolver, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{backend: backend, resolver: r, log: log}
}

// ReadRaw returns the value at key, or nil when it is unset.
func (c *Client) ReadRaw(ctx context.Context, profile common.Address, key common.Hash, n chain.Network) ([]byte, error) {
	b, err := c.backend.GetData(ctx, n, profile, key)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return b, nil
}

// ReadDecodedPointer returns the decoded VerifiableURI at key, or nil when
// the key is unset. Undecodable bytes are reported as
// pointer.ErrMalformedPointerValue.
func (c *Client) ReadDecodedPointer(ctx context.Context, profile common.Address, key common.Hash, n chain.Network) (*pointer.Pointer, error) {
	raw, err := c.ReadRaw(ctx, profile, key, n)
	if err != nil || raw == nil {
		return nil, err
	}
	p, err := pointer.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("schema: %s at %s: %w", KeyName(key), profile.Hex(), err)
	}
	return p, nil
}

// ReadProfileSummary resolves LSP3 metadata. It returns nil when the profile
// has no metadata or it cannot be fetched or parsed.
func (c *Client) ReadProfileSummary(ctx context.Context, profile common.Address, n chain.Network) *ProfileSummary {
	p := c.LookupPointer(ctx, profile, ProfileMetadataKey, n)
	if p == nil {
		return nil
	}
	doc := c.resolver.FetchJSON(ctx, p.Locator)
	if doc == nil {
		return nil
	}
	s, err := ParseProfileMetadata(doc)
	if err != nil {
		c.log.Warn("profile metadata unreadable",
			zap.String("profile", profile.Hex()),
			zap.String("locator", p.Locator),
			zap.Error(err))
		return nil
	}
	return s
}

// LookupRaw is ReadRaw for passive display: failures, including addresses
// without a store, are logged and reported as nil.
func (c *Client) LookupRaw(ctx context.Context, profile common.Address, key common.Hash, n chain.Network) []byte {
	b, err := c.ReadRaw(ctx, profile, key, n)
	if err != nil {
		c.logLookup(profile, key, n, err)
		return nil
	}
	return b
}

// LookupPointer is ReadDecodedPointer for passive display.
func (c *Client) LookupPointer(ctx context.Context, profile common.Address, key common.Hash, n chain.Network) *pointer.Pointer {
	p, err := c.ReadDecodedPointer(ctx, profile, key, n)
	if err != nil {
		c.logLookup(profile, key, n, err)
		return nil
	}
	return p
}

func (c *Client) logLookup(profile common.Address, key common.Hash, n chain.Network, err error) {
	level := c.log.Warn
	if errors.Is(err, chain.ErrNoStore) {
		level = c.log.Debug
	}
	level("lookup failed",
		zap.String("profile", profile.Hex()),
		zap.String("key", KeyName(key)),
		zap.String("network", n.Name),
		zap.Error(err))
}
