package schema

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"xdao.co/gridstore/chain"
)

// SetDataCalldata builds the calldata WritePointer submits. It is exposed
// for callers that sign outside this process.
func SetDataCalldata(key common.Hash, value []byte) ([]byte, error) {
	if len(value) == 0 {
		return nil, ErrEmptyValue
	}
	return chain.PackSetData(key, value)
}

// WritePointer replaces the value at key with value, unchanged. There is no
// merge; callers are expected to have warned about overwriting an existing
// value. The returned PendingWrite reports confirmation.
func (c *Client) WritePointer(ctx context.Context, profile common.Address, key common.Hash, value []byte, n chain.Network, ledger Ledger) (*PendingWrite, error) {
	fail := func(stage WriteStage, tx common.Hash, err error) (*PendingWrite, error) {
		werr := &WriteError{Stage: stage, Profile: profile, Key: key, Tx: tx, Err: err}
		c.log.Error("write failed", zap.Error(werr))
		return nil, werr
	}

	data, err := SetDataCalldata(key, value)
	if err != nil {
		return fail(StageEncode, common.Hash{}, err)
	}
	tx, err := ledger.Submit(ctx, n, profile, data)
	if err != nil {
		return fail(StageSubmit, common.Hash{}, err)
	}
	c.log.Info("write submitted",
		zap.String("profile", profile.Hex()),
		zap.String("key", KeyName(key)),
		zap.String("network", n.Name),
		zap.String("tx", tx.Hex()))

	return &PendingWrite{
		Network: n,
		Profile: profile,
		Key:     key,
		Value:   append([]byte(nil), value...),
		Tx:      tx,
		backend: c.backend,
		log:     c.log,
	}, nil
}

// PendingWrite is a submitted setData transaction.
type PendingWrite struct {
	Network chain.Network
	Profile common.Address
	Key     common.Hash
	Value   []byte
	Tx      common.Hash

	backend Backend
	log     *zap.Logger

	mu      sync.Mutex
	done    bool
	receipt *types.Receipt
	err     error
	settled atomic.Bool
}

// Wait blocks until the transaction is mined or ctx ends. Only a mined or
// reverted transaction is final, and that outcome is returned by every later
// call. A cancelled wait or a failed receipt poll is not final and may be
// retried. Concurrent waiters poll independently.
func (p *PendingWrite) Wait(ctx context.Context) (*types.Receipt, error) {
	p.mu.Lock()
	if p.done {
		r, err := p.receipt, p.err
		p.mu.Unlock()
		return r, err
	}
	p.mu.Unlock()

	r, err := p.backend.WaitReceipt(ctx, p.Network, p.Tx)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return nil, err
	case errors.Is(err, chain.ErrReverted):
		err = &WriteError{Stage: StageConfirm, Profile: p.Profile, Key: p.Key, Tx: p.Tx, Err: err}
	default:
		return nil, fmt.Errorf("schema: waiting for %s: %w", p.Tx.Hex(), err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.receipt, p.err
	}
	if err != nil {
		p.log.Error("write not confirmed", zap.Error(err))
	} else {
		p.log.Info("write confirmed", zap.String("tx", p.Tx.Hex()), zap.Uint64("block", blockOf(r)))
	}
	p.done, p.receipt, p.err = true, r, err
	p.settled.Store(true)
	return r, err
}

// Settled reports whether Wait has observed a final outcome. It never
// blocks.
func (p *PendingWrite) Settled() bool { return p.settled.Load() }

// ExplorerURL links the transaction on the network's block explorer.
func (p *PendingWrite) ExplorerURL() string { return p.Network.TxURL(p.Tx) }

func blockOf(r *types.Receipt) uint64 {
	if r == nil || r.BlockNumber == nil {
		return 0
	}
	return r.BlockNumber.Uint64()
}
