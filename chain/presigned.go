package chain

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Presigned submits a transaction that was signed outside this process, for
// example by a browser extension or hardware wallet given the calldata from
// `gridstore calldata`. It refuses to broadcast a transaction that does not
// match the requested write.
type Presigned struct {
	Store *RPCStore
	Tx    *types.Transaction
}

// DecodeSignedTx parses a 0x-prefixed RLP or typed-envelope transaction.
func DecodeSignedTx(s string) (*types.Transaction, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("chain: signed tx: %w", err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("chain: signed tx: %w", err)
	}
	return tx, nil
}

func (p Presigned) Submit(ctx context.Context, n Network, to common.Address, data []byte) (common.Hash, error) {
	if p.Tx == nil || p.Store == nil {
		return common.Hash{}, fmt.Errorf("chain: presigned ledger not configured")
	}
	if id := p.Tx.ChainId(); id != nil && id.Sign() != 0 && id.Int64() != n.ChainID {
		return common.Hash{}, fmt.Errorf("%w: chain id %s, want %d", ErrTxMismatch, id, n.ChainID)
	}
	if p.Tx.To() == nil || *p.Tx.To() != to {
		return common.Hash{}, fmt.Errorf("%w: destination", ErrTxMismatch)
	}
	if !bytes.Equal(p.Tx.Data(), data) {
		return common.Hash{}, fmt.Errorf("%w: calldata", ErrTxMismatch)
	}
	if err := p.Store.SendTransaction(ctx, n, p.Tx); err != nil {
		return common.Hash{}, err
	}
	return p.Tx.Hash(), nil
}
