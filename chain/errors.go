package chain

import "errors"

var (
	ErrUnknownNetwork = errors.New("chain: unknown network")
	// ErrNoStore means the address answered getData with no return data,
	// which is what an EOA or a contract without ERC725Y does.
	ErrNoStore = errors.New("chain: no key-value store at address")
	// ErrReverted means a mined transaction has status 0.
	ErrReverted = errors.New("chain: transaction reverted")
	// ErrTxMismatch means a presigned transaction does not carry the expected
	// destination or calldata.
	ErrTxMismatch = errors.New("chain: transaction does not match request")
)
