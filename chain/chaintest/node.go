// Package chaintest provides an in-process JSON-RPC node that serves the
// ERC725Y calls used by package chain.
package chaintest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Node is a fake execution client. Addresses registered with SetData behave
// as ERC725Y stores; any other address behaves like an EOA and returns empty
// call data.
type Node struct {
	URL     string
	ChainID int64

	mu       sync.Mutex
	stores   map[common.Address]map[common.Hash][]byte
	sent     []*types.Transaction
	pending  map[common.Hash]int
	reverted map[common.Hash]bool
	calls    int
	fail     bool
}

// NewNode starts a node and stops it when t finishes.
func NewNode(t testing.TB, chainID int64) *Node {
	t.Helper()
	n := &Node{
		ChainID:  chainID,
		stores:   make(map[common.Address]map[common.Hash][]byte),
		pending:  make(map[common.Hash]int),
		reverted: make(map[common.Hash]bool),
	}
	srv := httptest.NewServer(http.HandlerFunc(n.serve))
	t.Cleanup(srv.Close)
	n.URL = srv.URL
	return n
}

// SetData stores value under key for addr, turning addr into a store.
func (n *Node) SetData(addr common.Address, key common.Hash, value []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.stores[addr]
	if !ok {
		m = make(map[common.Hash][]byte)
		n.stores[addr] = m
	}
	m[key] = append([]byte(nil), value...)
}

// Data returns the stored value for key at addr.
func (n *Node) Data(addr common.Address, key common.Hash) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]byte(nil), n.stores[addr][key]...)
}

// Sent returns the transactions received via eth_sendRawTransaction.
func (n *Node) Sent() []*types.Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Transaction(nil), n.sent...)
}

// DelayReceipt makes the next polls for tx report "not found".
func (n *Node) DelayReceipt(tx common.Hash, polls int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending[tx] = polls
}

// Revert makes tx's receipt report failure.
func (n *Node) Revert(tx common.Hash) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reverted[tx] = true
}

// FailAll makes every call return a JSON-RPC error.
func (n *Node) FailAll(fail bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = fail
}

// Calls reports how many requests the node served.
func (n *Node) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (n *Node) serve(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls++
	fail := n.fail
	n.mu.Unlock()

	var (
		result interface{}
		err    error
	)
	if fail {
		err = fmt.Errorf("node unavailable")
	} else {
		result, err = n.dispatch(req)
	}

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	if err != nil {
		resp["error"] = rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) dispatch(req request) (interface{}, error) {
	switch req.Method {
	case "eth_chainId":
		return hexutil.EncodeBig(big.NewInt(n.ChainID)), nil
	case "eth_call":
		return n.ethCall(req.Params)
	case "eth_sendRawTransaction":
		return n.sendRaw(req.Params)
	case "eth_getTransactionReceipt":
		return n.receipt(req.Params)
	default:
		return nil, fmt.Errorf("method %s not supported", req.Method)
	}
}

var erc725y = func() abi.ABI {
	a, err := abi.JSON(strings.NewReader(`[
	  {"type":"function","name":"getData","inputs":[{"name":"k","type":"bytes32"}],"outputs":[{"name":"v","type":"bytes"}]},
	  {"type":"function","name":"getDataBatch","inputs":[{"name":"k","type":"bytes32[]"}],"outputs":[{"name":"v","type":"bytes[]"}]},
	  {"type":"function","name":"setData","inputs":[{"name":"k","type":"bytes32"},{"name":"v","type":"bytes"}],"outputs":[]}
	]`))
	if err != nil {
		panic(err)
	}
	return a
}()

func (n *Node) ethCall(params []json.RawMessage) (interface{}, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("missing call object")
	}
	var msg struct {
		To    common.Address `json:"to"`
		Input hexutil.Bytes  `json:"input"`
		Data  hexutil.Bytes  `json:"data"`
	}
	if err := json.Unmarshal(params[0], &msg); err != nil {
		return nil, err
	}
	input := msg.Input
	if len(input) == 0 {
		input = msg.Data
	}

	n.mu.Lock()
	store, isStore := n.stores[msg.To]
	n.mu.Unlock()
	if !isStore || len(input) < 4 {
		return hexutil.Bytes{}, nil
	}

	m, err := erc725y.MethodById(input[:4])
	if err != nil {
		return nil, fmt.Errorf("execution reverted")
	}
	args, err := m.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	var out []byte
	switch m.Name {
	case "getData":
		key := common.Hash(args[0].([32]byte))
		out, err = m.Outputs.Pack(store[key])
	case "getDataBatch":
		keys := args[0].([][32]byte)
		vals := make([][]byte, len(keys))
		for i, k := range keys {
			vals[i] = store[common.Hash(k)]
		}
		out, err = m.Outputs.Pack(vals)
	}
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(out), nil
}

func (n *Node) sendRaw(params []json.RawMessage) (interface{}, error) {
	var raw hexutil.Bytes
	if len(params) == 0 {
		return nil, fmt.Errorf("missing raw transaction")
	}
	if err := json.Unmarshal(params[0], &raw); err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, err
	}
	n.mu.Lock()
	n.sent = append(n.sent, tx)
	n.mu.Unlock()
	n.applySetData(tx)
	return tx.Hash(), nil
}

// applySetData executes a setData call against the destination store so
// later reads observe the write.
func (n *Node) applySetData(tx *types.Transaction) {
	data := tx.Data()
	if tx.To() == nil || len(data) < 4 {
		return
	}
	m, err := erc725y.MethodById(data[:4])
	if err != nil || m.Name != "setData" {
		return
	}
	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return
	}
	n.SetData(*tx.To(), common.Hash(args[0].([32]byte)), args[1].([]byte))
}

func (n *Node) receipt(params []json.RawMessage) (interface{}, error) {
	var h common.Hash
	if len(params) == 0 {
		return nil, fmt.Errorf("missing hash")
	}
	if err := json.Unmarshal(params[0], &h); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if left := n.pending[h]; left > 0 {
		n.pending[h] = left - 1
		return nil, nil
	}
	known := false
	for _, tx := range n.sent {
		if tx.Hash() == h {
			known = true
			break
		}
	}
	if !known && !n.reverted[h] {
		return nil, nil
	}
	status := types.ReceiptStatusSuccessful
	if n.reverted[h] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{
		Status:            status,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		Logs:              []*types.Log{},
		TxHash:            h,
		BlockNumber:       big.NewInt(1),
		EffectiveGasPrice: big.NewInt(1),
	}, nil
}
