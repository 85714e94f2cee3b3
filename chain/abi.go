package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// erc725yJSON is the subset of the ERC725Y interface this package uses.
const erc725yJSON = `[
  {"type":"function","name":"getData","stateMutability":"view",
   "inputs":[{"name":"dataKey","type":"bytes32"}],
   "outputs":[{"name":"dataValue","type":"bytes"}]},
  {"type":"function","name":"getDataBatch","stateMutability":"view",
   "inputs":[{"name":"dataKeys","type":"bytes32[]"}],
   "outputs":[{"name":"dataValues","type":"bytes[]"}]},
  {"type":"function","name":"setData","stateMutability":"payable",
   "inputs":[{"name":"dataKey","type":"bytes32"},{"name":"dataValue","type":"bytes"}],
   "outputs":[]},
  {"type":"function","name":"setDataBatch","stateMutability":"payable",
   "inputs":[{"name":"dataKeys","type":"bytes32[]"},{"name":"dataValues","type":"bytes[]"}],
   "outputs":[]}
]`

var erc725y = mustParseABI(erc725yJSON)

func mustParseABI(s string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return a
}

// Selector returns the 4-byte function selector of an ERC725Y method.
func Selector(method string) []byte {
	m, ok := erc725y.Methods[method]
	if !ok {
		return nil
	}
	return append([]byte(nil), m.ID...)
}

func PackGetData(key common.Hash) ([]byte, error) {
	return erc725y.Pack("getData", [32]byte(key))
}

func UnpackGetData(out []byte) ([]byte, error) {
	vals, err := erc725y.Unpack("getData", out)
	if err != nil {
		return nil, fmt.Errorf("chain: decode getData result: %w", err)
	}
	b, ok := vals[0].([]byte)
	if !ok {
		return nil, fmt.Errorf("chain: decode getData result: unexpected %T", vals[0])
	}
	return b, nil
}

func PackGetDataBatch(keys []common.Hash) ([]byte, error) {
	return erc725y.Pack("getDataBatch", toBytes32(keys))
}

func UnpackGetDataBatch(out []byte) ([][]byte, error) {
	vals, err := erc725y.Unpack("getDataBatch", out)
	if err != nil {
		return nil, fmt.Errorf("chain: decode getDataBatch result: %w", err)
	}
	b, ok := vals[0].([][]byte)
	if !ok {
		return nil, fmt.Errorf("chain: decode getDataBatch result: unexpected %T", vals[0])
	}
	return b, nil
}

// PackSetData builds setData(bytes32,bytes) calldata. value is written
// verbatim.
func PackSetData(key common.Hash, value []byte) ([]byte, error) {
	return erc725y.Pack("setData", [32]byte(key), value)
}

func PackSetDataBatch(keys []common.Hash, values [][]byte) ([]byte, error) {
	if len(keys) != len(values) {
		return nil, fmt.Errorf("chain: setDataBatch: %d keys but %d values", len(keys), len(values))
	}
	return erc725y.Pack("setDataBatch", toBytes32(keys), values)
}

// UnpackSetData is the inverse of PackSetData. It is used to check
// presigned transactions.
func UnpackSetData(calldata []byte) (common.Hash, []byte, error) {
	if len(calldata) < 4 {
		return common.Hash{}, nil, fmt.Errorf("chain: calldata too short")
	}
	m, err := erc725y.MethodById(calldata[:4])
	if err != nil || m.Name != "setData" {
		return common.Hash{}, nil, fmt.Errorf("chain: calldata is not setData")
	}
	vals, err := m.Inputs.Unpack(calldata[4:])
	if err != nil {
		return common.Hash{}, nil, fmt.Errorf("chain: decode setData: %w", err)
	}
	key, ok1 := vals[0].([32]byte)
	value, ok2 := vals[1].([]byte)
	if !ok1 || !ok2 {
		return common.Hash{}, nil, fmt.Errorf("chain: decode setData: unexpected argument types")
	}
	return common.Hash(key), value, nil
}

func toBytes32(keys []common.Hash) [][32]byte {
	out := make([][32]byte, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
