// Package chain talks to ERC725Y key-value stores on LUKSO networks.
package chain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Network identifies a chain. It is passed explicitly to every read and
// write instead of being inferred from a connected wallet.
type Network struct {
	Name     string
	ChainID  int64
	RPCURL   string
	Explorer string
}

var (
	Mainnet = Network{
		Name:     "mainnet",
		ChainID:  42,
		RPCURL:   "https://rpc.mainnet.lukso.network",
		Explorer: "https://explorer.execution.mainnet.lukso.network",
	}
	Testnet = Network{
		Name:     "testnet",
		ChainID:  4201,
		RPCURL:   "https://rpc.testnet.lukso.network",
		Explorer: "https://explorer.execution.testnet.lukso.network",
	}
)

// Networks lists the known networks, mainnet first.
func Networks() []Network { return []Network{Mainnet, Testnet} }

// Lookup finds a network by name or decimal chain id. "" means mainnet.
func Lookup(s string) (Network, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Mainnet, nil
	}
	for _, n := range Networks() {
		if n.Name == s {
			return n, nil
		}
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n, ok := ByChainID(id); ok {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, s)
}

func ByChainID(id int64) (Network, bool) {
	for _, n := range Networks() {
		if n.ChainID == id {
			return n, true
		}
	}
	return Network{}, false
}

func (n Network) String() string { return n.Name }

// TxURL links a transaction on the network's block explorer.
func (n Network) TxURL(tx common.Hash) string {
	return strings.TrimRight(n.Explorer, "/") + "/tx/" + tx.Hex()
}

func (n Network) AddressURL(addr common.Address) string {
	return strings.TrimRight(n.Explorer, "/") + "/address/" + addr.Hex()
}
