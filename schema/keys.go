package schema

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Singleton keys are keccak256 of the key name.
var (
	// GridLayoutKey holds the LSP28TheGrid VerifiableURI.
	GridLayoutKey = common.HexToHash("0x724141d9918ce69e6b8afcf53a91748466086ba2c74b94cab43c649ae2ac23ff")
	// ProfileMetadataKey holds the LSP3Profile VerifiableURI.
	ProfileMetadataKey = common.HexToHash("0x5ef83ad9559033e6e941db7d7c495acdce616347d28e90c7ce47cbfcfcad3bc5")
)

const (
	GridLayoutName      = "LSP28TheGrid"
	ProfileMetadataName = "LSP3Profile"
)

// KeyFromName derives a Singleton ERC725Y key.
func KeyFromName(name string) common.Hash {
	return crypto.Keccak256Hash([]byte(name))
}

// KeyName returns the well-known name for key, or its hex form.
func KeyName(key common.Hash) string {
	switch key {
	case GridLayoutKey:
		return GridLayoutName
	case ProfileMetadataKey:
		return ProfileMetadataName
	default:
		return key.Hex()
	}
}
