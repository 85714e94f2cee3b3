// Package pointer implements the VerifiableURI value stored under ERC725Y data
// keys: a content locator optionally bound to a keccak256 digest of the content.
//
// Wire layout:
//
//	unverified: 0x0000 0000 <locator bytes>
//	verified:   0x0000 <method:4> <length:2> <digest:length> <locator bytes>
//
// The package is pure: no I/O and no global state.
package pointer

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// HashSize is the digest length of every supported verification method.
const HashSize = 32

// Method identifies how the referenced content can be verified.
type Method uint32

const (
	// MethodNone marks an unverified pointer.
	MethodNone Method = 0x00000000
	// MethodKeccak256UTF8 is bytes4(keccak256("keccak256(utf8)")).
	MethodKeccak256UTF8 Method = 0x6f357c6a
	// MethodKeccak256Bytes is bytes4(keccak256("keccak256(bytes)")).
	MethodKeccak256Bytes Method = 0x8019f9b1
)

func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodKeccak256UTF8:
		return "keccak256(utf8)"
	case MethodKeccak256Bytes:
		return "keccak256(bytes)"
	default:
		return fmt.Sprintf("unknown(0x%08x)", uint32(m))
	}
}

func (m Method) known() bool {
	switch m {
	case MethodNone, MethodKeccak256UTF8, MethodKeccak256Bytes:
		return true
	}
	return false
}

// Scheme is the addressing scheme of a locator.
type Scheme string

const (
	SchemeContentAddressed Scheme = "ipfs"
	SchemeHTTP             Scheme = "http"
)

// IPFSPrefix is the URI prefix of content-addressed locators.
const IPFSPrefix = "ipfs://"

// Pointer is a decoded VerifiableURI.
type Pointer struct {
	Method  Method
	Hash    []byte // nil when Method == MethodNone
	Locator string
}

// Verified reports whether the pointer carries an integrity digest.
func (p Pointer) Verified() bool { return p.Method != MethodNone && len(p.Hash) > 0 }

// Scheme classifies the locator.
func (p Pointer) Scheme() Scheme { return SchemeOf(p.Locator) }

// HashHex returns the digest as 0x-prefixed hex, or "" when unverified.
func (p Pointer) HashHex() string {
	if !p.Verified() {
		return ""
	}
	return "0x" + hex.EncodeToString(p.Hash)
}

// Verify checks content against the pointer digest. Unverified pointers accept
// any content.
func (p Pointer) Verify(content []byte) error {
	if !p.Verified() {
		return nil
	}
	if !bytes.Equal(Keccak256(content), p.Hash) {
		return ErrHashMismatch
	}
	return nil
}

// Encode returns the canonical bytes for p.
func (p Pointer) Encode() ([]byte, error) {
	if !p.Verified() {
		return Encode(p.Locator, nil)
	}
	return encodeWith(p.Method, p.Locator, p.Hash)
}

// SchemeOf classifies a locator string.
func SchemeOf(locator string) Scheme {
	if strings.HasPrefix(locator, IPFSPrefix) {
		return SchemeContentAddressed
	}
	return SchemeHTTP
}

// Keccak256 returns the legacy Keccak-256 digest used by LSP2 verification.
func Keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write(data)
	return h.Sum(nil)
}
