package cidutil

import (
	"strings"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const ipfsScheme = "ipfs://"

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	id, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// ParseLocator extracts the root CID of an ipfs:// locator. The remainder
// (path and query, if any) is returned verbatim. ok is false for locators of
// any other scheme or with an undecodable root.
func ParseLocator(locator string) (id cid.Cid, rest string, ok bool) {
	if !strings.HasPrefix(locator, ipfsScheme) {
		return cid.Undef, "", false
	}
	suffix := strings.TrimPrefix(locator, ipfsScheme)
	root := suffix
	if i := strings.IndexAny(suffix, "/?#"); i >= 0 {
		root, rest = suffix[:i], suffix[i:]
	}
	id, err := cid.Decode(root)
	if err != nil || !id.Defined() {
		return cid.Undef, "", false
	}
	return id, rest, true
}

// IsRawSHA256 reports whether id addresses raw bytes hashed with sha2-256,
// i.e. whether a fetched body can be checked against it byte for byte.
func IsRawSHA256(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	p := id.Prefix()
	return p.Codec == cid.Raw && p.MhType == multihash.SHA2_256
}

// Matches reports whether data hashes to id. Only meaningful for raw CIDs;
// for dag-pb (CIDv0 "Qm...") ids the block encoding differs from file bytes.
func Matches(id cid.Cid, data []byte) bool {
	if !IsRawSHA256(id) {
		return false
	}
	got, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return false
	}
	return got.Equals(id)
}
