// Package storage holds the content mirror: documents (grid layouts, LSP3
// profile metadata) kept by CID so verified pointers resolve without a round
// trip to the IPFS gateway.
package storage

import "github.com/ipfs/go-cid"

// CAS is a content mirror keyed by CIDv1 (raw, sha2-256) of the stored bytes.
//
// Put is idempotent and never replaces a document. Get returns ErrNotFound
// for absent CIDs. Locators using other CIDs (Qm..., dag-pb) cannot be
// mirrored and always go to the gateway.
type CAS interface {
	Put(doc []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
