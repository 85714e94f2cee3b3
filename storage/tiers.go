package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
)

// NamedCAS is a backend together with the id it was configured under, used
// in error messages and per-backend results.
type NamedCAS struct {
	Name string
	CAS  CAS
}

// Tiered stacks mirrors from nearest to farthest, typically a local
// directory in front of a shared gridstore-casd. Writes go to the nearest
// tier only. With Promote set, a document found in a farther tier is copied
// into every nearer one so the next read stays local.
type Tiered struct {
	Tiers   []NamedCAS
	Promote bool
}

var _ CAS = Tiered{}

func (t Tiered) Put(doc []byte) (cid.Cid, error) {
	if len(t.Tiers) == 0 {
		return cid.Undef, ErrNoBackends
	}
	id, err := t.Tiers[0].CAS.Put(doc)
	if err != nil {
		return cid.Undef, fmt.Errorf("storage: mirror %q: %w", t.Tiers[0].Name, err)
	}
	return id, nil
}

func (t Tiered) Get(id cid.Cid) ([]byte, error) {
	doc, hit, err := scan(t.Tiers, id)
	if err != nil {
		return nil, err
	}
	if t.Promote {
		for _, near := range t.Tiers[:hit] {
			// Promotion is an optimization; the read already succeeded.
			_, _ = near.CAS.Put(doc)
		}
	}
	return doc, nil
}

func (t Tiered) Has(id cid.Cid) bool { return hasAny(t.Tiers, id) }

// Replicated writes every document to all mirrors and fails if any of them
// derives a different CID, so a misconfigured backend is caught at write
// time rather than on a later read.
type Replicated struct {
	Backends []NamedCAS
}

var _ CAS = Replicated{}

// PutAll writes doc to every backend and reports the CID each returned.
func (r Replicated) PutAll(doc []byte) (cid.Cid, map[string]cid.Cid, error) {
	if len(r.Backends) == 0 {
		return cid.Undef, nil, ErrNoBackends
	}
	want, err := cidutil.CIDv1RawSHA256CID(doc)
	if err != nil {
		return cid.Undef, nil, err
	}
	got := make(map[string]cid.Cid, len(r.Backends))
	for _, b := range r.Backends {
		if b.CAS == nil {
			return cid.Undef, got, fmt.Errorf("storage: mirror %q is not open", b.Name)
		}
		id, err := b.CAS.Put(doc)
		if err != nil {
			return cid.Undef, got, fmt.Errorf("storage: mirror %q: %w", b.Name, err)
		}
		got[b.Name] = id
		if !id.Equals(want) {
			return cid.Undef, got, fmt.Errorf("%w: mirror %q stored %s, want %s", ErrCIDMismatch, b.Name, id, want)
		}
	}
	return want, got, nil
}

func (r Replicated) Put(doc []byte) (cid.Cid, error) {
	id, _, err := r.PutAll(doc)
	return id, err
}

func (r Replicated) Get(id cid.Cid) ([]byte, error) {
	doc, _, err := scan(r.Backends, id)
	return doc, err
}

func (r Replicated) Has(id cid.Cid) bool { return hasAny(r.Backends, id) }

// scan returns the first hit and its index. An error other than ErrNotFound
// stops the scan: a broken mirror must not be hidden by a later one.
func scan(backends []NamedCAS, id cid.Cid) ([]byte, int, error) {
	for i, b := range backends {
		if b.CAS == nil {
			continue
		}
		doc, err := b.CAS.Get(id)
		switch {
		case err == nil:
			return doc, i, nil
		case IsNotFound(err):
			continue
		default:
			return nil, i, fmt.Errorf("storage: mirror %q: %w", b.Name, err)
		}
	}
	return nil, -1, ErrNotFound
}

func hasAny(backends []NamedCAS, id cid.Cid) bool {
	for _, b := range backends {
		if b.CAS != nil && b.CAS.Has(id) {
			return true
		}
	}
	return false
}
