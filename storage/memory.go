package storage

import (
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
)

// MemoryCAS is a process-local CAS. Objects live until the process exits.
type MemoryCAS struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ CAS = (*MemoryCAS)(nil)

func NewMemory() *MemoryCAS {
	return &MemoryCAS{objects: make(map[string][]byte)}
}

func (m *MemoryCAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	key := id.KeyString()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[key]; ok {
		if string(existing) != string(bytes) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[key] = append([]byte(nil), bytes...)
	return id, nil
}

func (m *MemoryCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	b, ok := m.objects[id.KeyString()]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemoryCAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id.KeyString()]
	return ok
}
