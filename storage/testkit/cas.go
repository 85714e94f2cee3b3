package testkit

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// RunCASConformance checks the storage.CAS contract every mirror backend
// must honour.
func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte(`{"LSP28TheGrid":[{"title":"mirror","grid":[]}]}`)

		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := cidutil.CIDv1RawSHA256CID(want)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}

		gotID, err := cidutil.CIDv1RawSHA256CID(got)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID(got) failed: %v", err)
		}
		if gotID != id {
			t.Fatalf("Get returned bytes not matching requested CID")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("same bytes")

		id1, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := []byte("missing")
		id, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		_, err = cas.Get(id)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		_, err = cas.Put(b)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if cas.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("GetReturnsPrivateCopy", func(t *testing.T) {
		cas := newCAS(t)
		want := []byte("ipfs://bafkrei mirror object")
		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		got[0] ^= 0xff
		again, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get(2) failed: %v", err)
		}
		if !bytes.Equal(again, want) {
			t.Fatalf("stored object changed after caller mutated Get result")
		}
	})

	// The resolver writes fetched documents back from concurrent requests,
	// often the same popular grid at once.
	t.Run("ConcurrentPuts", func(t *testing.T) {
		cas := newCAS(t)
		docs := make([][]byte, 4)
		for i := range docs {
			docs[i] = []byte(fmt.Sprintf(`{"LSP28TheGrid":[{"title":"grid %d","grid":[]}]}`, i))
		}

		var wg sync.WaitGroup
		errs := make(chan error, 8*len(docs))
		for w := 0; w < 8; w++ {
			for _, d := range docs {
				wg.Add(1)
				go func(d []byte) {
					defer wg.Done()
					if _, err := cas.Put(d); err != nil {
						errs <- err
					}
				}(d)
			}
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent Put failed: %v", err)
		}
		for _, d := range docs {
			id, err := cidutil.CIDv1RawSHA256CID(d)
			if err != nil {
				t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
			}
			got, err := cas.Get(id)
			if err != nil || !bytes.Equal(got, d) {
				t.Fatalf("Get after concurrent Put: %q, %v", got, err)
			}
		}
	})
}
