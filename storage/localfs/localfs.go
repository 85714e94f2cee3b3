// Package localfs keeps the content mirror in a local directory, one
// read-only file per document.
package localfs

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
)

const tmpPrefix = ".put-"

// CAS stores documents under <root>/<shard>/<cid>, where shard is the last
// two characters of the CID. Every CIDv1 raw CID starts with "bafkrei", so
// the prefix would put everything in one directory.
type CAS struct {
	root string
}

var _ storage.CAS = (*CAS)(nil)

// New opens a mirror rooted at root, creating the directory if needed.
func New(root string) (*CAS, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &CAS{root: root}, nil
}

// Put writes doc through a temporary file and a rename, so readers never see
// a partial document. A document already present must match byte for byte.
func (c *CAS) Put(doc []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(doc)
	if err != nil {
		return cid.Undef, err
	}
	path := c.pathFor(id)
	if existing, err := os.ReadFile(path); err == nil {
		if !bytes.Equal(existing, doc) {
			return cid.Undef, storage.ErrImmutable
		}
		return id, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return cid.Undef, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cid.Undef, err
	}
	f, err := os.CreateTemp(dir, tmpPrefix+"*")
	if err != nil {
		return cid.Undef, err
	}
	tmp := f.Name()
	if err := writeAndSync(f, doc); err != nil {
		_ = os.Remove(tmp)
		return cid.Undef, err
	}
	if err := os.Chmod(tmp, 0o444); err != nil {
		_ = os.Remove(tmp)
		return cid.Undef, err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return cid.Undef, err
	}
	return id, nil
}

// Get re-hashes the file so on-disk corruption surfaces as ErrCIDMismatch.
func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(c.pathFor(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !cidutil.Matches(id, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(c.pathFor(id))
	return err == nil
}

// Len reports how many documents are mirrored under root. Leftovers of
// interrupted writes are not counted.
func (c *CAS) Len() (int, error) {
	n := 0
	err := filepath.WalkDir(c.root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !strings.HasPrefix(d.Name(), tmpPrefix) {
			n++
		}
		return nil
	})
	return n, err
}

func writeAndSync(f *os.File, b []byte) error {
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (c *CAS) pathFor(id cid.Cid) string {
	s := id.String()
	if len(s) < 2 {
		return filepath.Join(c.root, s)
	}
	return filepath.Join(c.root, s[len(s)-2:], s)
}
