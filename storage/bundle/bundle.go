// Package bundle packs mirror documents into a tar archive so a mirror can
// be seeded offline, for example with the catalog's grid documents before a
// deployment that cannot reach the gateway.
//
// Layout:
//
//	blocks/<cid>   document bytes, CIDv1 raw sha2-256
//	index.json     block list and labels (template ids); informational only
//
// Archives are deterministic: entries are sorted and headers normalized, so
// the same documents always produce the same bytes.
package bundle

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
)

const (
	FormatVersion = 1

	blocksDir = "blocks/"
	indexName = "index.json"
)

var epoch = time.Unix(0, 0).UTC()

// ErrUnknownEntry is returned by strict imports for entries outside the
// layout.
var ErrUnknownEntry = errors.New("bundle: unknown entry")

// Entry is a document to export. Label is optional; several labels may
// share a CID.
type Entry struct {
	Label string
	CID   cid.Cid
}

// Index describes an archive.
type Index struct {
	Version int          `json:"version"`
	Blocks  []IndexBlock `json:"blocks"`
	Labels  []IndexLabel `json:"labels,omitempty"`
}

type IndexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type IndexLabel struct {
	Label string `json:"label"`
	CID   string `json:"cid"`
}

// Export writes the documents for entries, read from cas, to w. Every
// document is checked against its CID before it is written.
func Export(w io.Writer, cas storage.CAS, entries []Entry) (*Index, error) {
	if cas == nil {
		return nil, errors.New("bundle: nil CAS")
	}
	ids := make(map[string]cid.Cid, len(entries))
	idx := &Index{Version: FormatVersion}
	for _, e := range entries {
		if !e.CID.Defined() {
			return nil, storage.ErrInvalidCID
		}
		ids[e.CID.String()] = e.CID
		if e.Label != "" {
			idx.Labels = append(idx.Labels, IndexLabel{Label: e.Label, CID: e.CID.String()})
		}
	}
	names := make([]string, 0, len(ids))
	for s := range ids {
		names = append(names, s)
	}
	sort.Strings(names)
	sort.Slice(idx.Labels, func(i, j int) bool {
		if idx.Labels[i].Label != idx.Labels[j].Label {
			return idx.Labels[i].Label < idx.Labels[j].Label
		}
		return idx.Labels[i].CID < idx.Labels[j].CID
	})

	tw := tar.NewWriter(w)
	for _, name := range names {
		id := ids[name]
		b, err := cas.Get(id)
		if err != nil {
			return nil, fmt.Errorf("bundle: %s: %w", name, err)
		}
		if !cidutil.Matches(id, b) {
			return nil, fmt.Errorf("bundle: %s: %w", name, storage.ErrCIDMismatch)
		}
		if err := writeFile(tw, blocksDir+name, b); err != nil {
			return nil, err
		}
		idx.Blocks = append(idx.Blocks, IndexBlock{CID: name, Size: len(b)})
	}

	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	if err := writeFile(tw, indexName, append(b, '\n')); err != nil {
		return nil, err
	}
	return idx, tw.Close()
}

type ImportOptions struct {
	// IgnoreUnknown skips entries outside the layout instead of failing.
	IgnoreUnknown bool
}

// Import stores every block of the archive in cas and returns the archive's
// index, or nil if it has none. Blocks are verified against their names.
func Import(r io.Reader, cas storage.CAS, opts ImportOptions) (*Index, error) {
	if cas == nil {
		return nil, errors.New("bundle: nil CAS")
	}
	var idx *Index
	seen := map[string]bool{}
	tr := tar.NewReader(r)
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return idx, nil
		}
		if err != nil {
			return nil, err
		}
		name, ok := cleanPath(h.Name)
		switch {
		case !ok:
			return nil, fmt.Errorf("bundle: invalid entry path %q", h.Name)
		case h.Typeflag != tar.TypeReg:
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("%w: %s (type %c)", ErrUnknownEntry, name, h.Typeflag)
		case name == indexName:
			idx = new(Index)
			if err := json.NewDecoder(tr).Decode(idx); err != nil {
				return nil, fmt.Errorf("bundle: %s: %w", indexName, err)
			}
			continue
		case !strings.HasPrefix(name, blocksDir):
			if opts.IgnoreUnknown {
				continue
			}
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, name)
		}

		id, err := cid.Decode(strings.TrimPrefix(name, blocksDir))
		if err != nil || !id.Defined() {
			return nil, fmt.Errorf("bundle: %s: %w", name, storage.ErrInvalidCID)
		}
		if seen[id.String()] {
			return nil, fmt.Errorf("bundle: duplicate block %s", id)
		}
		seen[id.String()] = true

		b, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		if !cidutil.Matches(id, b) {
			return nil, storage.ErrCIDMismatch
		}
		got, err := cas.Put(b)
		if err != nil {
			return nil, err
		}
		if !got.Equals(id) {
			return nil, storage.ErrCIDMismatch
		}
	}
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch,
		Typeflag: tar.TypeReg,
	}); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// cleanPath rejects absolute, empty and dot-dot paths.
func cleanPath(name string) (string, bool) {
	name = strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"), "./")
	if name == "" || strings.HasPrefix(name, "/") {
		return "", false
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return "", false
		}
	}
	return name, true
}
