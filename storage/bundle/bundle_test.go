package bundle_test

import (
	"archive/tar"
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
	"xdao.co/gridstore/storage/bundle"
	"xdao.co/gridstore/storage/localfs"
)

func put(t *testing.T, cas storage.CAS, doc string) cid.Cid {
	t.Helper()
	id, err := cas.Put([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestExport_Deterministic(t *testing.T) {
	cas := storage.NewMemory()
	a := put(t, cas, `{"LSP28TheGrid":[]}`)
	b := put(t, cas, `{"LSP3Profile":{}}`)

	var outA, outB bytes.Buffer
	if _, err := bundle.Export(&outA, cas, []bundle.Entry{{Label: "z", CID: b}, {Label: "a", CID: a}}); err != nil {
		t.Fatal(err)
	}
	idx, err := bundle.Export(&outB, cas, []bundle.Entry{{Label: "a", CID: a}, {Label: "z", CID: b}, {CID: a}})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(outA.Bytes(), outB.Bytes()) {
		t.Fatalf("expected deterministic bundle bytes")
	}
	if len(idx.Blocks) != 2 || len(idx.Labels) != 2 || idx.Labels[0].Label != "a" {
		t.Fatalf("unexpected index %+v", idx)
	}
}

func TestImport_RoundTrip(t *testing.T) {
	src := storage.NewMemory()
	doc := `{"LSP28TheGrid":[{"grid":[]}]}`
	id := put(t, src, doc)

	var buf bytes.Buffer
	if _, err := bundle.Export(&buf, src, []bundle.Entry{{Label: "artist-showcase", CID: id}}); err != nil {
		t.Fatal(err)
	}

	dst, err := localfs.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	idx, err := bundle.Import(bytes.NewReader(buf.Bytes()), dst, bundle.ImportOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if idx == nil || len(idx.Labels) != 1 || idx.Labels[0].CID != id.String() {
		t.Fatalf("index not read back: %+v", idx)
	}
	got, err := dst.Get(id)
	if err != nil || string(got) != doc {
		t.Fatalf("Get=%q,%v", got, err)
	}
}

func TestExport_MissingBlock(t *testing.T) {
	id, err := cidutil.CIDv1RawSHA256CID([]byte("absent"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bundle.Export(&bytes.Buffer{}, storage.NewMemory(), []bundle.Entry{{CID: id}}); !storage.IsNotFound(err) {
		t.Fatalf("got %v want not found", err)
	}
}

func TestImport_Rejects(t *testing.T) {
	good := []byte("good")
	other, err := cidutil.CIDv1RawSHA256CID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		entry   string
		opts    bundle.ImportOptions
		wantErr error
	}{
		{"cid mismatch", "blocks/" + other.String(), bundle.ImportOptions{}, storage.ErrCIDMismatch},
		{"unknown entry", "notes.txt", bundle.ImportOptions{}, bundle.ErrUnknownEntry},
		{"unknown ignored", "notes.txt", bundle.ImportOptions{IgnoreUnknown: true}, nil},
	}
	for _, tc := range cases {
		_, err := bundle.Import(bytes.NewReader(makeTar(t, tc.entry, good)), storage.NewMemory(), tc.opts)
		if !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v want %v", tc.name, err, tc.wantErr)
		}
	}

	if _, err := bundle.Import(bytes.NewReader(makeTar(t, "../blocks/x", good)), storage.NewMemory(), bundle.ImportOptions{}); err == nil {
		t.Fatalf("expected path traversal to be rejected")
	}
}

func makeTar(t *testing.T, name string, content []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := tw.WriteHeader(&tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  time.Unix(0, 0).UTC(),
		Typeflag: tar.TypeReg,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}
