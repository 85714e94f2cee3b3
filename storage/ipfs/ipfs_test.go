package ipfs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
	"xdao.co/gridstore/storage/casregistry"
)

// fakeKubo answers block put/get/stat from a directory. It cannot compute
// CIDs, so put echoes $FAKE_CID.
const fakeKubo = `#!/bin/sh
echo "$@" >> "$FAKE_DIR/args"
case "$1 $2" in
"block put") cat > "$FAKE_DIR/$FAKE_CID"; echo "$FAKE_CID" ;;
"block get")
  if [ -f "$FAKE_DIR/$3" ]; then cat "$FAKE_DIR/$3"; else echo "Error: block was not found locally (offline): ipld: could not find $3" >&2; exit 1; fi ;;
"block stat") [ -f "$FAKE_DIR/$4" ] || exit 1 ;;
*) echo "unexpected: $*" >&2; exit 2 ;;
esac
`

func newFake(t *testing.T, putCID string, pin bool) (*CAS, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ipfs")
	if err := os.WriteFile(bin, []byte(fakeKubo), 0o755); err != nil {
		t.Fatal(err)
	}
	return New(Options{
		Bin: bin,
		Env: []string{"PATH=" + os.Getenv("PATH"), "FAKE_DIR=" + dir, "FAKE_CID=" + putCID},
		Pin: pin,
	}), dir
}

func TestKubo_PutGetHas(t *testing.T) {
	doc := []byte(`{"LSP28TheGrid":[]}`)
	id, err := cidutil.CIDv1RawSHA256CID(doc)
	if err != nil {
		t.Fatal(err)
	}
	cas, dir := newFake(t, id.String(), true)

	if cas.Has(id) {
		t.Fatalf("Has before Put")
	}
	if _, err := cas.Get(id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Get before Put: %v", err)
	}
	got, err := cas.Put(doc)
	if err != nil || !got.Equals(id) {
		t.Fatalf("Put=%s,%v", got, err)
	}
	if !cas.Has(id) {
		t.Fatalf("Has after Put")
	}
	b, err := cas.Get(id)
	if err != nil || string(b) != string(doc) {
		t.Fatalf("Get=%q,%v", b, err)
	}

	args, _ := os.ReadFile(filepath.Join(dir, "args"))
	if !strings.Contains(string(args), "--pin=true") || !strings.Contains(string(args), "--cid-codec=raw") {
		t.Fatalf("unexpected put args:\n%s", args)
	}
}

func TestKubo_RejectsWrongCID(t *testing.T) {
	other, err := cidutil.CIDv1RawSHA256CID([]byte("other"))
	if err != nil {
		t.Fatal(err)
	}
	cas, _ := newFake(t, other.String(), false)
	if _, err := cas.Put([]byte("doc")); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("Put: got %v want ErrCIDMismatch", err)
	}
	// the repo now holds "doc" under other's name
	if _, err := cas.Get(other); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("Get: got %v want ErrCIDMismatch", err)
	}
}

func TestKubo_Registry(t *testing.T) {
	if _, _, err := casregistry.OpenWithConfig("kubo", casregistry.RoleDaemon, casregistry.Options{"pin": "maybe"}); err == nil {
		t.Fatalf("expected pin parse error")
	}
	cas, _, err := casregistry.OpenWithConfig("kubo", casregistry.RoleClient, casregistry.Options{"repo": "/tmp/repo", "timeout": "5s"})
	if err != nil {
		t.Fatal(err)
	}
	k := cas.(*CAS)
	if k.opts.Bin != "ipfs" || k.opts.Timeout.String() != "5s" || !strings.Contains(strings.Join(k.opts.Env, " "), "IPFS_PATH=/tmp/repo") {
		t.Fatalf("unexpected options %+v", k.opts)
	}
}
