// Package ipfs mirrors documents into a local Kubo repository by shelling
// out to the ipfs CLI. No daemon is needed; blocks are written to and read
// from the repo directly, and optionally pinned so garbage collection keeps
// them.
//
// Blocks use the mirror's CID contract (CIDv1, raw, sha2-256), so grids
// published with `gridstore hash` resolve from the repo and from any IPFS
// node it is connected to.
package ipfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/storage"
)

const defaultTimeout = 30 * time.Second

type Options struct {
	// Bin is the ipfs binary. Default: "ipfs" on PATH.
	Bin string
	// Env replaces the command environment, e.g. to set IPFS_PATH.
	Env []string
	// Pin pins blocks on Put.
	Pin bool
	// Timeout bounds each command. Default: 30s.
	Timeout time.Duration
}

// CAS is a storage.CAS over a local Kubo repository.
type CAS struct {
	opts Options
}

var _ storage.CAS = (*CAS)(nil)

func New(opts Options) *CAS {
	if opts.Bin == "" {
		opts.Bin = "ipfs"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &CAS{opts: opts}
}

func (c *CAS) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	out, err := c.run(data,
		"block", "put",
		"--quiet",
		"--cid-codec=raw",
		"--mhtype=sha2-256",
		"--mhlen=32",
		fmt.Sprintf("--pin=%t", c.opts.Pin),
	)
	if err != nil {
		return cid.Undef, err
	}
	got, err := cid.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return cid.Undef, fmt.Errorf("ipfs: unexpected block put output %q: %w", bytes.TrimSpace(out), err)
	}
	if !got.Equals(id) {
		return cid.Undef, fmt.Errorf("%w: repo stored %s, want %s", storage.ErrCIDMismatch, got, id)
	}
	return id, nil
}

func (c *CAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	out, err := c.run(nil, "block", "get", id.String())
	if err != nil {
		if isNotFound(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if !cidutil.Matches(id, out) {
		return nil, storage.ErrCIDMismatch
	}
	return out, nil
}

func (c *CAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := c.run(nil, "block", "stat", "--offline", id.String())
	return err == nil
}

func (c *CAS) run(stdin []byte, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.opts.Bin, args...)
	if c.opts.Env != nil {
		cmd.Env = c.opts.Env
	}
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	out, err := cmd.Output()
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("ipfs %s: %w", args[1], ctx.Err())
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if msg := strings.TrimSpace(string(ee.Stderr)); msg != "" {
			return nil, fmt.Errorf("ipfs %s: %s", args[1], msg)
		}
	}
	return nil, fmt.Errorf("ipfs %s: %w", args[1], err)
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "could not find")
}
