package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/model"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/resolver"
	"xdao.co/gridstore/schema"
)

func (a *app) encodeCmd() *cobra.Command {
	var hashHex, file string
	cmd := &cobra.Command{
		Use:   "encode <locator>",
		Short: "Encode a locator as a VerifiableURI value",
		Long: `Encode prints the hex value to store under LSP28TheGrid.

Without --hash or --file the value is unverified. --file hashes the file with
keccak256, which must be the exact bytes the locator serves.`,
		Args: exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var hash []byte
			switch {
			case hashHex != "" && file != "":
				return usagef("--hash and --file are mutually exclusive")
			case hashHex != "":
				h, err := pointer.ParseHash(hashHex)
				if err != nil {
					return usageError{err}
				}
				hash = h
			case file != "":
				b, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				hash = pointer.Keccak256(b)
			}
			out, err := pointer.EncodeHex(args[0], hash)
			if err != nil {
				return usageError{err}
			}
			_, err = fmt.Fprintln(a.out, out)
			return err
		},
	}
	cmd.Flags().StringVar(&hashHex, "hash", "", "keccak256 digest of the content (32 bytes hex)")
	cmd.Flags().StringVar(&file, "file", "", "compute the digest from this file")
	return cmd
}

func (a *app) decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode a VerifiableURI value",
		Args:  exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			p, err := pointer.DecodeHex(args[0])
			if err != nil {
				return usageError{err}
			}
			gateway := a.cfg.Gateway
			return a.printJSON(model.FromPointer(p, func(loc string) string {
				return resolver.ToFetchableURL(gateway, loc)
			}))
		},
	}
}

type hashOutput struct {
	Keccak256 string `json:"keccak256"`
	CID       string `json:"cid"`
	Locator   string `json:"locator"`
	Value     string `json:"value"`
	Mirrored  bool   `json:"mirrored,omitempty"`
}

func (a *app) hashCmd() *cobra.Command {
	var mirror bool
	cmd := &cobra.Command{
		Use:   "hash <file>",
		Short: "Print the digest, CID and pointer value for a grid file",
		Long: `Hash prints what a catalog entry for file needs: its keccak256 digest,
its CIDv1 (raw, sha2-256), and the verified value for ipfs://<cid>.

With --mirror the file is also stored in the configured content mirror, so
the value resolves before the file is pinned anywhere else.`,
		Args: exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			id, err := cidutil.CIDv1RawSHA256CID(b)
			if err != nil {
				return err
			}
			digest := pointer.Keccak256(b)
			locator := "ipfs://" + id.String()
			value, err := pointer.EncodeHex(locator, digest)
			if err != nil {
				return err
			}
			out := hashOutput{
				Keccak256: model.Hex(digest),
				CID:       id.String(),
				Locator:   locator,
				Value:     value,
			}
			if mirror {
				cas, err := a.openMirror()
				if err != nil {
					return err
				}
				got, err := cas.Put(b)
				if err != nil {
					return fmt.Errorf("mirror: %w", err)
				}
				if !got.Equals(id) {
					return fmt.Errorf("mirror stored %s, want %s", got, id)
				}
				out.Mirrored = true
			}
			return a.printJSON(out)
		},
	}
	cmd.Flags().BoolVar(&mirror, "mirror", false, "store the file in the configured mirror")
	return cmd
}

// parseKey accepts a well-known key name or a 32-byte hex key.
func parseKey(s string) (common.Hash, error) {
	switch s {
	case "", schema.GridLayoutName:
		return schema.GridLayoutKey, nil
	case schema.ProfileMetadataName:
		return schema.ProfileMetadataKey, nil
	}
	b, err := pointer.ParseHex(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, usagef("invalid key %q: want %s, %s or 32 bytes hex", s, schema.GridLayoutName, schema.ProfileMetadataName)
	}
	return common.BytesToHash(b), nil
}

func (a *app) calldataCmd() *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "calldata <value-hex>",
		Short: "Build setData calldata for an external signer",
		Long: `Calldata prints the ERC725Y setData(bytes32,bytes) call that writes value.
Send it to the Universal Profile address from the profile's controller.`,
		Args: exactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			k, err := parseKey(key)
			if err != nil {
				return err
			}
			value, err := pointer.ParseHex(args[0])
			if err != nil {
				return usageError{err}
			}
			if k == schema.GridLayoutKey || k == schema.ProfileMetadataKey {
				if _, err := pointer.Decode(value); err != nil {
					return usageError{err}
				}
			}
			data, err := schema.SetDataCalldata(k, value)
			if err != nil {
				return usageError{err}
			}
			_, err = fmt.Fprintln(a.out, model.Hex(data))
			return err
		},
	}
	cmd.Flags().StringVar(&key, "key", schema.GridLayoutName, "ERC725Y key name or hex")
	return cmd
}
